package circuit

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxFailures:     2,
		SuccessRequired: 2,
		Timeout:         20 * time.Millisecond,
		ResetTimeout:    time.Minute,
	}
}

var errBoom = stderrors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreakerOpensAfterFailures(t *testing.T) {
	cb := New(fastConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); err != errBoom {
			t.Fatalf("Execute() = %v, want the function error", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v after max failures, want open", cb.GetState())
	}

	// Open circuit rejects without calling the function.
	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("Execute() succeeded on an open circuit")
	}
	if called {
		t.Error("Execute() invoked the function on an open circuit")
	}
}

func TestBreakerRecovers(t *testing.T) {
	cb := New(fastConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	// After the timeout the breaker goes half-open and closes on enough
	// successes.
	time.Sleep(30 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, succeed); err != nil {
			t.Fatalf("Execute() unexpected error during recovery: %v", err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v after recovery, want closed", cb.GetState())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := New(fastConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	time.Sleep(30 * time.Millisecond)

	_ = cb.Execute(ctx, fail)

	if cb.GetState() != StateOpen {
		t.Errorf("state = %v after a half-open failure, want open", cb.GetState())
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb := New(fastConfig())
	ctx := context.Background()

	got, err := ExecuteWithResult(ctx, cb, func() (string, error) {
		return "tip", nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() unexpected error: %v", err)
	}
	if got != "tip" {
		t.Errorf("ExecuteWithResult() = %q, want tip", got)
	}
}

func TestReset(t *testing.T) {
	cb := New(fastConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v after Reset(), want closed", cb.GetState())
	}
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Errorf("Execute() unexpected error after Reset(): %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
