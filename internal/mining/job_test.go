package mining

import (
	"math/big"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable clock for job telemetry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestJob(t *testing.T) (*Job, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Unix(0x60000000, 0))
	return NewJob(newTestTemplate(t), clock), clock
}

func TestJobCommit(t *testing.T) {
	job, _ := newTestJob(t)

	block, err := job.Commit(0x60000010, 5)
	if err != nil {
		t.Fatalf("Commit() unexpected error: %v", err)
	}
	if block == nil {
		t.Fatal("Commit() returned nil block")
	}

	if _, err := job.Commit(0x60000010, 6); err == nil {
		t.Error("second Commit() did not fail")
	}
}

func TestJobDestroyedCommit(t *testing.T) {
	job, _ := newTestJob(t)
	job.Destroy()

	block, err := job.Commit(0x60000010, 5)
	if err != nil {
		t.Fatalf("Commit() after destroy unexpected error: %v", err)
	}
	if block != nil {
		t.Error("Commit() after destroy produced a block")
	}

	block, err = job.CommitCoinstakeTime(0x60000020, stakeCoin(100))
	if err != nil {
		t.Fatalf("CommitCoinstakeTime() after destroy unexpected error: %v", err)
	}
	if block != nil {
		t.Error("CommitCoinstakeTime() after destroy produced a block")
	}
}

func TestJobDoubleDestroyPanics(t *testing.T) {
	job, _ := newTestJob(t)
	job.Destroy()

	defer func() {
		if recover() == nil {
			t.Error("second Destroy() did not panic")
		}
	}()
	job.Destroy()
}

func TestJobUpdateNonceRollover(t *testing.T) {
	job, _ := newTestJob(t)

	job.UpdateNonce()
	if n1, n2 := job.ExtraNonce(); n1 != 0 || n2 != 1 {
		t.Errorf("ExtraNonce() = (%d, %d), want (0, 1)", n1, n2)
	}

	// Force the low counter to its maximum and roll it over.
	job.mu.Lock()
	job.n2 = 0xffffffff
	job.mu.Unlock()

	job.UpdateNonce()
	if n1, n2 := job.ExtraNonce(); n1 != 1 || n2 != 0 {
		t.Errorf("ExtraNonce() after rollover = (%d, %d), want (1, 0)", n1, n2)
	}
}

func TestJobUpdateNonceChangesHeader(t *testing.T) {
	job, _ := newTestJob(t)

	before := job.Header(0x60000010, 0)
	job.UpdateNonce()
	after := job.Header(0x60000010, 0)

	if string(before) == string(after) {
		t.Error("UpdateNonce() left the header unchanged")
	}
}

func TestJobHashes(t *testing.T) {
	job, _ := newTestJob(t)

	job.mu.Lock()
	job.n1 = 1
	job.n2 = 2
	job.mu.Unlock()

	// (n1*2^32 + n2)*2^32 + nonce
	want := new(big.Int).Lsh(new(big.Int).SetUint64(1<<32|2), 32)
	want.Add(want, big.NewInt(3))

	if got := job.Hashes(3); got.Cmp(want) != 0 {
		t.Errorf("Hashes(3) = %v, want %v", got, want)
	}
}

func TestJobRate(t *testing.T) {
	job, clock := newTestJob(t)

	job.mu.Lock()
	job.n2 = 1 // 2^32 hashes on the books
	job.mu.Unlock()

	clock.Advance(2 * time.Second)

	want := float64(uint64(1)<<32) / 2
	if got := job.Rate(0); got != want {
		t.Errorf("Rate(0) = %v, want %v", got, want)
	}
}

func TestJobRateZeroElapsed(t *testing.T) {
	job, _ := newTestJob(t)
	if got := job.Rate(100); got != 0 {
		t.Errorf("Rate() with no elapsed time = %v, want 0", got)
	}
}
