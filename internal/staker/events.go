// Package staker contains the long-running staking supervisor and the two
// proof searchers it drives: the time-quantized stake search and the sliced
// CPU nonce search.
package staker

import (
	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/internal/mining"
)

// Emitter receives the supervisor's outward events. Implementations fan the
// events out to logs, Kafka, metrics or embedders; they must not block the
// staking loop.
type Emitter interface {
	// EmitBlock fires after the chain accepted a block this staker produced.
	EmitBlock(entry *chain.Entry, block *mining.Block)

	// EmitStatus fires on periodic search progress.
	EmitStatus(status mining.SearchStatus)

	// EmitError fires on an unexpected failure that terminates the loop.
	EmitError(err error)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// EmitBlock implements Emitter.
func (NopEmitter) EmitBlock(*chain.Entry, *mining.Block) {}

// EmitStatus implements Emitter.
func (NopEmitter) EmitStatus(mining.SearchStatus) {}

// EmitError implements Emitter.
func (NopEmitter) EmitError(error) {}

// MultiEmitter fans events out to several emitters in order.
type MultiEmitter []Emitter

// EmitBlock implements Emitter.
func (m MultiEmitter) EmitBlock(entry *chain.Entry, block *mining.Block) {
	for _, e := range m {
		e.EmitBlock(entry, block)
	}
}

// EmitStatus implements Emitter.
func (m MultiEmitter) EmitStatus(status mining.SearchStatus) {
	for _, e := range m {
		e.EmitStatus(status)
	}
}

// EmitError implements Emitter.
func (m MultiEmitter) EmitError(err error) {
	for _, e := range m {
		e.EmitError(err)
	}
}
