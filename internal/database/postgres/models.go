package postgres

import (
	"database/sql"
	"time"
)

// Minted block status values.
const (
	BlockStatusSubmitted = "submitted"
	BlockStatusAccepted  = "accepted"
	BlockStatusRejected  = "rejected"
	BlockStatusOrphaned  = "orphaned"
)

// MintedBlock is one block this staker attempted to add to the chain.
type MintedBlock struct {
	ID        int64
	Hash      string
	Height    int64
	PrevBlock string
	ProofType string // "stake" or "work"

	// Stake-path details; null on the work path.
	StakeCoin  sql.NullString
	StakeValue sql.NullInt64
	StakeTime  sql.NullInt64

	Status string

	// RawBlock keeps the serialization of rejected blocks so nothing is
	// silently dropped.
	RawBlock sql.NullString

	SubmittedAt time.Time
	ResolvedAt  sql.NullTime
}
