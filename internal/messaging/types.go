package messaging

import "time"

// BlockMintedMessage announces a block the chain accepted from this staker
type BlockMintedMessage struct {
	BlockHash  string    `json:"block_hash"`
	Height     int64     `json:"height"`
	PrevBlock  string    `json:"prev_block"`
	ProofType  string    `json:"proof_type"`
	StakeCoin  string    `json:"stake_coin,omitempty"`
	StakeValue int64     `json:"stake_value,omitempty"`
	StakeTime  uint32    `json:"stake_time,omitempty"`
	Nonce      uint32    `json:"nonce,omitempty"`
	MintedAt   time.Time `json:"minted_at"`
}

// StatusMessage carries periodic supervisor/search progress
type StatusMessage struct {
	State     string    `json:"state"`
	Height    int64     `json:"height"`
	Hashes    float64   `json:"hashes"`
	RateHPS   float64   `json:"rate_hps"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorMessage carries an unexpected staking loop failure
type ErrorMessage struct {
	Service    string    `json:"service"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}
