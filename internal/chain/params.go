package chain

import "github.com/btcsuite/btcd/chaincfg"

// Params bundles the consensus constants the staking core reads. Values come
// from the network's consensus table; only the fields the core consumes are
// carried here.
type Params struct {
	Net *chaincfg.Params

	// StakeMinConfirmations is the depth a coin needs before it may stake.
	StakeMinConfirmations int64

	// StakeTimestampMask quantizes stake timestamps: nTime AND NOT mask.
	StakeTimestampMask uint32

	// BlockVersion is the version stamped on produced blocks.
	BlockVersion int32

	// StakeReward is the subsidy a coinstake mints, in satoshis.
	StakeReward int64

	// CoinbaseFlags is appended to the coinbase signature script.
	CoinbaseFlags string
}

// MainNetParams returns the production staking parameters.
func MainNetParams() *Params {
	return &Params{
		Net:                   &chaincfg.MainNetParams,
		StakeMinConfirmations: 500,
		StakeTimestampMask:    15,
		BlockVersion:          7,
		StakeReward:           150000000, // 1.5 coins
		CoinbaseFlags:         "/gostake/",
	}
}

// RegressionNetParams returns parameters for regression testing: shallow
// confirmation depth so freshly minted coins can stake quickly.
func RegressionNetParams() *Params {
	return &Params{
		Net:                   &chaincfg.RegressionNetParams,
		StakeMinConfirmations: 10,
		StakeTimestampMask:    15,
		BlockVersion:          7,
		StakeReward:           150000000,
		CoinbaseFlags:         "/gostake/",
	}
}
