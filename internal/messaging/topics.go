package messaging

// Topic constants for the staking event stream
const (
	// TopicBlocks carries accepted blocks minted by this staker
	TopicBlocks = "staking.blocks"
	// TopicStatus carries periodic search and supervisor status
	TopicStatus = "staking.status"
	// TopicErrors carries unexpected staking loop failures
	TopicErrors = "staking.errors"
)
