package consts

import "time"

// LLM default configurations
const (
	// DefaultMaxTokens is the default maximum tokens for LLM responses
	DefaultMaxTokens = 1024
	// DefaultTemperature is the default sampling temperature for the reasoning model
	DefaultTemperature = 0.7
)

// Timeouts for various operations
const (
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
	// Timeout60Seconds is a 60 second timeout (1 minute)
	Timeout60Seconds = 60 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
)

// Conversation bounds
const (
	// DefaultHistoryLimit is the maximum number of turns kept per session
	DefaultHistoryLimit = 40
	// DefaultMaxToolIterations is the maximum tool calls per chat turn
	DefaultMaxToolIterations = 8
	// DefaultSessionIdleTimeout is how long a session may sit idle before eviction
	DefaultSessionIdleTimeout = 30 * time.Minute
)
