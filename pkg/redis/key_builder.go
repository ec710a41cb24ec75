package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = environment
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyCurrentPoll returns the key for the current poll snapshot
func (kb *KeyBuilder) KeyCurrentPoll() string {
	return kb.BuildKey(KeyCurrentPoll)
}

// KeyParticipants returns the key for the roster snapshot
func (kb *KeyBuilder) KeyParticipants() string {
	return kb.BuildKey(KeyParticipants)
}

// KeyHistory returns the key for the archived poll list
func (kb *KeyBuilder) KeyHistory() string {
	return kb.BuildKey(KeyHistory)
}

// PollPattern matches every poll snapshot key in this environment
func (kb *KeyBuilder) PollPattern() string {
	return kb.BuildKey("poll:*")
}
