package redis

import "github.com/MrSnakeDoc/gamedeck/internal/state"

// KeyPrefixState is the prefix for state record keys
const KeyPrefixState = "gamedeck:state:"

// RecordKey returns the Redis key for a state record
func RecordKey(record state.Record) string {
	return KeyPrefixState + string(record)
}
