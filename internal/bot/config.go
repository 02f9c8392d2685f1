package bot

import (
	"time"
)

// BotConfig represents the tunables of the Telegram front
type BotConfig struct {
	// Entries shown by /due when no count is given
	DefaultQueueSize int
	// Points listed per /points message
	PointsPerMessage int
	// Largest accepted /import upload
	MaxImportBytes int64
	// Time allowed for one update to be handled
	UpdateTimeout time.Duration
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		DefaultQueueSize: 5,
		PointsPerMessage: 30,
		MaxImportBytes:   5 << 20,
		UpdateTimeout:    2 * time.Minute,
	}
}
