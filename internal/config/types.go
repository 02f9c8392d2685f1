package config

import "time"

// Config is the full runtime configuration
type Config struct {
	Timezone  *time.Location
	LogMode   string
	Database  DatabaseConfig
	Knowledge KnowledgeConfig
	Grader    GraderConfig
	Bot       BotConfig
	Backup    BackupConfig
}

// DatabaseConfig selects the store backend
type DatabaseConfig struct {
	Type    string // "sqlite" or "postgres"
	DSN     string
	DataDir string
}

// KnowledgeConfig holds the admission, pending and purge knobs
type KnowledgeConfig struct {
	DailyLimit           int
	LimitEnabled         bool
	PendingTimeout       time.Duration
	PendingSweepInterval time.Duration
	PurgeRetentionDays   int
	PurgeMaxBatch        int
	CommitMaxRetries     int
}

// GraderConfig selects and configures the AI grader
type GraderConfig struct {
	Provider string // "openai" or "claude"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// BotConfig configures the Telegram front
type BotConfig struct {
	Token        string
	AdminUserIDs []int64
	UserIDs      []int64 // learners besides the admins
	ReminderCron string
}

// BackupConfig configures the nightly export upload
type BackupConfig struct {
	Enabled   bool
	Cron      string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Keep      int // backups kept in the bucket
}

// fileOverlay is the optional YAML file; unset keys keep their defaults
type fileOverlay struct {
	DailyKnowledgeLimit *int           `yaml:"daily_knowledge_limit"`
	LimitEnabled        *bool          `yaml:"limit_enabled"`
	PendingTimeout      *time.Duration `yaml:"pending_timeout"`
	PurgeRetentionDays  *int           `yaml:"purge_retention_days"`
	PurgeMaxBatch       *int           `yaml:"purge_max_batch"`
	ReminderCron        *string        `yaml:"reminder_cron"`
	BackupCron          *string        `yaml:"backup_cron"`
}

const (
	MinDailyLimit = 5
	MaxDailyLimit = 50
)

const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)
