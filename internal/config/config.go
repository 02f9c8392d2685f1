package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Load reads .env (if present), the optional YAML overlay and the environment.
// Precedence: defaults < YAML file < environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	tzName := envString("TZ", "UTC")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", tzName, err)
	}

	knowledge := defaultKnowledgeConfig()
	bot := BotConfig{ReminderCron: "0 * * * *"}
	backup := BackupConfig{Cron: "30 3 * * *", Bucket: "errbook-backups", Keep: 14}

	if path := os.Getenv("ERRBOOK_CONFIG"); path != "" {
		if err := applyFile(path, &knowledge, &bot, &backup); err != nil {
			return nil, err
		}
	}

	if err := loadKnowledgeEnv(&knowledge); err != nil {
		return nil, err
	}
	if err := validateKnowledge(knowledge); err != nil {
		return nil, err
	}

	grader, err := loadGraderConfig()
	if err != nil {
		return nil, err
	}

	if err := loadBotEnv(&bot); err != nil {
		return nil, err
	}
	if err := loadBackupEnv(&backup); err != nil {
		return nil, err
	}

	return &Config{
		Timezone:  tz,
		LogMode:   envString("LOG_MODE", "dev"),
		Database:  loadDatabaseConfig(),
		Knowledge: knowledge,
		Grader:    grader,
		Bot:       bot,
		Backup:    backup,
	}, nil
}

func defaultKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		DailyLimit:           15,
		LimitEnabled:         true,
		PendingTimeout:       10 * time.Minute,
		PendingSweepInterval: time.Minute,
		PurgeRetentionDays:   30,
		PurgeMaxBatch:        100,
		CommitMaxRetries:     5,
	}
}

func applyFile(path string, k *KnowledgeConfig, b *BotConfig, bk *BackupConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var f fileOverlay
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if f.DailyKnowledgeLimit != nil {
		k.DailyLimit = *f.DailyKnowledgeLimit
	}
	if f.LimitEnabled != nil {
		k.LimitEnabled = *f.LimitEnabled
	}
	if f.PendingTimeout != nil {
		k.PendingTimeout = *f.PendingTimeout
	}
	if f.PurgeRetentionDays != nil {
		k.PurgeRetentionDays = *f.PurgeRetentionDays
	}
	if f.PurgeMaxBatch != nil {
		k.PurgeMaxBatch = *f.PurgeMaxBatch
	}
	if f.ReminderCron != nil {
		b.ReminderCron = *f.ReminderCron
	}
	if f.BackupCron != nil {
		bk.Cron = *f.BackupCron
	}
	return nil
}

func loadDatabaseConfig() DatabaseConfig {
	dbType := envString("DB_TYPE", "sqlite")
	dataDir := envString("DATA_DIR", "data")

	dsn := os.Getenv("DB_DSN")
	if dsn == "" && dbType == "sqlite" {
		dsn = filepath.Join(dataDir, "errbook.db")
	}

	return DatabaseConfig{
		Type:    dbType,
		DSN:     dsn,
		DataDir: dataDir,
	}
}

func loadKnowledgeEnv(k *KnowledgeConfig) error {
	var err error
	if k.DailyLimit, err = envInt("DAILY_KNOWLEDGE_LIMIT", k.DailyLimit); err != nil {
		return err
	}
	if k.LimitEnabled, err = envBool("DAILY_LIMIT_ENABLED", k.LimitEnabled); err != nil {
		return err
	}
	if k.PendingTimeout, err = envDuration("PENDING_TIMEOUT", k.PendingTimeout); err != nil {
		return err
	}
	if k.PendingSweepInterval, err = envDuration("PENDING_SWEEP_INTERVAL", k.PendingSweepInterval); err != nil {
		return err
	}
	if k.PurgeRetentionDays, err = envInt("PURGE_RETENTION_DAYS", k.PurgeRetentionDays); err != nil {
		return err
	}
	if k.PurgeMaxBatch, err = envInt("PURGE_MAX_BATCH", k.PurgeMaxBatch); err != nil {
		return err
	}
	if k.CommitMaxRetries, err = envInt("COMMIT_MAX_RETRIES", k.CommitMaxRetries); err != nil {
		return err
	}
	return nil
}

func validateKnowledge(k KnowledgeConfig) error {
	if k.DailyLimit < MinDailyLimit || k.DailyLimit > MaxDailyLimit {
		return fmt.Errorf("daily_knowledge_limit must be between %d and %d, got %d", MinDailyLimit, MaxDailyLimit, k.DailyLimit)
	}
	if k.PendingTimeout <= 0 {
		return fmt.Errorf("pending_timeout must be positive, got %s", k.PendingTimeout)
	}
	if k.PendingSweepInterval <= 0 {
		return fmt.Errorf("pending sweep interval must be positive, got %s", k.PendingSweepInterval)
	}
	if k.PurgeRetentionDays < 1 {
		return fmt.Errorf("purge_retention_days must be at least 1, got %d", k.PurgeRetentionDays)
	}
	if k.PurgeMaxBatch < 1 {
		return fmt.Errorf("purge_max_batch must be at least 1, got %d", k.PurgeMaxBatch)
	}
	if k.CommitMaxRetries < 1 {
		return fmt.Errorf("commit max retries must be at least 1, got %d", k.CommitMaxRetries)
	}
	return nil
}

func loadGraderConfig() (GraderConfig, error) {
	provider := envString("GRADER_PROVIDER", DetectProvider())

	timeout, err := envDuration("GRADER_TIMEOUT", 30*time.Second)
	if err != nil {
		return GraderConfig{}, err
	}

	cfg := GraderConfig{
		Provider: provider,
		Model:    os.Getenv("GRADER_MODEL"),
		BaseURL:  os.Getenv("GRADER_BASE_URL"),
		Timeout:  timeout,
	}

	switch provider {
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderClaude:
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "":
	default:
		return GraderConfig{}, fmt.Errorf("unknown GRADER_PROVIDER %q", provider)
	}

	return cfg, nil
}

// DetectProvider picks a grader provider from whichever API key is set
func DetectProvider() string {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return ProviderClaude
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	return ""
}

func loadBotEnv(b *BotConfig) error {
	b.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	b.ReminderCron = envString("REMINDER_CRON", b.ReminderCron)
	if _, err := cronParser.Parse(b.ReminderCron); err != nil {
		return fmt.Errorf("invalid REMINDER_CRON %q: %w", b.ReminderCron, err)
	}

	ids, err := parseIDList(os.Getenv("ADMIN_USER_IDS"))
	if err != nil {
		return err
	}
	b.AdminUserIDs = ids

	users, err := parseIDList(os.Getenv("ALLOWED_USER_IDS"))
	if err != nil {
		return err
	}
	b.UserIDs = users
	return nil
}

func loadBackupEnv(b *BackupConfig) error {
	b.Endpoint = envString("MINIO_ENDPOINT", "minio:9000")
	b.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	b.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	b.Bucket = envString("MINIO_BUCKET", b.Bucket)
	b.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	b.Enabled = b.AccessKey != "" && b.SecretKey != ""
	keep, err := envInt("BACKUP_KEEP", b.Keep)
	if err != nil {
		return err
	}
	if keep < 1 {
		return fmt.Errorf("BACKUP_KEEP must be at least 1, got %d", keep)
	}
	b.Keep = keep
	b.Cron = envString("BACKUP_CRON", b.Cron)
	if _, err := cronParser.Parse(b.Cron); err != nil {
		return fmt.Errorf("invalid BACKUP_CRON %q: %w", b.Cron, err)
	}
	return nil
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ADMIN_USER_IDS", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
