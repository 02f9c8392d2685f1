package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/internal/logger"
)

const (
	backupPrefix = "errbook-"
	backupExt    = ".xlsx"
	xlsxType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Client uploads export backups to a MinIO bucket
type Client struct {
	mc     *minio.Client
	bucket string
	log    *logger.Logger
}

// NewClient creates a new storage client
func NewClient(cfg config.BackupConfig, log *logger.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Client{mc: mc, bucket: cfg.Bucket, log: log.With("component", "storage")}, nil
}

// Init creates the backup bucket if it doesn't exist
func (c *Client) Init(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.bucket, err)
		}
		c.log.Info("bucket created", "bucket", c.bucket)
	}
	return nil
}

// UploadBackup stores an xlsx export under a timestamped name and returns it
func (c *Client) UploadBackup(ctx context.Context, data []byte, now time.Time) (string, error) {
	name := BackupName(now)
	_, err := c.mc.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: xlsxType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", c.bucket, name, err)
	}
	c.log.Info("backup uploaded", "bucket", c.bucket, "name", name, "size", len(data))
	return name, nil
}

// Prune deletes all but the newest keep backups
func (c *Client) Prune(ctx context.Context, keep int) (int, error) {
	var names []string
	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: backupPrefix}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("list %s: %w", c.bucket, obj.Err)
		}
		names = append(names, obj.Key)
	}

	removed := 0
	for _, name := range Expired(names, keep) {
		if err := c.mc.RemoveObject(ctx, c.bucket, name, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("delete %s/%s: %w", c.bucket, name, err)
		}
		removed++
	}
	if removed > 0 {
		c.log.Info("old backups removed", "count", removed)
	}
	return removed, nil
}

// Healthy checks if MinIO is reachable
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.mc.BucketExists(ctx, c.bucket)
	return err == nil
}

// BackupName names the backup taken at now. Names sort chronologically.
func BackupName(now time.Time) string {
	return backupPrefix + now.UTC().Format("20060102-150405") + backupExt
}

// Expired returns the backup names beyond the newest keep
func Expired(names []string, keep int) []string {
	var backups []string
	for _, n := range names {
		if strings.HasPrefix(n, backupPrefix) && strings.HasSuffix(n, backupExt) {
			backups = append(backups, n)
		}
	}
	if keep < 0 {
		keep = 0
	}
	if len(backups) <= keep {
		return nil
	}
	sort.Strings(backups)
	return backups[:len(backups)-keep]
}
