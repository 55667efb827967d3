package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is the slice of the S3 API the manager uses, an interface for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds backup manager configuration. The manager stays disabled
// unless bucket, credentials, and a passphrase are all present.
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Prefix        string
	Passphrase    string
	Hour          int
	RetentionDays int
}

// Manager takes nightly encrypted snapshots of the SQLite database and ships
// them to S3-compatible storage.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	db      *sql.DB
	client  s3Client
	logger  *slog.Logger
	lastRun string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. A nil client is replaced with a real
// S3 client when the config is complete.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "backup"),
	}
	if cfg.RetentionDays <= 0 {
		m.cfg.RetentionDays = 30
	}
	if m.Enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has enough configuration to run.
func (m *Manager) Enabled() bool {
	return m.cfg.Bucket != "" && m.cfg.AccessKey != "" && m.cfg.SecretKey != "" && m.cfg.Passphrase != ""
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled, missing configuration")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) checkSchedule(ctx context.Context, now time.Time) {
	if now.Hour() != m.cfg.Hour {
		return
	}
	day := now.Format("2006-01-02")

	m.mu.Lock()
	if m.lastRun == day {
		m.mu.Unlock()
		return
	}
	m.lastRun = day
	m.mu.Unlock()

	if err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
	if err := m.prune(ctx, now); err != nil {
		m.logger.Error("prune old backups failed", "error", err)
	}
}

// RunNow snapshots the database, encrypts it, and uploads it. The upload is
// retried with exponential backoff before giving up.
func (m *Manager) RunNow(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("backup not configured")
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	encrypted, err := Encrypt(snapshot, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := m.objectKey(time.Now().UTC())
	backoff := retry.WithMaxRetries(4, retry.NewExponential(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(int64(len(encrypted))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))
	return nil
}

// snapshot writes a consistent copy of the database via VACUUM INTO and
// returns its contents.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "studyden-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	return os.ReadFile(path)
}

func (m *Manager) objectKey(now time.Time) string {
	name := fmt.Sprintf("studyden-%s.db.enc", now.Format("2006-01-02T150405Z"))
	if m.cfg.Prefix == "" {
		return name
	}
	return m.cfg.Prefix + "/" + name
}

// prune deletes stored backups older than the retention window.
func (m *Manager) prune(ctx context.Context, now time.Time) error {
	cutoff := now.AddDate(0, 0, -m.cfg.RetentionDays)

	var prefix *string
	if m.cfg.Prefix != "" {
		prefix = aws.String(m.cfg.Prefix + "/")
	}

	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: prefix,
	})
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	for _, obj := range out.Contents {
		if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    obj.Key,
		}); err != nil {
			m.logger.Error("delete old backup", "key", aws.ToString(obj.Key), "error", err)
		}
	}
	return nil
}
