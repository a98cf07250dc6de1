// Package reliability ships database backups to S3-compatible storage and
// rotates old ones.
package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/config"
	"github.com/coinscope/coinscope/internal/database"
)

// BackupService snapshots the database, compresses the snapshot and uploads
// it to the configured bucket. Uploads are named by UTC timestamp so rotation
// can sort lexically.
type BackupService struct {
	cfg     *config.BackupConfig
	db      *database.DB
	client  *s3.Client
	dataDir string
	log     zerolog.Logger
}

// NewBackupService creates the backup service and its S3 client.
func NewBackupService(ctx context.Context, cfg *config.BackupConfig, db *database.DB, dataDir string, log zerolog.Logger) (*BackupService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &BackupService{
		cfg:     cfg,
		db:      db,
		client:  client,
		dataDir: dataDir,
		log:     log.With().Str("service", "backup").Logger(),
	}, nil
}

// Run produces one backup: snapshot, compress, upload, rotate.
func (s *BackupService) Run(ctx context.Context) error {
	start := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	snapshotPath := filepath.Join(stagingDir, "coinscope.db")
	if err := s.db.Snapshot(ctx, snapshotPath); err != nil {
		return err
	}

	archivePath := snapshotPath + ".gz"
	if err := compressFile(snapshotPath, archivePath); err != nil {
		return err
	}

	key := s.objectKey(time.Now().UTC())
	if err := s.upload(ctx, archivePath, key); err != nil {
		return err
	}

	deleted, err := s.rotate(ctx)
	if err != nil {
		// The new backup is safe; rotation failure is not fatal.
		s.log.Error().Err(err).Msg("Backup rotation failed")
	}

	s.log.Info().
		Str("key", key).
		Int("rotated", deleted).
		Dur("duration", time.Since(start)).
		Msg("Backup completed")
	return nil
}

func (s *BackupService) objectKey(ts time.Time) string {
	return fmt.Sprintf("%s/coinscope-%s.db.gz", strings.TrimSuffix(s.cfg.Prefix, "/"), ts.Format("20060102-150405"))
}

func (s *BackupService) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat backup archive: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	return nil
}

// rotate deletes backups older than the retention period, always keeping the
// most recent one regardless of age.
func (s *BackupService) rotate(ctx context.Context) (int, error) {
	prefix := strings.TrimSuffix(s.cfg.Prefix, "/") + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}
	if len(out.Contents) <= 1 {
		return 0, nil
	}

	objects := out.Contents
	sort.Slice(objects, func(i, j int) bool {
		return aws.ToString(objects[i].Key) < aws.ToString(objects[j].Key)
	})

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted := 0
	for _, obj := range objects[:len(objects)-1] {
		if obj.LastModified == nil || obj.LastModified.After(cutoff) {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    obj.Key,
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete old backup %s: %w", aws.ToString(obj.Key), err)
		}
		deleted++
	}
	return deleted, nil
}

func compressFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}
