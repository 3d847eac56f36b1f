// Package s3service stores agency term sheets in S3 so deployed functions
// can pick up catalog revisions without a rebuild.
package s3service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectAPI is the subset of the S3 client used for term sheets.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// TermSheetStore reads and publishes *.yaml term sheets under a bucket prefix.
type TermSheetStore struct {
	client     ObjectAPI
	bucketName string
	prefix     string
	logger     *zap.Logger
}

// NewTermSheetStore creates a store using the default AWS credential chain.
func NewTermSheetStore(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*TermSheetStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewTermSheetStoreWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewTermSheetStoreWithClient creates a store around an existing client.
func NewTermSheetStoreWithClient(client ObjectAPI, bucket, prefix string, logger *zap.Logger) *TermSheetStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &TermSheetStore{
		client:     client,
		bucketName: bucket,
		prefix:     prefix,
		logger:     logger,
	}
}

// Sync downloads every term sheet under the prefix into destDir and returns
// the number of files written.
func (s *TermSheetStore) Sync(ctx context.Context, destDir string) (int, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create term sheet dir: %w", err)
	}

	keys, err := s.listTermSheets(ctx)
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		data, err := s.download(ctx, key)
		if err != nil {
			return 0, err
		}
		dest := filepath.Join(destDir, path.Base(key))
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return 0, fmt.Errorf("failed to write term sheet %s: %w", dest, err)
		}
	}

	s.logger.Info("Synced term sheets from S3",
		zap.String("bucket", s.bucketName),
		zap.String("prefix", s.prefix),
		zap.Int("files", len(keys)),
	)
	return len(keys), nil
}

// Publish uploads every *.yaml file of srcDir under the prefix.
func (s *TermSheetStore) Publish(ctx context.Context, srcDir string) (int, error) {
	names, err := filepath.Glob(filepath.Join(srcDir, "*.yaml"))
	if err != nil {
		return 0, fmt.Errorf("failed to list term sheets: %w", err)
	}

	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return 0, fmt.Errorf("failed to read term sheet %s: %w", name, err)
		}
		key := s.prefix + filepath.Base(name)
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/yaml"),
		})
		if err != nil {
			s.logger.Error("Failed to upload term sheet",
				zap.String("bucket", s.bucketName),
				zap.String("key", key),
				zap.Error(err),
			)
			return 0, fmt.Errorf("failed to upload term sheet %s: %w", key, err)
		}
	}

	s.logger.Info("Published term sheets to S3",
		zap.String("bucket", s.bucketName),
		zap.String("prefix", s.prefix),
		zap.Int("files", len(names)),
	)
	return len(names), nil
}

func (s *TermSheetStore) listTermSheets(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list term sheets: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Only direct children of the prefix.
			if strings.HasSuffix(key, ".yaml") && !strings.Contains(strings.TrimPrefix(key, s.prefix), "/") {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (s *TermSheetStore) download(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to download term sheet from S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download term sheet %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read term sheet %s: %w", key, err)
	}
	return data, nil
}
