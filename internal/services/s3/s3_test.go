package s3service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"underwriting-engine/internal/services/catalog"
	s3service "underwriting-engine/internal/services/s3"
)

// memoryBucket is an in-memory stand-in for one S3 bucket.
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	failGet bool
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte)}
}

func (b *memoryBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (b *memoryBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[aws.ToString(in.Key)]
	if !ok || b.failGet {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (b *memoryBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

const termSheetDir = "../catalog/termsheets"

func TestTermSheetStore_PublishThenSync(t *testing.T) {
	ctx := context.Background()
	bucket := newMemoryBucket()
	store := s3service.NewTermSheetStoreWithClient(bucket, "catalog-bucket", "termsheets", nil)

	published, err := store.Publish(ctx, termSheetDir)
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Contains(t, bucket.objects, "termsheets/fannie_mae.yaml")
	assert.Contains(t, bucket.objects, "termsheets/freddie_mac.yaml")

	// Unrelated objects under the prefix are ignored.
	bucket.objects["termsheets/README.md"] = []byte("notes")
	bucket.objects["termsheets/archive/old.yaml"] = []byte("agency: fannie_mae")

	dest := t.TempDir()
	synced, err := store.Sync(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	c, err := catalog.LoadDir(dest)
	require.NoError(t, err)
	embedded := catalog.MustLoadEmbedded()
	assert.Equal(t, embedded.Version(), c.Version())
	assert.Equal(t, embedded.Len(), c.Len())
}

func TestTermSheetStore_SyncDownloadFailure(t *testing.T) {
	ctx := context.Background()
	bucket := newMemoryBucket()
	bucket.objects["termsheets/fannie_mae.yaml"] = []byte("agency: fannie_mae")
	bucket.failGet = true
	store := s3service.NewTermSheetStoreWithClient(bucket, "catalog-bucket", "termsheets/", nil)

	_, err := store.Sync(ctx, filepath.Join(t.TempDir(), "sheets"))

	assert.ErrorContains(t, err, "failed to download term sheet termsheets/fannie_mae.yaml")
}
