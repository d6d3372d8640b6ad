package supabase

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) *StorageClient {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// StoragePath lays uploads out by day: uploads/2025-03-01/<name>.
func StoragePath(fileName string, now time.Time) string {
	return path.Join("uploads", now.UTC().Format("2006-01-02"), path.Base(fileName))
}

// Upload puts data in the public bucket and returns its public URL, so the
// model provider can fetch it.
func (s *StorageClient) Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	storagePath := StoragePath(fileName, time.Now())

	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}
