package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// StorageService is the object storage boundary used by the attachment
// uploader. UploadFile returns an opaque file id; FileViewURL turns one
// into a URL clients can render.
type StorageService interface {
	UploadFile(ctx context.Context, content io.Reader, filename string) (string, error)
	FileViewURL(fileID string) string
}

type SupabaseStorageService struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
	now        func() time.Time
}

func NewSupabaseStorageService(baseURL, bucket, serviceKey string) *SupabaseStorageService {
	return &SupabaseStorageService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
}

// UploadFile stores chat media under a timestamp-unique object name so
// concurrent uploads of the same filename never collide.
func (s *SupabaseStorageService) UploadFile(ctx context.Context, content io.Reader, filename string) (string, error) {
	objectPath := path.Join("chat", fmt.Sprintf("%d_%s", s.now().UnixNano(), path.Base(filename)))
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Content-Type", http.DetectContentType(data))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("upload file: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return objectPath, nil
}

func (s *SupabaseStorageService) FileViewURL(fileID string) string {
	if fileID == "" {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, fileID)
}
