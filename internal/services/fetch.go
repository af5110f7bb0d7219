package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxDownloadBytes = 25 << 20 // 25 MB

// MediaFetcher downloads webhook-supplied PDF links into a run's working
// directory. Downloads are bounded by a hard timeout and a size cap.
type MediaFetcher struct {
	httpClient *http.Client
}

func NewMediaFetcher() *MediaFetcher {
	return &MediaFetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// DownloadPDF fetches the URL and stores the body under a fresh name in
// destDir. Non-2xx responses and non-PDF content types fail.
func (f *MediaFetcher) DownloadPDF(ctx context.Context, url, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isPDFContentType(contentType) {
		return "", fmt.Errorf("download media: unsupported content type %q", contentType)
	}

	path := filepath.Join(destDir, uuid.NewString()+".pdf")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write media file: %w", err)
	}
	if n > maxDownloadBytes {
		os.Remove(path)
		return "", fmt.Errorf("download media: exceeds %d byte limit", maxDownloadBytes)
	}

	return path, nil
}

func isPDFContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "application/pdf") || strings.HasPrefix(ct, "application/octet-stream")
}
