package utils

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

	"github.com/bizzbazzar/bazaar/pkg/logger"
)

type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindDocument MediaKind = "document"
)

// KindOf classifies a local media file by extension.
func KindOf(path string) MediaKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return KindImage
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return KindVideo
	case ".mp3", ".wav", ".ogg", ".oga", ".m4a", ".flac", ".aac":
		return KindAudio
	default:
		return KindDocument
	}
}

// IsImageFile checks if a file path has an image extension.
func IsImageFile(path string) bool {
	return KindOf(path) == KindImage
}

// DetectImageMimeType returns the MIME type for an image file based on extension.
func DetectImageMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}

// SanitizeFilename removes potentially dangerous characters from a filename
// and returns a safe version for local filesystem storage.
func SanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, "..", "")
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.ReplaceAll(base, "\\", "_")
	return base
}

type DownloadOptions struct {
	Timeout      time.Duration
	ExtraHeaders map[string]string
	Dir          string
	LoggerPrefix string
}

// DownloadFile fetches url into opts.Dir (default: a temp media dir) under a
// uuid-prefixed copy of filename and returns the local path.
func DownloadFile(ctx context.Context, url, filename string, opts DownloadOptions) (string, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.LoggerPrefix == "" {
		opts.LoggerPrefix = "media"
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Join(os.TempDir(), "bazaar_media")
	}
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	localPath := filepath.Join(opts.Dir, uuid.NewString()[:8]+"_"+SanitizeFilename(filename))

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	for key, value := range opts.ExtraHeaders {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", filename, resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("write local file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	logger.DebugCF(opts.LoggerPrefix, "File downloaded successfully", map[string]interface{}{
		"path": localPath,
	})
	return localPath, nil
}
