// Package attachments keeps buyer product photos on disk so a request can be
// fanned out with its image long after the channel's temp file is gone.
package attachments

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/utils"
)

type Record struct {
	ID         string      `json:"id"`
	Owner      bus.Address `json:"owner"`
	Name       string      `json:"name"`
	StoredPath string      `json:"stored_path"`
	MIMEType   string      `json:"mime_type,omitempty"`
	SizeBytes  int64       `json:"size_bytes"`
	SHA256     string      `json:"sha256"`
	CreatedAt  time.Time   `json:"created_at"`
}

type stateFile struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

type Store struct {
	mu        sync.RWMutex
	statePath string
	rootPath  string
	records   map[string]Record
	now       func() time.Time
}

// NewStore keeps images under root/images and the index at root/images.json.
func NewStore(root string) (*Store, error) {
	s := &Store{
		statePath: filepath.Join(root, "images.json"),
		rootPath:  filepath.Join(root, "images"),
		records:   map[string]Record{},
		now:       time.Now,
	}
	if err := os.MkdirAll(s.rootPath, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveFromLocalFile copies an image the channel downloaded into the store.
func (s *Store) SaveFromLocalFile(owner bus.Address, localPath string) (Record, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return Record{}, fmt.Errorf("stat local file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Record{}, fmt.Errorf("local path is not a regular file: %s", localPath)
	}
	if !utils.IsImageFile(localPath) {
		return Record{}, fmt.Errorf("not an image: %s", filepath.Base(localPath))
	}

	now := s.now().UTC()
	dayPath := filepath.Join(s.rootPath, now.Format("2006-01-02"))
	if err := os.MkdirAll(dayPath, 0755); err != nil {
		return Record{}, fmt.Errorf("mkdir image day path: %w", err)
	}

	id := "img_" + uuid.NewString()
	baseName := utils.SanitizeFilename(filepath.Base(localPath))
	destPath := filepath.Join(dayPath, id[4:12]+"_"+baseName)

	size, sum, err := copyWithHash(localPath, destPath)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:         id,
		Owner:      owner,
		Name:       baseName,
		StoredPath: destPath,
		MIMEType:   utils.DetectImageMimeType(localPath),
		SizeBytes:  size,
		SHA256:     sum,
		CreatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	if err := s.saveLocked(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) GetByID(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Path returns the stored file for id, or "" when it is unknown.
func (s *Store) Path(id string) string {
	if id == "" {
		return ""
	}
	r, ok := s.GetByID(id)
	if !ok {
		return ""
	}
	return r.StoredPath
}

// Prune deletes images created before cutoff unless keep reports them in use.
// It returns the removed ids.
func (s *Store) Prune(cutoff time.Time, keep func(id string) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, r := range s.records {
		if !r.CreatedAt.Before(cutoff) || (keep != nil && keep(id)) {
			continue
		}
		if err := os.Remove(r.StoredPath); err != nil && !os.IsNotExist(err) {
			logger.WarnCF("attachments", "Failed to remove image", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
			continue
		}
		delete(s.records, id)
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	sort.Strings(removed)
	return removed, s.saveLocked()
}

func copyWithHash(srcPath, dstPath string) (int64, string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, "", fmt.Errorf("create destination file: %w", err)
	}
	defer dst.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, hasher), src)
	if err != nil {
		_ = os.Remove(dstPath)
		return 0, "", fmt.Errorf("copy file: %w", err)
	}
	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read image index: %w", err)
	}
	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		logger.WarnCF("attachments", "Image index unreadable, starting empty", map[string]interface{}{
			"path":  s.statePath,
			"error": err.Error(),
		})
		return nil
	}
	for _, r := range st.Records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *Store) saveLocked() error {
	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(stateFile{Version: 1, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal image index: %w", err)
	}
	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write image index temp: %w", err)
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace image index: %w", err)
	}
	return nil
}
