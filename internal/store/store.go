// Package store persists pipeline artifacts as JSON files: one discovery
// document per run and one record per extracted page. Page records are
// keyed by a stable hash of the normalized URL, so re-running extraction
// overwrites rather than duplicates.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/urlutil"
)

// Layout within the data directory.
const (
	discoveryFileName = "discovery_results.json"
	rawDirName        = "raw"
	dirPerm           = 0o755
	filePerm          = 0o644
)

// ErrNoDiscovery indicates extraction was started before a discovery run.
var ErrNoDiscovery = errors.New("discovery results not found; run discover first")

// DiscoveryFile is the persisted output of a discovery run.
type DiscoveryFile struct {
	// GeneratedAt is when the discovery run completed
	GeneratedAt time.Time `json:"generated_at"`
	// RunID identifies the run that produced this file
	RunID string `json:"run_id"`
	// Results per county, in input order
	Results []domain.DiscoveryResult `json:"results"`
}

// Store writes and reads pipeline artifacts under a data directory.
// Writes are serialized; the store is safe for concurrent workers.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

// New creates a Store rooted at dataDir, creating the layout if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, rawDirName), dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &Store{dataDir: dataDir}, nil
}

// SaveDiscovery writes the discovery document atomically.
func (s *Store) SaveDiscovery(file *DiscoveryFile) error {
	return s.writeJSON(filepath.Join(s.dataDir, discoveryFileName), file)
}

// LoadDiscovery reads the discovery document from a prior run.
func (s *Store) LoadDiscovery() (*DiscoveryFile, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, discoveryFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoDiscovery
		}
		return nil, fmt.Errorf("read discovery results: %w", err)
	}

	var file DiscoveryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse discovery results: %w", err)
	}

	return &file, nil
}

// Put stores one page record. The filename derives deterministically from
// the county slug, program slug, and a short hash of the normalized URL,
// so the same page always lands on the same path (overwrite, not append).
// Returns the written path.
func (s *Store) Put(county string, page *domain.PageContent) (string, error) {
	shortID, err := urlutil.ShortID(page.PageURL)
	if err != nil {
		return "", fmt.Errorf("page filename: %w", err)
	}

	dir := s.countyDir(county)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create county dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", urlutil.Slugify(page.LinkText), shortID)

	path := filepath.Join(dir, name)
	if err := s.writeJSON(path, page); err != nil {
		return "", err
	}

	return path, nil
}

// Exists reports whether a record with the given short identifier is
// already stored for the county.
func (s *Store) Exists(county, shortID string) bool {
	matches, err := filepath.Glob(filepath.Join(s.countyDir(county), "*-"+shortID+".json"))
	if err != nil {
		return false
	}

	return len(matches) > 0
}

// List enumerates the stored page records for a county in filename order.
// A county with no records yields an empty slice, not an error.
func (s *Store) List(county string) ([]domain.PageContent, error) {
	matches, err := filepath.Glob(filepath.Join(s.countyDir(county), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list county records: %w", err)
	}

	sort.Strings(matches)

	pages := make([]domain.PageContent, 0, len(matches))
	for _, path := range matches {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read record %s: %w", path, readErr)
		}

		var page domain.PageContent
		if unmarshalErr := json.Unmarshal(data, &page); unmarshalErr != nil {
			return nil, fmt.Errorf("parse record %s: %w", path, unmarshalErr)
		}

		pages = append(pages, page)
	}

	return pages, nil
}

// countyDir returns the raw-record directory for a county.
func (s *Store) countyDir(county string) string {
	return filepath.Join(s.dataDir, rawDirName, urlutil.Slugify(county))
}

// writeJSON marshals v and writes it via a temp file rename so readers
// never observe a partial document.
func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}
