package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/parley/internal/protocol"
)

const (
	filePrefix = "interview_"
	fileSuffix = ".json"
)

var (
	// ErrNotFound is returned by Load for an unknown session.
	ErrNotFound = errors.New("archived result not found")
	// ErrInvalidID rejects session ids that cannot name a file.
	ErrInvalidID = errors.New("invalid session id")
)

// Record is one archived interview.
type Record struct {
	SessionID     string                 `json:"session_id" yaml:"session_id"`
	CandidateName string                 `json:"candidate_name,omitempty" yaml:"candidate_name,omitempty"`
	SavedAt       time.Time              `json:"saved_at" yaml:"saved_at"`
	ReportURL     string                 `json:"report_url,omitempty" yaml:"report_url,omitempty"`
	Result        protocol.SessionResult `json:"result" yaml:"result"`
}

// Store archives results as interview_<session>.json files in one directory.
type Store struct {
	dir string
	now func() time.Time
}

// DefaultDir resolves $XDG_DATA_HOME/parley/results, falling back to
// ~/.local/share/parley/results.
func DefaultDir() (string, error) {
	if dataHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); dataHome != "" {
		return filepath.Join(dataHome, "parley", "results"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "parley", "results"), nil
}

// NewStore returns a Store rooted at dir. The directory is created on Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the archive directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes rec and returns the file path. An empty SessionID gets a
// generated one.
func (s *Store) Save(rec Record) (string, error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		rec.SessionID = "local-" + uuid.NewString()
	}
	path, err := s.path(rec.SessionID)
	if err != nil {
		return "", err
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = s.now().UTC()
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create results dir %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".interview-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp result: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write result %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write result %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write result %s: %w", path, err)
	}
	return path, nil
}

// Load reads the archived result for sessionID.
func (s *Store) Load(sessionID string) (Record, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return Record{}, err
	}
	return readRecord(path)
}

// List returns every archived result, newest first.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results dir %s: %w", s.dir, err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		rec, err := readRecord(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		if rec.SessionID == "" {
			rec.SessionID = strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SavedAt.After(records[j].SavedAt)
	})
	return records, nil
}

func (s *Store) path(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, sessionID)
	}
	return filepath.Join(s.dir, filePrefix+id+fileSuffix), nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read result %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode result %s: %w", path, err)
	}
	return rec, nil
}
