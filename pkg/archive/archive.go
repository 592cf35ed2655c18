// Package archive retains a normalized copy of every executed import on
// the local filesystem, one artifact per run, so past imports can be
// audited or replayed.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is the metadata sidecar of one archived import.
type Entry struct {
	RunID      uuid.UUID `json:"run_id"`
	SourceName string    `json:"source_name"` // original upload filename
	Size       int64     `json:"size"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archive stores one normalized CSV per import run under
// basePath/<userID>/<runID>.csv with a JSON sidecar next to it.
type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// Save writes the normalized artifact of one run. Saving the same run
// again overwrites the previous artifact.
func (a *Archive) Save(userID, runID uuid.UUID, sourceName string, r io.Reader) (*Entry, error) {
	userDir := filepath.Join(a.basePath, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("create user archive: %w", err)
	}

	path := a.artifactPath(userID, runID)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	entry := &Entry{
		RunID:      runID,
		SourceName: sanitizeName(sourceName),
		Size:       size,
		ArchivedAt: time.Now().UTC(),
	}
	if err := a.writeSidecar(userID, runID, entry); err != nil {
		os.Remove(path)
		return nil, err
	}
	return entry, nil
}

// Open returns the archived artifact of a run for reading.
func (a *Archive) Open(userID, runID uuid.UUID) (io.ReadCloser, *Entry, error) {
	entry, err := a.readSidecar(userID, runID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(a.artifactPath(userID, runID))
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, entry, nil
}

// List returns the archive entries of one user, unordered.
func (a *Archive) List(userID uuid.UUID) ([]*Entry, error) {
	userDir := filepath.Join(a.basePath, userID.String())
	items, err := os.ReadDir(userDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	var entries []*Entry
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), ".json") {
			continue
		}
		runID, err := uuid.Parse(strings.TrimSuffix(item.Name(), ".json"))
		if err != nil {
			continue
		}
		entry, err := a.readSidecar(userID, runID)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove deletes a run's artifact and sidecar.
func (a *Archive) Remove(userID, runID uuid.UUID) error {
	if err := os.Remove(a.artifactPath(userID, runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	if err := os.Remove(a.sidecarPath(userID, runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove sidecar: %w", err)
	}
	return nil
}

func (a *Archive) artifactPath(userID, runID uuid.UUID) string {
	return filepath.Join(a.basePath, userID.String(), runID.String()+".csv")
}

func (a *Archive) sidecarPath(userID, runID uuid.UUID) string {
	return filepath.Join(a.basePath, userID.String(), runID.String()+".json")
}

func (a *Archive) writeSidecar(userID, runID uuid.UUID, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := os.WriteFile(a.sidecarPath(userID, runID), data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func (a *Archive) readSidecar(userID, runID uuid.UUID) (*Entry, error) {
	data, err := os.ReadFile(a.sidecarPath(userID, runID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("run %s not archived", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	return &entry, nil
}

// sanitizeName strips path separators and control characters from the
// original upload name before it lands in a sidecar.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}
