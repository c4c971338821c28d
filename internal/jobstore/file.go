package jobstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/elegant-foods/costing-cli/internal/model"
)

// FileStore implements Store with one JSON file per job ID inside a
// directory, using write-temp-then-rename so a crash mid-save never leaves a
// partially written record behind.
type FileStore struct {
	dir string
}

// NewFile creates a FileStore rooted at dir, creating it if needed.
func NewFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "jobstore: create dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

func (s *FileStore) Load(_ context.Context, jobID string) (*model.Job, error) {
	data, err := os.ReadFile(s.path(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "read %s: %v", s.path(jobID), err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "decode %s: %v", s.path(jobID), err)
	}
	if err := job.Validate(); err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "validate %s: %v", s.path(jobID), err)
	}
	return &job, nil
}

func (s *FileStore) Save(_ context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return eris.Wrap(ErrWrite, "job has no ID")
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return eris.Wrapf(ErrWrite, "encode job %s: %v", job.ID, err)
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(s.dir, job.ID+".*.tmp")
	if err != nil {
		return eris.Wrapf(ErrWrite, "create temp: %v", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(ErrWrite, "write temp: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrapf(ErrWrite, "sync temp: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(ErrWrite, "close temp: %v", err)
	}

	if err := os.Rename(tmpName, s.path(job.ID)); err != nil {
		return eris.Wrapf(ErrWrite, "rename into place: %v", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(ErrWrite, "delete %s: %v", s.path(jobID), err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
