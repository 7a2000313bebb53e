package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/your-org/mediascribe/internal/domain"
)

// StagingError reports that an item could not be written to or read from
// its temporary file.
type StagingError struct {
	Source string
	Op     string
	Err    error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// StagedMedia is a temporary file owned by exactly one processing call.
type StagedMedia struct {
	Path     string
	MimeType string
	Size     int64

	remove func(string) error
	once   sync.Once
	err    error
}

// Release deletes the temporary file. Repeated calls return the first result.
func (m *StagedMedia) Release() error {
	if m == nil {
		return nil
	}
	m.once.Do(func() {
		if err := m.remove(m.Path); err != nil && !os.IsNotExist(err) {
			m.err = err
		}
	})
	return m.err
}

// Stager writes uploaded items to per-item temporary files.
type Stager struct {
	dir        string
	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(name string) error
}

// NewStager stages files under dir; an empty dir uses the OS temp directory.
func NewStager(dir string) *Stager {
	return &Stager{
		dir:        dir,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewStagerForTests allows injecting file operations from other packages' tests.
func NewStagerForTests(dir string, createTemp func(dir, pattern string) (*os.File, error), remove func(name string) error) *Stager {
	return &Stager{
		dir:        dir,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Stage writes item to a fresh temporary file. The caller must Release it.
func (s *Stager) Stage(item domain.MediaItem) (*StagedMedia, error) {
	f, err := s.createTemp(s.dir, tempPattern(item.Name))
	if err != nil {
		return nil, &StagingError{Source: item.Name, Op: "create temp file", Err: err}
	}

	staged := &StagedMedia{
		Path:     f.Name(),
		MimeType: DetectMimeType(item.Name, item.MimeType, item.Data),
		remove:   s.remove,
	}

	n, writeErr := f.Write(item.Data)
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = staged.Release()
		return nil, &StagingError{Source: item.Name, Op: "write temp file", Err: writeErr}
	}
	staged.Size = int64(n)

	return staged, nil
}

// With stages item, runs fn, and releases the file on every exit path.
func (s *Stager) With(item domain.MediaItem, fn func(*StagedMedia) error) (err error) {
	staged, err := s.Stage(item)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := staged.Release(); relErr != nil && err == nil {
			err = &StagingError{Source: item.Name, Op: "remove temp file", Err: relErr}
		}
	}()
	return fn(staged)
}

// tempPattern keeps the original extension so providers that sniff by
// name still see it.
func tempPattern(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || strings.ContainsAny(ext, `/\*`) {
		ext = ".wav"
	}
	return "mediascribe-*" + ext
}
