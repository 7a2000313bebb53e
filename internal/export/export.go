// Package export writes run results to date-stamped files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const dateLayout = "01_02_06"

// Exporter writes table, text and zip exports into one directory.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger

	// tableMu serializes the read-modify-write of the daily table. Writers
	// in other processes are not coordinated.
	tableMu sync.Mutex
}

// NewExporter writes into dir, creating it on first use.
func NewExporter(dir string, logger *zap.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dir: dir, now: time.Now, logger: logger}
}

// Dir is the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

func (e *Exporter) baseName() string {
	return "Results_" + e.now().Format(dateLayout)
}

func (e *Exporter) ensureDir() error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir %s: %w", e.dir, err)
	}
	return nil
}

// replaceFile writes through a temp file in the target directory and renames
// it over path, so readers never see a partial export.
func (e *Exporter) replaceFile(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
