package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/your-org/mediascribe/internal/domain"
)

// ExportIndividual writes one text file per result into today's zip.
func (e *Exporter) ExportIndividual(results []domain.ProcessingResult) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, e.baseName()+"_individual.zip")

	err := e.replaceFile(path, func(out *os.File) error {
		return WriteIndividual(out, results, e.now())
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteIndividual renders a zip with one text file per result to w.
func WriteIndividual(w io.Writer, results []domain.ProcessingResult, modified time.Time) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(results))
	for _, r := range results {
		header := &zip.FileHeader{
			Name:     entryName(r.SourceName, seen),
			Method:   zip.Deflate,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("add %s: %w", header.Name, err)
		}
		if _, err := fmt.Fprintf(fw, "Transcript/Translation:\n%s\n\nSentiment: %s", r.Text, r.Sentiment); err != nil {
			return fmt.Errorf("write %s: %w", header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

// entryName replaces spaces with underscores and suffixes repeats so two
// uploads with the same name do not collide.
func entryName(source string, seen map[string]int) string {
	base := strings.ReplaceAll(filepath.Base(source), " ", "_")
	seen[base]++
	if n := seen[base]; n > 1 {
		return fmt.Sprintf("%s_%d.txt", base, n)
	}
	return base + ".txt"
}
