package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/your-org/mediascribe/internal/domain"
)

var ruleLine = strings.Repeat("-", 50)

// ExportText writes today's flat-text report, replacing any previous one.
func (e *Exporter) ExportText(results []domain.ProcessingResult) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, e.baseName()+".txt")

	err := e.replaceFile(path, func(out *os.File) error {
		return WriteText(out, results)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteText renders the text report for results to w.
func WriteText(w io.Writer, results []domain.ProcessingResult) error {
	bw := bufio.NewWriter(w)
	for _, r := range results {
		fmt.Fprintf(bw, "Audio File Name: %s\n", r.SourceName)
		fmt.Fprintf(bw, "Transcript/Translation: %s\n", r.Text)
		fmt.Fprintf(bw, "Format Chosen: %s\n", r.FormatLabel)
		fmt.Fprintf(bw, "Sentiment: %s\n", r.Sentiment)
		fmt.Fprintf(bw, "\n%s\n\n", ruleLine)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}
	return nil
}
