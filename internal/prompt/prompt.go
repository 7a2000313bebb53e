// Package prompt builds the natural-language instruction sent with each
// audio payload.
package prompt

import (
	"strings"

	"github.com/your-org/mediascribe/internal/domain"
)

// Build returns the instruction for op in the requested format. A non-blank
// language is interpolated verbatim as the spoken language of the audio.
func Build(op domain.Operation, format domain.OutputFormat, language string) string {
	var b strings.Builder

	if op == domain.OperationTranscribe {
		b.WriteString("Act as a speech recognizer expert. ")
	}
	b.WriteString("Listen carefully to the following audio file")
	if lang := strings.TrimSpace(language); lang != "" {
		b.WriteString(" in ")
		b.WriteString(lang)
	}
	b.WriteString(". ")

	switch op {
	case domain.OperationTranslate:
		b.WriteString("Translate it to English in ")
	default:
		b.WriteString("Provide a complete transcript in ")
	}
	b.WriteString(format.Directive())
	b.WriteString(" format.")

	return b.String()
}
