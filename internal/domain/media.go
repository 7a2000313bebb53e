package domain

import (
	"fmt"
	"strings"
)

// Operation selects what the provider does with the audio.
type Operation string

const (
	OperationTranscribe Operation = "transcribe"
	OperationTranslate  Operation = "translate"
)

// ParseOperation accepts "transcribe" or "translate" in any case.
func ParseOperation(raw string) (Operation, error) {
	switch Operation(strings.ToLower(strings.TrimSpace(raw))) {
	case OperationTranscribe:
		return OperationTranscribe, nil
	case OperationTranslate:
		return OperationTranslate, nil
	default:
		return "", fmt.Errorf("unknown operation %q", raw)
	}
}

// OutputFormat is the structural shape requested for the returned text.
type OutputFormat string

const (
	FormatConversational OutputFormat = "conversational"
	FormatParagraph      OutputFormat = "paragraph"
	FormatBulletPoints   OutputFormat = "bullet_points"
	FormatSummary        OutputFormat = "summary"
)

var formatLabels = map[OutputFormat]string{
	FormatConversational: "Conversation style, accurately identify speakers",
	FormatParagraph:      "Paragraph",
	FormatBulletPoints:   "Bullet points",
	FormatSummary:        "Summary",
}

var formatDirectives = map[OutputFormat]string{
	FormatConversational: "conversation style, accurately identifying each speaker",
	FormatParagraph:      "paragraph",
	FormatBulletPoints:   "bullet point",
	FormatSummary:        "summary",
}

// Label is the human-readable name echoed into results and exports.
func (f OutputFormat) Label() string {
	return formatLabels[f]
}

// Directive is the phrase interpolated into the provider prompt.
func (f OutputFormat) Directive() string {
	return formatDirectives[f]
}

// ParseOutputFormat accepts the enum value, its label, or the short keys
// conversation, paragraph, bullet and summary.
func ParseOutputFormat(raw string) (OutputFormat, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch key {
	case "conversation", "conversational":
		return FormatConversational, nil
	case "paragraph":
		return FormatParagraph, nil
	case "bullet", "bullets", "bullet_points", "bulletpoints":
		return FormatBulletPoints, nil
	case "summary":
		return FormatSummary, nil
	}
	for f, label := range formatLabels {
		if strings.EqualFold(label, key) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", raw)
}

// MediaItem is one uploaded audio unit.
type MediaItem struct {
	Name     string
	Data     []byte
	MimeType string
}

// ProcessingRequest governs one batch run and is not modified once the run starts.
type ProcessingRequest struct {
	Operation      Operation    `json:"operation"`
	Format         OutputFormat `json:"format"`
	SourceLanguage string       `json:"source_language,omitempty"`
}

// Validate rejects requests with an unknown operation or format.
func (r ProcessingRequest) Validate() error {
	if _, err := ParseOperation(string(r.Operation)); err != nil {
		return err
	}
	if r.Format.Label() == "" {
		return fmt.Errorf("unknown output format %q", r.Format)
	}
	return nil
}
