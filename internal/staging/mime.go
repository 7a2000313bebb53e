package staging

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// DefaultMimeType is used when neither the name nor the content identify the audio.
const DefaultMimeType = "audio/wav"

var extensionMimeTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

var tagMimeTypes = map[tag.FileType]string{
	tag.MP3:  "audio/mpeg",
	tag.FLAC: "audio/flac",
	tag.OGG:  "audio/ogg",
	tag.M4A:  "audio/mp4",
	tag.ALAC: "audio/mp4",
}

// AcceptedExtension reports whether the upload boundary takes files named like name.
func AcceptedExtension(name string) bool {
	_, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// AcceptedExtensions lists the extensions in a stable order for error messages.
func AcceptedExtensions() []string {
	return []string{".wav", ".mp3", ".flac", ".ogg", ".m4a"}
}

// DetectMimeType infers a MIME type from a declared value, the file
// extension, then the leading bytes. Generic declared types are ignored.
func DetectMimeType(name, declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if strings.HasPrefix(declared, "audio/") {
		return declared
	}

	if mt, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}

	if isWAV(data) {
		return "audio/wav"
	}
	if len(data) > 0 {
		if _, fileType, err := tag.Identify(bytes.NewReader(data)); err == nil {
			if mt, ok := tagMimeTypes[fileType]; ok {
				return mt
			}
		}
	}

	return DefaultMimeType
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
