package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/domain"
)

// WhisperConfig configures the local whisper.cpp backend.
type WhisperConfig struct {
	Binary    string
	FFmpeg    string
	ModelPath string
	TempDir   string
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Whisper runs ffmpeg normalisation and whisper.cpp on the local machine.
// The model path is resolved once at construction, but whisper-cli loads the
// model again for every call. Large batches are better served by a resident
// whisper-server started with --inference-path /v1/audio/transcriptions and
// reached through PROVIDER=openai with OPENAI_BASE_URL.
type Whisper struct {
	binary    string
	ffmpeg    string
	modelPath string
	tempDir   string
	runner    commandRunner
	logger    *zap.Logger
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	readFile  func(name string) ([]byte, error)
}

// NewWhisper validates the model location and returns a ready backend.
func NewWhisper(cfg WhisperConfig, logger *zap.Logger) (*Whisper, error) {
	modelPath, err := resolveModelPath(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("whisper model resolved", zap.String("model", modelPath))
	logger.Warn("whisper-cli reloads the model for every file; use whisper-server via OPENAI_BASE_URL for large batches",
		zap.String("binary", cfg.Binary),
	)
	return &Whisper{
		binary:    cfg.Binary,
		ffmpeg:    cfg.FFmpeg,
		modelPath: modelPath,
		tempDir:   cfg.TempDir,
		runner:    &execRunner{},
		logger:    logger,
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		readFile:  os.ReadFile,
	}, nil
}

func (w *Whisper) Name() string { return "whisper" }

// Process converts the staged file to 16 kHz mono PCM and transcribes it.
// Translate maps to whisper's built-in translate-to-English mode; the
// instruction prompt has no equivalent in a pure speech model.
func (w *Whisper) Process(ctx context.Context, call Call) (string, error) {
	workDir, err := w.mkdirTemp(w.tempDir, "mediascribe-whisper-*")
	if err != nil {
		return "", &ProviderError{Provider: w.Name(), Message: "create workspace", Err: err}
	}
	defer func() {
		if err := w.removeAll(workDir); err != nil {
			w.logger.Warn("whisper workspace cleanup failed", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	wavPath := filepath.Join(workDir, "input-16k-mono.wav")
	res, err := w.runner.Run(ctx, w.ffmpeg, buildFFmpegArgs(call.Path, wavPath)...)
	if err != nil {
		return "", classify(w.Name(), fmt.Errorf("ffmpeg exit %d: %w: %s", res.ExitCode, err, strings.TrimSpace(res.Stderr)))
	}

	outBase := filepath.Join(workDir, "transcript")
	args := buildWhisperArgs(w.modelPath, wavPath, outBase, call.Language, call.Operation == domain.OperationTranslate)
	res, err = w.runner.Run(ctx, w.binary, args...)
	if err != nil {
		return "", classify(w.Name(), fmt.Errorf("whisper exit %d: %w: %s", res.ExitCode, err, strings.TrimSpace(res.Stderr)))
	}

	content, err := w.readFile(outBase + ".txt")
	if err != nil {
		return "", &ProviderError{Provider: w.Name(), Message: "transcript file missing", Err: err}
	}

	return finish(w.Name(), string(content))
}

// resolveModelPath returns a model file from a file or directory path.
// Directories are scanned for .bin/.gguf files and the first name wins.
func resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("whisper model path is required")
	}

	info, err := os.Stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access whisper model path %s: %w", modelPath, err)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := os.ReadDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory %s: %w", modelPath, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in %s", modelPath)
	}

	sort.Strings(names)
	return filepath.Join(modelPath, names[0]), nil
}

func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

func buildWhisperArgs(modelPath, audioPath, outBase, language string, translate bool) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-otxt",
		"-np",
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	if translate {
		args = append(args, "-tr")
	}
	return args
}

// normalizeLanguage maps "auto", blank and free-form names to no override;
// whisper.cpp only understands short language codes.
func normalizeLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if lang == "" || lang == "auto" || len(lang) > 3 {
		return ""
	}
	return lang
}
