package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Transcriber shells out to the whisper CLI to turn audio into text.
type Transcriber struct {
	binary   string
	language string
	model    string
	timeout  time.Duration
}

// NewTranscriber creates a Transcriber. Empty language or model fall back to
// whisper's own defaults.
func NewTranscriber(language, model string) *Transcriber {
	return &Transcriber{
		binary:   "whisper",
		language: language,
		model:    model,
		timeout:  5 * time.Minute,
	}
}

// Transcribe writes the audio to a temp file, runs whisper on it, and reads
// back the generated transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	dir, err := os.MkdirTemp("", "deckhand-audio-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	audioPath := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(audioPath, audio, 0o600); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{audioPath, "--output_format", "txt", "--output_dir", dir}
	if t.language != "" {
		args = append(args, "--language", t.language)
	}
	if t.model != "" {
		args = append(args, "--model", t.model)
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("whisper failed: %w\nOutput: %s", err, string(output))
	}

	transcript := strings.TrimSuffix(audioPath, ext) + ".txt"
	data, err := os.ReadFile(transcript)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
