// Package extract turns attached files into plain text for session
// accumulation. Formats it cannot parse degrade to empty content; an
// attachment never aborts the conversation.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/deckhand/internal/types"
)

// ErrUnsupportedFormat marks file types this extractor cannot parse (binary
// office formats among them). Callers treat it the same as any extraction
// failure: no content.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Downloader fetches the raw bytes of a platform file reference. The chat
// platform client implements this, since downloads need its credentials.
type Downloader interface {
	Download(ctx context.Context, ref types.FileRef) ([]byte, error)
}

// Extractor dispatches on file extension: plain text and markdown pass
// through, HTML is converted to markdown, audio is transcribed, and
// everything else is unsupported.
type Extractor struct {
	downloader  Downloader
	transcriber *Transcriber
}

// New creates an Extractor that fetches files through the given downloader.
// The transcriber may be nil, in which case audio files are unsupported.
func New(downloader Downloader, transcriber *Transcriber) *Extractor {
	return &Extractor{downloader: downloader, transcriber: transcriber}
}

// Extract downloads the file and returns its text content.
func (e *Extractor) Extract(ctx context.Context, ref types.FileRef) (string, error) {
	ext := strings.ToLower(filepath.Ext(ref.Name))

	switch ext {
	case ".txt", ".md":
		data, err := e.downloader.Download(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", ref.Name, err)
		}
		return string(data), nil

	case ".html", ".htm":
		data, err := e.downloader.Download(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", ref.Name, err)
		}
		markdown, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", ref.Name, err)
		}
		return markdown, nil

	case ".mp3", ".m4a", ".wav", ".ogg":
		if e.transcriber == nil {
			return "", fmt.Errorf("%w: %s (no transcriber configured)", ErrUnsupportedFormat, ext)
		}
		data, err := e.downloader.Download(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", ref.Name, err)
		}
		return e.transcriber.Transcribe(ctx, data, ext)

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}
