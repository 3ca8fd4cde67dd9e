package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/deckhand/internal/types"
)

// PlatformDownloader fetches file bytes using one platform's credentials.
type PlatformDownloader interface {
	Download(ctx context.Context, ref types.FileRef) ([]byte, error)
}

// Downloads dispatches file downloads on the file reference's platform, the
// same way Registry dispatches outbound messages.
type Downloads struct {
	mu          sync.RWMutex
	downloaders map[string]PlatformDownloader
}

// NewDownloads creates an empty download multiplexer.
func NewDownloads() *Downloads {
	return &Downloads{
		downloaders: make(map[string]PlatformDownloader),
	}
}

// Register adds a downloader for the given platform.
func (d *Downloads) Register(platform string, downloader PlatformDownloader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloaders[platform] = downloader
}

// Download fetches the file through the downloader registered for its
// platform. Returns an error if none is registered.
func (d *Downloads) Download(ctx context.Context, ref types.FileRef) ([]byte, error) {
	d.mu.RLock()
	downloader, ok := d.downloaders[ref.Platform]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no downloader for platform: %s", ref.Platform)
	}
	return downloader.Download(ctx, ref)
}
