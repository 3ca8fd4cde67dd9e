package delivery

import (
	"context"
	"testing"

	"github.com/user/deckhand/internal/types"
)

type recordingDownloader struct {
	refs []types.FileRef
}

func (d *recordingDownloader) Download(_ context.Context, ref types.FileRef) ([]byte, error) {
	d.refs = append(d.refs, ref)
	return []byte("content from " + ref.Platform), nil
}

func TestDownloadRoutesByPlatform(t *testing.T) {
	slack := &recordingDownloader{}
	telegram := &recordingDownloader{}

	dl := NewDownloads()
	dl.Register("slack", slack)
	dl.Register("telegram", telegram)

	data, err := dl.Download(context.Background(), types.FileRef{Platform: "slack", Name: "notes.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content from slack" {
		t.Errorf("got %q", data)
	}
	if len(slack.refs) != 1 || len(telegram.refs) != 0 {
		t.Errorf("slack saw %d refs, telegram saw %d", len(slack.refs), len(telegram.refs))
	}
}

func TestDownloadUnknownPlatform(t *testing.T) {
	dl := NewDownloads()
	if _, err := dl.Download(context.Background(), types.FileRef{Platform: "matrix"}); err == nil {
		t.Error("expected error for unregistered platform")
	}
}
