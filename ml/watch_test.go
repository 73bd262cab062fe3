package ml

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

func TestWatchArtifact(t *testing.T) {
	p := trainSynthetic(t)
	path := filepath.Join(t.TempDir(), "pipeline.bin")
	if err := p.Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan fsnotify.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchArtifact(ctx, path, zap.NewNop(), func(e fsnotify.Event) {
			select {
			case events <- e:
			default:
			}
		})
	}()

	// The watcher registers asynchronously; keep replacing the file until it reports.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for seen := false; !seen; {
		select {
		case e := <-events:
			if filepath.Clean(e.Name) != filepath.Clean(path) {
				t.Fatalf("event for unrelated file %s", e.Name)
			}
			seen = true
		case <-tick.C:
			if err := p.Save(path); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no change reported")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
