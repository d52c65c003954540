package drain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tubescribe/internal/acquire"
	"tubescribe/internal/logger"
	"tubescribe/internal/store"
	"tubescribe/internal/transcribe"
	"tubescribe/internal/ytdlp"
)

// e2eProvider resolves one canned video and writes its audio file.
type e2eProvider struct {
	meta *ytdlp.Metadata
}

func (p *e2eProvider) FetchMetadata(_ context.Context, _ string) (*ytdlp.Metadata, error) {
	return p.meta, nil
}

func (p *e2eProvider) DownloadAudio(_ context.Context, _, dir string) error {
	return os.WriteFile(filepath.Join(dir, p.meta.ID+".mp3"), []byte("audio"), 0o644)
}

// Full pipeline pass: acquisition records and downloads, drain transcribes
// and cleans up, and the row walks 0 -> 1 -> 2.
func TestPipelineEndToEnd(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	ctx := context.Background()
	log := logger.New()

	provider := &e2eProvider{meta: &ytdlp.Metadata{
		ID:        "abc12345678",
		Title:     "Test Video",
		Channel:   "Test Channel",
		Duration:  120,
		Thumbnail: "https://example.com/t.jpg",
	}}

	acq := acquire.New(provider, st, dir, log)
	url := "https://www.youtube.com/watch?v=abc12345678"
	if err := acq.Process(ctx, url); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	v, err := st.VideoByID(ctx, "abc12345678")
	if err != nil {
		t.Fatalf("VideoByID: %v", err)
	}
	if v == nil || v.Status != store.StatusDownloaded {
		t.Fatalf("after acquisition row = %+v, want status 1", v)
	}
	audioPath := filepath.Join(dir, "abc12345678.mp3")
	if _, err := os.Stat(audioPath); err != nil {
		t.Fatalf("audio file missing after acquisition: %v", err)
	}

	ft := &fakeTranscriber{out: map[string]*transcribe.Transcript{
		"abc12345678.mp3": {Segments: []transcribe.Segment{
			{Start: 0.0, End: 4.2, Text: "hello and welcome to the test video"},
		}},
	}}
	d := New(st, ft, dir, log)
	if err := d.Run(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	v, _ = st.VideoByID(ctx, "abc12345678")
	if v.Status != store.StatusProcessed {
		t.Errorf("final status = %d, want 2", v.Status)
	}
	if _, err := os.Stat(audioPath); !os.IsNotExist(err) {
		t.Errorf("audio file not purged: %v", err)
	}

	segs, err := st.SegmentsForVideo(ctx, "abc12345678")
	if err != nil {
		t.Fatalf("SegmentsForVideo: %v", err)
	}
	if len(segs) == 0 {
		t.Fatal("expected at least one segment")
	}
	if segs[0].StartTime >= segs[0].EndTime {
		t.Errorf("segment range %d-%d, want start < end", segs[0].StartTime, segs[0].EndTime)
	}
}
