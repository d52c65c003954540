package drain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tubescribe/internal/logger"
	"tubescribe/internal/store"
	"tubescribe/internal/transcribe"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE videos (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			yt_id          TEXT UNIQUE NOT NULL,
			title          TEXT,
			upload_date    DATE,
			channel_name   TEXT,
			duration       INTEGER,
			description    TEXT,
			thumbnail      TEXT,
			status         INTEGER NOT NULL DEFAULT 0,
			processed_date TIMESTAMP
		);
		CREATE TABLE segments (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id   TEXT NOT NULL,
			start_time INTEGER,
			end_time   INTEGER,
			text       TEXT
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return store.NewWithDB(db)
}

// seedDownloaded inserts a row at StatusDownloaded and drops its audio file
// into dir.
func seedDownloaded(t *testing.T, st *store.Store, dir, ytID string) {
	t.Helper()
	ctx := context.Background()

	v := &store.Video{YtID: ytID, Title: "Test Video", ChannelName: "Test Channel", Duration: 120}
	if err := st.InsertVideo(ctx, v); err != nil {
		t.Fatalf("InsertVideo: %v", err)
	}
	if _, err := st.TransitionStatus(ctx, ytID, store.StatusNew, store.StatusDownloaded); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ytID+".mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
}

// fakeTranscriber serves canned transcripts keyed by audio file base name.
type fakeTranscriber struct {
	out   map[string]*transcribe.Transcript
	errOn map[string]error
	calls []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (*transcribe.Transcript, error) {
	base := filepath.Base(audioPath)
	f.calls = append(f.calls, base)
	if err := f.errOn[base]; err != nil {
		return nil, err
	}
	if tr, ok := f.out[base]; ok {
		return tr, nil
	}
	return &transcribe.Transcript{}, nil
}

func TestRunPersistsSegmentsAndCleansUp(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	seedDownloaded(t, st, dir, "abc12345678")

	ft := &fakeTranscriber{out: map[string]*transcribe.Transcript{
		"abc12345678.mp3": {Segments: []transcribe.Segment{
			{Start: 0.2, End: 4.6, Text: " hello and welcome "},
			{Start: 4.6, End: 9.1, Text: "to the test video"},
		}},
	}}
	d := New(st, ft, dir, logger.New())

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	segs, err := st.SegmentsForVideo(ctx, "abc12345678")
	if err != nil {
		t.Fatalf("SegmentsForVideo: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	// Rounded to nearest whole second, text trimmed.
	if segs[0].StartTime != 0 || segs[0].EndTime != 5 {
		t.Errorf("segs[0] = %d-%d, want 0-5", segs[0].StartTime, segs[0].EndTime)
	}
	if segs[0].Text != "hello and welcome" {
		t.Errorf("segs[0].Text = %q", segs[0].Text)
	}
	if segs[1].StartTime != 5 || segs[1].EndTime != 9 {
		t.Errorf("segs[1] = %d-%d, want 5-9", segs[1].StartTime, segs[1].EndTime)
	}

	v, _ := st.VideoByID(ctx, "abc12345678")
	if v.Status != store.StatusProcessed {
		t.Errorf("status = %d, want %d", v.Status, store.StatusProcessed)
	}
	if _, err := os.Stat(filepath.Join(dir, "abc12345678.mp3")); !os.IsNotExist(err) {
		t.Errorf("audio file still present: %v", err)
	}
}

func TestRunFiltersEmptySegments(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	seedDownloaded(t, st, dir, "abc12345678")

	ft := &fakeTranscriber{out: map[string]*transcribe.Transcript{
		"abc12345678.mp3": {Segments: []transcribe.Segment{
			{Start: 0, End: 2, Text: "   "},
			{Start: 2, End: 4, Text: ""},
			{Start: 4, End: 6, Text: "kept"},
			{Start: 9, End: 3, Text: "inverted range"},
		}},
	}}
	d := New(st, ft, dir, logger.New())

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	segs, err := st.SegmentsForVideo(ctx, "abc12345678")
	if err != nil {
		t.Fatalf("SegmentsForVideo: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Text != "kept" {
		t.Errorf("text = %q, want kept", segs[0].Text)
	}

	// Filtering everything still completes the video.
	v, _ := st.VideoByID(ctx, "abc12345678")
	if v.Status != store.StatusProcessed {
		t.Errorf("status = %d, want %d", v.Status, store.StatusProcessed)
	}
}

func TestRunIsolatesPerVideoFailure(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	seedDownloaded(t, st, dir, "failing0000")
	seedDownloaded(t, st, dir, "working0000")

	ft := &fakeTranscriber{
		out: map[string]*transcribe.Transcript{
			"working0000.mp3": {Segments: []transcribe.Segment{{Start: 0, End: 3, Text: "fine"}}},
		},
		errOn: map[string]error{
			"failing0000.mp3": errors.New("model exploded"),
		},
	}
	d := New(st, ft, dir, logger.New())

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ft.calls) != 2 {
		t.Fatalf("transcriber called %d times, want 2", len(ft.calls))
	}

	// The failing video stays downloadable for a future pass, file intact.
	v, _ := st.VideoByID(ctx, "failing0000")
	if v.Status != store.StatusDownloaded {
		t.Errorf("failing status = %d, want %d", v.Status, store.StatusDownloaded)
	}
	if _, err := os.Stat(filepath.Join(dir, "failing0000.mp3")); err != nil {
		t.Errorf("failing video's audio was removed: %v", err)
	}

	v, _ = st.VideoByID(ctx, "working0000")
	if v.Status != store.StatusProcessed {
		t.Errorf("working status = %d, want %d", v.Status, store.StatusProcessed)
	}
}

func TestRunSkipsCleanupWhenClaimLost(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	seedDownloaded(t, st, dir, "abc12345678")

	// Another drain finishes the row between our snapshot and our claim.
	claimed := &fakeTranscriber{out: map[string]*transcribe.Transcript{
		"abc12345678.mp3": {Segments: []transcribe.Segment{{Start: 0, End: 3, Text: "late"}}},
	}}
	d := New(st, claimed, dir, logger.New())

	if _, err := st.TransitionStatus(ctx, "abc12345678", store.StatusDownloaded, store.StatusProcessed); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	if err := d.processOne(ctx, "abc12345678"); err != nil {
		t.Fatalf("processOne: %v", err)
	}

	// The loser must not delete the file; only the claim winner owns it.
	if _, err := os.Stat(filepath.Join(dir, "abc12345678.mp3")); err != nil {
		t.Errorf("audio removed by losing drain: %v", err)
	}
}

func TestRunEmptySnapshot(t *testing.T) {
	st := newTestStore(t)
	d := New(st, &fakeTranscriber{}, t.TempDir(), logger.New())

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
