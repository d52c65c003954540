package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Sentinels substituted for metadata fields the extractor could not supply.
// The platform id has no sentinel: without it there is nothing to key on.
const (
	UnknownTitle   = "Unknown Title"
	UnknownChannel = "Unknown Channel"
	NoThumbnail    = "No thumbnail available"
)

// Metadata is the subset of extractor output the pipeline records.
type Metadata struct {
	ID         string
	Title      string
	UploadDate *time.Time // nil when absent or unparseable
	Channel    string
	Duration   int
	Thumbnail  string
}

// DownloadError marks failures raised by the downloader subprocess, as
// opposed to errors preparing or parsing its invocation. Callers match it
// with errors.As to apply the download-specific handling.
type DownloadError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("yt-dlp %s: %s", e.URL, e.Stderr)
	}
	return fmt.Sprintf("yt-dlp %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Provider is the metadata/download contract the acquisition component
// consumes. Tests substitute a fake.
type Provider interface {
	FetchMetadata(ctx context.Context, url string) (*Metadata, error)
	DownloadAudio(ctx context.Context, url, dir string) error
}

// Client shells out to the yt-dlp binary.
type Client struct {
	bin string
}

func NewClient(bin string) *Client {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &Client{bin: bin}
}

type infoJSON struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	UploadDate string  `json:"upload_date"` // YYYYMMDD
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
}

// FetchMetadata runs an info-only extraction (no download) and maps the
// result, substituting sentinels for missing fields.
func (c *Client) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, c.bin, "-J", "--no-warnings", url)
	out, err := cmd.Output()
	if err != nil {
		return nil, &DownloadError{URL: url, Stderr: stderrTail(err), Err: err}
	}
	return parseMetadata(out)
}

func parseMetadata(raw []byte) (*Metadata, error) {
	var info infoJSON
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if info.ID == "" {
		return nil, errors.New("metadata has no video id")
	}

	m := &Metadata{
		ID:        info.ID,
		Title:     info.Title,
		Channel:   info.Uploader,
		Duration:  int(info.Duration),
		Thumbnail: info.Thumbnail,
	}
	if m.Title == "" {
		m.Title = UnknownTitle
	}
	if m.Channel == "" {
		m.Channel = UnknownChannel
	}
	if m.Thumbnail == "" {
		m.Thumbnail = NoThumbnail
	}
	if t, err := time.Parse("20060102", info.UploadDate); err == nil {
		m.UploadDate = &t
	}
	return m, nil
}

// DownloadAudio fetches the best audio stream for url and transcodes it to
// mono-track mp3 at 192K, writing <dir>/<id>.mp3.
func (c *Client) DownloadAudio(ctx context.Context, url, dir string) error {
	outTmpl := filepath.Join(dir, "%(id)s.%(ext)s")
	cmd := exec.CommandContext(ctx, c.bin,
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"-o", outTmpl,
		"--no-warnings",
		url,
	)
	if err := cmd.Run(); err != nil {
		return &DownloadError{URL: url, Stderr: stderrTail(err), Err: err}
	}
	return nil
}

// stderrTail pulls the last stderr line out of an ExitError, which is where
// yt-dlp puts its actual failure reason.
func stderrTail(err error) string {
	var ee *exec.ExitError
	if !errors.As(err, &ee) || len(ee.Stderr) == 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(ee.Stderr)), "\n")
	return lines[len(lines)-1]
}
