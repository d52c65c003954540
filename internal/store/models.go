package store

import (
	"database/sql"
	"time"
)

// Pipeline stages for a video row. Transitions are monotonic: a row only
// ever moves New -> Downloaded -> Processed.
const (
	StatusNew        = 0 // metadata recorded, audio not yet fetched
	StatusDownloaded = 1 // audio on disk, awaiting transcription
	StatusProcessed  = 2 // segments persisted, audio purged
)

// Video is one row per distinct source video, keyed by the platform id.
//
// ProcessedDate is stamped at insertion time, not at completion. The name is
// inherited from the original schema and kept as-is; see DESIGN.md.
type Video struct {
	ID            int64          `db:"id"`
	YtID          string         `db:"yt_id"`
	Title         string         `db:"title"`
	UploadDate    *time.Time     `db:"upload_date"`
	ChannelName   string         `db:"channel_name"`
	Duration      int            `db:"duration"`
	Description   sql.NullString `db:"description"`
	Thumbnail     string         `db:"thumbnail"`
	Status        int            `db:"status"`
	ProcessedDate time.Time      `db:"processed_date"`
}

// Segment is one contiguous span of recognized speech. Rows are written in
// bulk during one transcription pass and never updated or deleted.
type Segment struct {
	ID        int64  `db:"id" json:"id"`
	VideoID   string `db:"video_id" json:"video_id"`
	StartTime int    `db:"start_time" json:"start_time"`
	EndTime   int    `db:"end_time" json:"end_time"`
	Text      string `db:"text" json:"text"`
}

// SearchQuery is one logged search, used by the popular-queries endpoint.
type SearchQuery struct {
	Strict  bool      `db:"strict" json:"strict"`
	Content string    `db:"content" json:"content"`
	TS      time.Time `db:"ts" json:"ts"`
}

// Summary is a point-in-time snapshot of pipeline state for reporting.
type Summary struct {
	TotalVideos   int
	ByStatus      map[int]int
	ByChannel     map[string]int
	TotalSegments int
}
