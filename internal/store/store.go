package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"tubescribe/internal/config"
)

// Store is the single synchronization point between the downloader and the
// transcriber: both coordinate exclusively through the videos.status column.
//
// All SQL uses ? bindvars and is rebound for the active driver, so the same
// store runs against Postgres in production and sqlite in tests.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and verifies the connection, retrying the ping
// with exponential backoff so the pipeline can start before the database
// finishes coming up.
func Open(cfg config.DatabaseConfig, log *logrus.Entry) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	log.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"port":   cfg.Port,
		"dbname": cfg.DBName,
	}).Info("connecting to database")

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(db.Ping, bo); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open connection. Used by tests.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// HasVideo reports whether a row with this platform id already exists.
func (s *Store) HasVideo(ctx context.Context, ytID string) (bool, error) {
	var n int
	q := s.db.Rebind(`SELECT COUNT(1) FROM videos WHERE yt_id = ?`)
	if err := s.db.GetContext(ctx, &n, q, ytID); err != nil {
		return false, fmt.Errorf("check video %s: %w", ytID, err)
	}
	return n > 0, nil
}

// InsertVideo records a new video at StatusNew. ProcessedDate is stamped
// with the insertion time when the caller left it zero.
func (s *Store) InsertVideo(ctx context.Context, v *Video) error {
	if v.ProcessedDate.IsZero() {
		v.ProcessedDate = time.Now().UTC()
	}
	v.Status = StatusNew

	q := s.db.Rebind(`
		INSERT INTO videos (yt_id, title, upload_date, channel_name, duration, description, thumbnail, status, processed_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if _, err := s.db.ExecContext(ctx, q,
		v.YtID, v.Title, v.UploadDate, v.ChannelName, v.Duration, v.Description,
		v.Thumbnail, v.Status, v.ProcessedDate); err != nil {
		return fmt.Errorf("insert video %s: %w", v.YtID, err)
	}
	return nil
}

// TransitionStatus performs a conditional status update, guarded on the
// expected prior status. It returns false when the row was not in that
// status; the caller lost a race or the row is at a different stage, and
// must not proceed with side effects tied to the transition.
//
// Guarding every transition this way is what keeps status monotonic: no code
// path can move a row backwards.
func (s *Store) TransitionStatus(ctx context.Context, ytID string, from, to int) (bool, error) {
	q := s.db.Rebind(`UPDATE videos SET status = ? WHERE yt_id = ? AND status = ?`)
	res, err := s.db.ExecContext(ctx, q, to, ytID, from)
	if err != nil {
		return false, fmt.Errorf("transition %s %d->%d: %w", ytID, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition %s %d->%d: %w", ytID, from, to, err)
	}
	return n == 1, nil
}

// VideosByStatus returns a point-in-time snapshot of rows at one stage.
// Rows that enter the stage after the query are not part of the snapshot.
func (s *Store) VideosByStatus(ctx context.Context, status int) ([]Video, error) {
	var out []Video
	q := s.db.Rebind(`
		SELECT id, yt_id, title, upload_date, channel_name, duration, description, thumbnail, status, processed_date
		FROM videos WHERE status = ?
	`)
	if err := s.db.SelectContext(ctx, &out, q, status); err != nil {
		return nil, fmt.Errorf("select videos status=%d: %w", status, err)
	}
	return out, nil
}

// VideoByID fetches one row by platform id, or nil when absent.
func (s *Store) VideoByID(ctx context.Context, ytID string) (*Video, error) {
	var v Video
	q := s.db.Rebind(`
		SELECT id, yt_id, title, upload_date, channel_name, duration, description, thumbnail, status, processed_date
		FROM videos WHERE yt_id = ?
	`)
	err := s.db.GetContext(ctx, &v, q, ytID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get video %s: %w", ytID, err)
	}
	return &v, nil
}

// InsertSegment persists one speech span. Each call is its own statement;
// there is deliberately no multi-row transaction (a crash mid-drain leaves a
// partial set, a documented limitation of the pipeline).
func (s *Store) InsertSegment(ctx context.Context, seg *Segment) error {
	seg.Text = strings.TrimSpace(seg.Text)
	if seg.Text == "" {
		return fmt.Errorf("insert segment for %s: empty text", seg.VideoID)
	}
	if seg.StartTime > seg.EndTime {
		return fmt.Errorf("insert segment for %s: start %d after end %d", seg.VideoID, seg.StartTime, seg.EndTime)
	}

	q := s.db.Rebind(`
		INSERT INTO segments (video_id, start_time, end_time, text)
		VALUES (?, ?, ?, ?)
	`)
	if _, err := s.db.ExecContext(ctx, q, seg.VideoID, seg.StartTime, seg.EndTime, seg.Text); err != nil {
		return fmt.Errorf("insert segment for %s: %w", seg.VideoID, err)
	}
	return nil
}

// SegmentsForVideo returns all segments for one video, in insertion order.
func (s *Store) SegmentsForVideo(ctx context.Context, ytID string) ([]Segment, error) {
	var out []Segment
	q := s.db.Rebind(`
		SELECT id, video_id, start_time, end_time, text
		FROM segments WHERE video_id = ? ORDER BY id ASC
	`)
	if err := s.db.SelectContext(ctx, &out, q, ytID); err != nil {
		return nil, fmt.Errorf("select segments for %s: %w", ytID, err)
	}
	return out, nil
}
