package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SearchSegments finds segments whose text contains any of the given terms
// (case-insensitive). With strict enabled, results are narrowed to segments
// of videos where every term matches at least one of that video's hits —
// the multi-word AND semantics of the search frontend.
func (s *Store) SearchSegments(ctx context.Context, terms []string, strict bool) ([]Segment, error) {
	var clean []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}

	conds := make([]string, len(clean))
	args := make([]interface{}, len(clean))
	for i, t := range clean {
		conds[i] = "LOWER(text) LIKE ?"
		args[i] = "%" + strings.ToLower(t) + "%"
	}

	q := s.db.Rebind(fmt.Sprintf(`
		SELECT id, video_id, start_time, end_time, text
		FROM segments WHERE %s
	`, strings.Join(conds, " OR ")))

	var hits []Segment
	if err := s.db.SelectContext(ctx, &hits, q, args...); err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}

	if !strict || len(clean) < 2 {
		return hits, nil
	}
	return strictFilter(hits, clean), nil
}

// strictFilter keeps only hits from videos where each term appears in at
// least one of the video's matched segments.
func strictFilter(hits []Segment, terms []string) []Segment {
	byVideo := map[string][]Segment{}
	for _, h := range hits {
		byVideo[h.VideoID] = append(byVideo[h.VideoID], h)
	}

	pass := map[string]bool{}
	for id, segs := range byVideo {
		ok := true
		for _, term := range terms {
			term = strings.ToLower(term)
			found := false
			for _, seg := range segs {
				if strings.Contains(strings.ToLower(seg.Text), term) {
					found = true
					break
				}
			}
			if !found {
				ok = false
				break
			}
		}
		pass[id] = ok
	}

	var out []Segment
	for _, h := range hits {
		if pass[h.VideoID] {
			out = append(out, h)
		}
	}
	return out
}

// RecordQuery logs one search so the popular-queries endpoint can surface
// recent activity.
func (s *Store) RecordQuery(ctx context.Context, content string, strict bool) error {
	q := s.db.Rebind(`INSERT INTO queries (strict, content, ts) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, strict, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// PopularQueries returns searches logged after the cutoff, newest first.
func (s *Store) PopularQueries(ctx context.Context, since time.Time) ([]SearchQuery, error) {
	var out []SearchQuery
	q := s.db.Rebind(`SELECT strict, content, ts FROM queries WHERE ts > ? ORDER BY ts DESC`)
	if err := s.db.SelectContext(ctx, &out, q, since); err != nil {
		return nil, fmt.Errorf("select queries: %w", err)
	}
	return out, nil
}

// SegmentsTableSize reports the on-disk size of the segments table. Only
// Postgres can answer precisely; other drivers get a row-count fallback.
func (s *Store) SegmentsTableSize(ctx context.Context) (string, error) {
	if s.db.DriverName() == "postgres" {
		var size string
		err := s.db.GetContext(ctx, &size, `SELECT pg_size_pretty(pg_relation_size('segments'))`)
		if err != nil {
			return "", fmt.Errorf("segments table size: %w", err)
		}
		return size, nil
	}

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM segments`); err != nil {
		return "", fmt.Errorf("segments table size: %w", err)
	}
	return fmt.Sprintf("%d rows", n), nil
}

// SummarizePipeline gathers the per-status and per-channel counts used by
// the report export.
func (s *Store) SummarizePipeline(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByStatus:  map[int]int{},
		ByChannel: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarize by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		sum.ByStatus[status] = n
		sum.TotalVideos += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarize by status: %w", err)
	}

	chRows, err := s.db.QueryContext(ctx, `SELECT channel_name, COUNT(1) FROM videos GROUP BY channel_name`)
	if err != nil {
		return nil, fmt.Errorf("summarize by channel: %w", err)
	}
	defer chRows.Close()
	for chRows.Next() {
		var name string
		var n int
		if err := chRows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		sum.ByChannel[name] = n
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("summarize by channel: %w", err)
	}

	if err := s.db.GetContext(ctx, &sum.TotalSegments, `SELECT COUNT(1) FROM segments`); err != nil {
		return nil, fmt.Errorf("count segments: %w", err)
	}
	return sum, nil
}
