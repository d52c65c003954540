package drain

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"tubescribe/internal/logger"
	"tubescribe/internal/store"
	"tubescribe/internal/transcribe"
)

// Drainer runs speech-to-text over every video sitting at StatusDownloaded,
// persists the resulting segments, and purges the consumed audio. It owns
// the StatusDownloaded -> StatusProcessed half of the pipeline.
type Drainer struct {
	store       *store.Store
	transcriber transcribe.Transcriber
	dir         string
	log         *logrus.Entry
}

func New(st *store.Store, tr transcribe.Transcriber, dir string, log *logger.Logger) *Drainer {
	return &Drainer{
		store:       st,
		transcriber: tr,
		dir:         dir,
		log:         log.WithComponent("drain"),
	}
}

// Run drains one snapshot of StatusDownloaded rows. Rows that reach that
// status during the pass are left for the next run. A failure on one video
// logs, leaves that row at StatusDownloaded for a later pass, and moves on.
func (d *Drainer) Run(ctx context.Context) error {
	videos, err := d.store.VideosByStatus(ctx, store.StatusDownloaded)
	if err != nil {
		return fmt.Errorf("snapshot downloaded videos: %w", err)
	}
	d.log.WithField("count", len(videos)).Info("draining downloaded videos")

	failed := 0
	for _, v := range videos {
		if err := d.processOne(ctx, v.YtID); err != nil {
			d.log.WithField("yt_id", v.YtID).WithError(err).Error("video failed, left for retry")
			failed++
		}
	}

	d.log.WithFields(logrus.Fields{
		"processed": len(videos) - failed,
		"failed":    failed,
	}).Info("drain finished")
	return nil
}

func (d *Drainer) processOne(ctx context.Context, ytID string) error {
	log := d.log.WithField("yt_id", ytID)
	audioPath := d.AudioPath(ytID)

	tr, err := d.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	kept := 0
	for _, seg := range tr.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := int(math.Round(seg.Start))
		end := int(math.Round(seg.End))
		if start > end {
			log.WithFields(logrus.Fields{"start": seg.Start, "end": seg.End}).Warn("malformed segment, dropped")
			continue
		}
		// Committed one at a time; a crash here leaves a partial set with
		// the row still at StatusDownloaded. Known re-run hazard.
		err := d.store.InsertSegment(ctx, &store.Segment{
			VideoID:   ytID,
			StartTime: start,
			EndTime:   end,
			Text:      text,
		})
		if err != nil {
			return err
		}
		kept++
	}
	log.WithField("segments", kept).Info("segments persisted")

	// Commit the status flip before touching the file: if the process dies
	// between the two, the worst case is a leftover mp3, not lost data.
	ok, err := d.store.TransitionStatus(ctx, ytID, store.StatusDownloaded, store.StatusProcessed)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("row claimed by another drain, skipping cleanup")
		return nil
	}

	if err := os.Remove(audioPath); err != nil {
		log.WithError(err).Warn("audio cleanup failed")
	}
	return nil
}

// AudioPath is where the acquisition component leaves the audio for ytID.
func (d *Drainer) AudioPath(ytID string) string {
	return filepath.Join(d.dir, ytID+".mp3")
}
