package acquire

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"tubescribe/internal/logger"
	"tubescribe/internal/store"
	"tubescribe/internal/ytdlp"
)

// Acquirer records video metadata and downloads audio. It owns the
// StatusNew -> StatusDownloaded half of the pipeline; it never touches rows
// past StatusNew.
type Acquirer struct {
	provider ytdlp.Provider
	store    *store.Store
	dir      string
	log      *logrus.Entry
}

func New(provider ytdlp.Provider, st *store.Store, dir string, log *logger.Logger) *Acquirer {
	return &Acquirer{
		provider: provider,
		store:    st,
		dir:      dir,
		log:      log.WithComponent("acquire"),
	}
}

// Process handles one URL end to end:
//
//  1. ensure the audio directory exists
//  2. fetch metadata (failure skips the item, the database is untouched)
//  3. dedup by platform id (already-known ids are a no-op)
//  4. insert the row at StatusNew, creation time stamped
//  5. download and transcode the audio
//  6. flip StatusNew -> StatusDownloaded
//
// A download failure after step 4 leaves the row at StatusNew. That row is
// not retried by resubmitting the URL (dedup skips it); RetryNew is the
// escape hatch for those.
func (a *Acquirer) Process(ctx context.Context, url string) error {
	log := a.log.WithField("url", url)

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	meta, err := a.provider.FetchMetadata(ctx, url)
	if err != nil {
		log.WithError(err).Warn("metadata extraction failed, skipping")
		return fmt.Errorf("fetch metadata: %w", err)
	}
	log = log.WithField("yt_id", meta.ID)

	known, err := a.store.HasVideo(ctx, meta.ID)
	if err != nil {
		return err
	}
	if known {
		log.Info("video already recorded, skipping")
		return nil
	}

	v := &store.Video{
		YtID:        meta.ID,
		Title:       meta.Title,
		UploadDate:  meta.UploadDate,
		ChannelName: meta.Channel,
		Duration:    meta.Duration,
		Thumbnail:   meta.Thumbnail,
	}
	if err := a.store.InsertVideo(ctx, v); err != nil {
		return err
	}
	log.WithField("title", meta.Title).Info("video recorded")

	if err := a.provider.DownloadAudio(ctx, url, a.dir); err != nil {
		// The row stays at StatusNew; reported, not rolled back.
		log.WithError(err).Error("audio download failed, row left at status 0")
		return fmt.Errorf("download audio: %w", err)
	}

	ok, err := a.store.TransitionStatus(ctx, meta.ID, store.StatusNew, store.StatusDownloaded)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("row no longer at status 0, leaving as-is")
		return nil
	}
	log.Info("audio downloaded")
	return nil
}

// ProcessAll runs Process over urls in order, continuing past per-item
// failures. It returns the number of items that failed.
func (a *Acquirer) ProcessAll(ctx context.Context, urls []string) int {
	failed := 0
	for _, url := range urls {
		a.log.WithField("url", url).Info("processing")
		if err := a.Process(ctx, url); err != nil {
			failed++
			continue
		}
		a.log.WithField("url", url).Info("finished")
	}
	return failed
}

// RetryNew re-attempts the audio download for rows stuck at StatusNew
// (recorded but never downloaded). Returns how many rows were moved to
// StatusDownloaded.
func (a *Acquirer) RetryNew(ctx context.Context) (int, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create audio dir: %w", err)
	}

	stuck, err := a.store.VideosByStatus(ctx, store.StatusNew)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, v := range stuck {
		log := a.log.WithField("yt_id", v.YtID)
		if err := a.provider.DownloadAudio(ctx, WatchURL(v.YtID), a.dir); err != nil {
			log.WithError(err).Error("retry download failed")
			continue
		}
		ok, err := a.store.TransitionStatus(ctx, v.YtID, store.StatusNew, store.StatusDownloaded)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
			log.Info("stuck row recovered")
		}
	}
	return moved, nil
}

// WatchURL reconstructs a watch page URL from a platform id.
func WatchURL(ytID string) string {
	return "https://www.youtube.com/watch?v=" + ytID
}
