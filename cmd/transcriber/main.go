package main

import (
	"context"
	"flag"

	"tubescribe/internal/config"
	"tubescribe/internal/drain"
	"tubescribe/internal/logger"
	"tubescribe/internal/report"
	"tubescribe/internal/store"
	"tubescribe/internal/transcribe"
)

func main() {
	var reportPath string
	flag.StringVar(&reportPath, "report", "", "Write an xlsx pipeline report to this path after the drain")
	flag.Parse()

	cfg := config.Load()
	log := logger.New()
	log.WithField("service", "tubescribe-transcriber").Info("starting")

	st, err := store.Open(cfg.DB, log.WithComponent("store"))
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer st.Close()

	ctx := context.Background()

	var backend transcribe.Transcriber
	switch cfg.WhisperBackend {
	case "remote":
		if cfg.TranscribeURL == "" {
			log.Fatal("remote backend selected but TRANSCRIBE_URL is not set")
		}
		backend = transcribe.NewRemoteBackend(cfg.TranscribeURL, cfg.WhisperModel)
	case "local":
		backend = transcribe.NewWhisperBackend(cfg.WhisperModel)
	default:
		log.WithField("backend", cfg.WhisperBackend).Fatal("unknown whisper backend")
	}

	d := drain.New(st, backend, cfg.VideosDir, log)
	if err := d.Run(ctx); err != nil {
		log.WithError(err).Fatal("drain failed")
	}

	if reportPath != "" {
		if err := report.Write(ctx, st, reportPath, log); err != nil {
			log.WithError(err).Error("report export failed")
		}
	}
}
