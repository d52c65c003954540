package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"tubescribe/internal/acquire"
	"tubescribe/internal/config"
	"tubescribe/internal/logger"
	"tubescribe/internal/store"
	"tubescribe/internal/ytdlp"
)

func main() {
	var (
		urlFile  string
		retryNew bool
	)
	flag.StringVar(&urlFile, "f", "", "File with one video URL per line (# comments allowed)")
	flag.BoolVar(&retryNew, "retry-new", false, "Re-attempt downloads for rows stuck at status 0")
	flag.Parse()

	cfg := config.Load()
	log := logger.New()
	log.WithField("service", "tubescribe-downloader").Info("starting")

	st, err := store.Open(cfg.DB, log.WithComponent("store"))
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		log.WithError(err).Fatal("schema setup failed")
	}

	acq := acquire.New(ytdlp.NewClient(cfg.YtdlpBin), st, cfg.VideosDir, log)

	if retryNew {
		moved, err := acq.RetryNew(ctx)
		if err != nil {
			log.WithError(err).Fatal("retry pass failed")
		}
		log.WithField("recovered", moved).Info("retry pass done")
		return
	}

	urls := flag.Args()
	if urlFile != "" {
		fromFile, err := readURLFile(urlFile)
		if err != nil {
			log.WithError(err).Fatal("reading url file")
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: downloader [-f urls.txt] [-retry-new] [url ...]")
		os.Exit(2)
	}

	failed := acq.ProcessAll(ctx, urls)
	log.WithField("failed", failed).Info("all videos processed")
	if failed == len(urls) {
		os.Exit(1)
	}
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scan.Err()
}
