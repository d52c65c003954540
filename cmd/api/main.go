package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tubescribe/internal/config"
	"tubescribe/internal/logger"
	"tubescribe/internal/store"
)

func main() {
	cfg := config.Load()

	log := logger.New()
	log.WithField("service", "tubescribe-api").Info("starting service")

	st, err := store.Open(cfg.DB, log.WithComponent("store"))
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer st.Close()

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	// transcript search across segments
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "search")

		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			reqLog.Warn("missing q")
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		strict := r.URL.Query().Get("strict") == "true"
		reqLog = reqLog.WithField("q", q).WithField("strict", strict)

		if err := st.RecordQuery(r.Context(), q, strict); err != nil {
			reqLog.WithError(err).Warn("query log failed")
		}

		start := time.Now()
		hits, err := st.SearchSegments(r.Context(), strings.Fields(q), strict)
		reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).WithField("hits", len(hits)).Info("search finished")
		if err != nil {
			reqLog.WithError(err).Error("search failed")
			http.Error(w, "search error", http.StatusInternalServerError)
			return
		}
		if hits == nil {
			hits = []store.Segment{}
		}
		writeJSON(w, hits, reqLog)
	})

	// searches from the last 24 hours
	mux.HandleFunc("/popular", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "popular")

		queries, err := st.PopularQueries(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			reqLog.WithError(err).Error("popular queries failed")
			http.Error(w, "popular queries error", http.StatusInternalServerError)
			return
		}
		if queries == nil {
			queries = []store.SearchQuery{}
		}
		writeJSON(w, queries, reqLog)
	})

	// on-disk size of the segments table
	mux.HandleFunc("/size", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "size")

		size, err := st.SegmentsTableSize(r.Context())
		if err != nil {
			reqLog.WithError(err).Error("size lookup failed")
			http.Error(w, "size error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, size, reqLog)
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, reqLog *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}
