package config

import (
	"os"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds the Postgres connection settings, supplied via
// environment (DB_HOST, DB_PORT, DB_USER, DB_PASS, DB_NAME, DB_SSLMODE).
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type Config struct {
	DB DatabaseConfig

	// VideosDir is where downloaded audio artifacts live until the
	// transcriber consumes them.
	VideosDir string

	// WhisperBackend selects the transcriber: "local" runs the model in a
	// helper subprocess, "remote" posts audio to TranscribeURL.
	WhisperBackend string
	WhisperModel   string
	TranscribeURL  string

	YtdlpBin string
	Port     string
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DB: DatabaseConfig{
			Host:     envOr("DB_HOST", "localhost"),
			Port:     envOr("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  envOr("DB_SSLMODE", "disable"),
		},
		VideosDir:      envOr("VIDEOS_DIR", "videos"),
		WhisperBackend: envOr("WHISPER_BACKEND", "local"),
		WhisperModel:   envOr("WHISPER_MODEL", "base.en"),
		TranscribeURL:  os.Getenv("TRANSCRIBE_URL"),
		YtdlpBin:       envOr("YTDLP_BIN", "yt-dlp"),
		Port:           envOr("PORT", "8080"),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
