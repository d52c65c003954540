package transcribe

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

//go:embed assets/whisper.py
var whisperScript []byte

// WhisperBackend runs openai-whisper through a small Python helper that
// prints the transcription result as JSON on stdout.
type WhisperBackend struct {
	model string
}

func NewWhisperBackend(model string) *WhisperBackend {
	if model == "" {
		model = "base.en"
	}
	return &WhisperBackend{model: model}
}

type whisperOut struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperBackend) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	scriptPath := filepath.Join(os.TempDir(), "tubescribe_whisper.py")
	if err := os.WriteFile(scriptPath, whisperScript, 0o755); err != nil {
		return nil, fmt.Errorf("write helper script: %w", err)
	}
	defer os.Remove(scriptPath)

	py := os.Getenv("WHISPER_PY")
	if py == "" {
		py = "python3"
	}

	cmd := exec.CommandContext(ctx, py, scriptPath, "--audio", audioPath, "--model", w.model)
	cmd.Env = os.Environ()
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("whisper failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("run helper: %w", err)
	}

	var parsed whisperOut
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse helper output: %w", err)
	}

	tr := &Transcript{Language: parsed.Language}
	for _, s := range parsed.Segments {
		tr.Segments = append(tr.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return tr, nil
}
