package transcribe

import (
	"context"
)

// Segment is a portion of transcribed audio. Offsets are fractional
// seconds as reported by the model.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript bundles the ordered segments for one audio file.
type Transcript struct {
	Language string
	Segments []Segment
}

// Transcriber is the speech-to-text contract: given an audio file path,
// return the ordered timed segments. The model and its loading are a black
// box behind this interface.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}
