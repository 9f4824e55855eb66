package transcriber

import "context"

type Config struct {
	APIKey   string
	Model    string
	Language string
}

type SessionConfig struct {
	SampleRate int
	Channels   int
	Language   string
}

type StreamStats struct {
	ConnectMs    float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	FinalizeMs   float64
	TotalMs      float64
	AudioS       float64
}

type Result struct {
	Text    string
	HasText bool
	Stream  *StreamStats // non-nil for live sessions
}

// Transcriber creates live speech-to-text sessions. Live reports
// whether the host actually has the capability; when it is false the
// app still records (the visualizer runs) and the transcript comes from
// manual entry only.
type Transcriber interface {
	Name() string
	Live() bool
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session consumes PCM and emits the full recomputed transcript on
// every recognition event. Errors mid-stream arrive on Errors and never
// terminate the session from the caller's point of view.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan string
	Errors() <-chan error
	Close() (Result, error)
}

// New selects the live transcriber when a key is configured and
// otherwise degrades to the no-op adapter (manual-entry mode).
func New(cfg Config) Transcriber {
	if cfg.APIKey != "" {
		d := NewDeepgram(cfg.APIKey, cfg.Model)
		d.SetLanguage(cfg.Language)
		return d
	}
	return NewNoop()
}
