package transcriber

import "context"

// Noop is the capability-missing adapter: recording still runs for the
// visualizer, and the transcript comes entirely from manual entry.
type Noop struct {
	lang string
}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Name() string            { return "none" }
func (n *Noop) Live() bool              { return false }
func (n *Noop) SetLanguage(lang string) { n.lang = lang }
func (n *Noop) GetLanguage() string     { return n.lang }

func (n *Noop) NewSession(context.Context, SessionConfig) (Session, error) {
	updates := make(chan string)
	close(updates)
	return &noopSession{updates: updates, errs: make(chan error)}, nil
}

type noopSession struct {
	updates chan string
	errs    chan error
}

func (s *noopSession) Feed([]byte)             {}
func (s *noopSession) Updates() <-chan string  { return s.updates }
func (s *noopSession) Errors() <-chan error    { return s.errs }
func (s *noopSession) Close() (Result, error)  { return Result{}, nil }
