package transcriber

import "context"

// FakeSegment scripts one recognition event for tests. A segment with
// Err set delivers a mid-stream error instead of text.
type FakeSegment struct {
	Text  string
	Final bool
	Err   error
}

type FakeTranscriber struct {
	script []FakeSegment
	err    error
	lang   string
}

// NewFake returns a transcriber whose sessions replay the given script
// on creation and return err (if any) from Close.
func NewFake(script []FakeSegment, err error) *FakeTranscriber {
	return &FakeTranscriber{script: script, err: err}
}

func (f *FakeTranscriber) Name() string            { return "fake" }
func (f *FakeTranscriber) Live() bool              { return true }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }

func (f *FakeTranscriber) NewSession(context.Context, SessionConfig) (Session, error) {
	s := &fakeSession{
		err:     f.err,
		updates: make(chan string, len(f.script)+1),
		errs:    make(chan error, len(f.script)+1),
	}
	for _, seg := range f.script {
		if seg.Err != nil {
			s.errs <- seg.Err
			continue
		}
		text := s.acc.apply(streamUpdate{Transcript: seg.Text, IsFinal: seg.Final})
		if text != "" {
			s.updates <- text
		}
	}
	return s, nil
}

type fakeSession struct {
	acc     accumulator
	err     error
	updates chan string
	errs    chan error
}

func (s *fakeSession) Feed([]byte) {}

func (s *fakeSession) Updates() <-chan string { return s.updates }

func (s *fakeSession) Errors() <-chan error { return s.errs }

func (s *fakeSession) Close() (Result, error) {
	close(s.updates)
	if s.err != nil {
		return Result{}, s.err
	}
	text := s.acc.text()
	return Result{Text: text, HasText: text != ""}, nil
}
