package transcriber

import (
	"strings"
	"sync"
	"time"

	"isle/log"
)

const (
	streamChunkMs      = 200
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1000 * time.Millisecond
)

type rawStreamSession interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript   string
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

// accumulator rebuilds the whole transcript on every recognition event:
// all finalized segments in arrival order, plus the current interim
// tail. Finals are never re-evaluated; an interim is replaced wholesale
// by the next event.
type accumulator struct {
	finals  []string
	interim string
}

func (a *accumulator) apply(u streamUpdate) string {
	text := strings.TrimSpace(u.Transcript)
	if u.IsFinal || u.SpeechFinal || u.FromFinalize {
		if text != "" {
			a.finals = append(a.finals, text)
		}
		a.interim = ""
	} else {
		a.interim = text
	}
	return a.text()
}

func (a *accumulator) text() string {
	parts := a.finals
	if a.interim != "" {
		parts = append(append([]string{}, a.finals...), a.interim)
	}
	return strings.Join(parts, " ")
}

type streamSession struct {
	ws         rawStreamSession
	chunkBytes int
	byteRate   int

	acc       accumulator
	audioCh   chan []byte
	updates   chan string
	errs      chan error
	startedAt time.Time
	connected chan struct{} // closed when the socket is ready (or failed)

	sendDone      chan struct{}
	recvDone      chan struct{}
	finalized     chan struct{}
	finalizedOnce sync.Once

	feedBuf []byte
	feedMu  sync.Mutex

	mu      sync.Mutex
	err     error
	errOnce sync.Once
	closing bool
	stats   streamStats
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	FinalizeWait time.Duration
	SessionDur   time.Duration
}

func newStreamSession(cfg SessionConfig, dial func() (rawStreamSession, error)) *streamSession {
	byteRate := cfg.SampleRate * cfg.Channels * 2
	ss := &streamSession{
		chunkBytes: byteRate * streamChunkMs / 1000,
		byteRate:   byteRate,
		audioCh:    make(chan []byte, 128),
		updates:    make(chan string, 16),
		errs:       make(chan error, 4),
		startedAt:  time.Now(),
		sendDone:   make(chan struct{}),
		recvDone:   make(chan struct{}),
		finalized:  make(chan struct{}),
		connected:  make(chan struct{}),
	}

	go func() {
		connectStart := time.Now()
		ws, err := dial()
		ss.mu.Lock()
		ss.stats.ConnectDur = time.Since(connectStart)
		ss.mu.Unlock()

		if err != nil {
			ss.setErr(err)
			close(ss.sendDone)
			close(ss.recvDone)
			close(ss.connected)
			return
		}

		ss.ws = ws
		close(ss.connected)
		go ss.runSender()
		go ss.runReceiver()
	}()

	return ss
}

func (s *streamSession) Feed(pcm []byte) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.feedMu.Lock()
	s.feedBuf = append(s.feedBuf, pcm...)
	var chunks [][]byte
	for len(s.feedBuf) >= s.chunkBytes {
		chunk := make([]byte, s.chunkBytes)
		copy(chunk, s.feedBuf[:s.chunkBytes])
		s.feedBuf = s.feedBuf[s.chunkBytes:]
		chunks = append(chunks, chunk)
	}
	s.feedMu.Unlock()

	for _, chunk := range chunks {
		s.audioCh <- chunk
	}
}

func (s *streamSession) Updates() <-chan string {
	return s.updates
}

func (s *streamSession) Errors() <-chan error {
	return s.errs
}

func (s *streamSession) Close() (Result, error) {
	<-s.connected

	// If the connection failed, drain and return what we have (nothing).
	s.mu.Lock()
	if s.err != nil && s.ws == nil {
		connErr := s.err
		s.mu.Unlock()
		go func() { // drain audioCh so any blocked Feed() unblocks
			for range s.audioCh {
			}
		}()
		s.feedMu.Lock()
		s.feedBuf = nil
		s.feedMu.Unlock()
		close(s.audioCh)
		<-s.sendDone
		<-s.recvDone
		close(s.updates)
		return Result{}, connErr
	}
	s.mu.Unlock()

	// Flush remaining buffered PCM
	s.feedMu.Lock()
	if len(s.feedBuf) > 0 {
		tail := make([]byte, len(s.feedBuf))
		copy(tail, s.feedBuf)
		s.feedBuf = nil
		s.audioCh <- tail
	}
	s.feedMu.Unlock()
	close(s.audioCh)
	finalizeStart := time.Now()

	<-s.sendDone

	// Wait for server finalize acknowledgment, then a brief quiet period
	select {
	case <-s.finalized:
		time.Sleep(streamFinalizeIdle)
	case <-time.After(streamFinalizeMax):
	}

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.ws.Close()
	select {
	case <-s.recvDone:
	case <-time.After(2 * time.Second):
		log.Warn("stream receiver drain timeout")
	}

	// Guarantee the consumer sees the final text even if the last
	// non-blocking send was dropped.
	s.mu.Lock()
	finalText := s.acc.text()
	s.mu.Unlock()
	if finalText != "" {
		select {
		case s.updates <- finalText:
		default:
		}
	}
	close(s.updates)

	s.mu.Lock()
	text := strings.TrimSpace(s.acc.text())
	stats := s.stats
	stats.FinalizeWait = time.Since(finalizeStart)
	stats.SessionDur = time.Since(s.startedAt)
	sessionErr := s.err
	s.mu.Unlock()

	result := Result{
		Text:    text,
		HasText: text != "",
		Stream: &StreamStats{
			ConnectMs:    float64(stats.ConnectDur.Milliseconds()),
			SentChunks:   stats.SentChunks,
			SentKB:       float64(stats.SentBytes) / 1024,
			RecvMessages: stats.RecvMessages,
			RecvFinal:    stats.RecvFinal,
			RecvInterim:  stats.RecvInterim,
			FinalizeMs:   float64(stats.FinalizeWait.Milliseconds()),
			TotalMs:      float64(stats.SessionDur.Milliseconds()),
			AudioS:       float64(stats.SentBytes) / float64(s.byteRate),
		},
	}
	return result, sessionErr
}

func (s *streamSession) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.ws.Send(chunk); err != nil {
			s.setErr(err)
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := s.ws.CloseSend(); err != nil {
		s.setErr(err)
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.recvDone)
	for {
		update, err := s.ws.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			s.setErr(err)
			return
		}

		if update.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		isFinal := update.IsFinal || update.SpeechFinal || update.FromFinalize

		s.mu.Lock()
		s.stats.RecvMessages++
		if isFinal {
			s.stats.RecvFinal++
		} else {
			s.stats.RecvInterim++
		}
		fullText := s.acc.apply(update)
		s.mu.Unlock()

		if fullText == "" {
			continue
		}
		select {
		case s.updates <- fullText:
		default:
		}
	}
}

// setErr records the first stream error and surfaces it to the
// consumer; the session itself keeps whatever transcript it has.
func (s *streamSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		select {
		case s.errs <- err:
		default:
		}
		if s.ws != nil {
			s.ws.Close()
		}
	})
}
