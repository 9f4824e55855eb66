package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"isle/audio"
	"isle/encoder"
	"isle/landmark"
	"isle/log"
	"isle/spectrum"
	"isle/transcriber"
)

type phase int

const (
	phaseIdle phase = iota
	phaseRecording
	phaseProcessing
)

const (
	statusIdle       = "Press Enter to start narrating"
	statusListening  = "Listening... describe your island"
	statusManual     = "Speech recognition unavailable — type your narration instead"
	statusProcessing = "Conjuring landmarks..."
	statusNoText     = "Nothing narrated — map unchanged"
	statusAIError    = "AI Error"
)

// controller owns the session state machine: Idle -> Recording ->
// Processing -> Idle. All UI-visible state changes flow out through
// notify; all transitions happen here, never in the view.
type controller struct {
	audioCtx   audio.Context
	device     *audio.DeviceInfo
	trans      transcriber.Transcriber
	extractor  landmark.Extractor
	analyser   *spectrum.Analyser
	archiving  bool
	archiveDir string
	notify     func(tea.Msg)

	mu         sync.Mutex
	phase      phase
	transcript string
	landmarks  []landmark.Landmark
	recordings int

	// live recording resources, valid only while phase != phaseIdle
	capture     audio.CaptureDevice
	sess        transcriber.Session
	archive     *encoder.FlacArchive
	vp          *vadProcessor
	totalFrames uint64
	startedAt   time.Time
	tickStop    chan struct{}
	tickDone    chan struct{}
	updatesDone chan struct{}
}

func newController(audioCtx audio.Context, device *audio.DeviceInfo, trans transcriber.Transcriber, extractor landmark.Extractor, notify func(tea.Msg)) *controller {
	return &controller{
		audioCtx:  audioCtx,
		device:    device,
		trans:     trans,
		extractor: extractor,
		analyser:  spectrum.NewAnalyser(),
		notify:    notify,
	}
}

func (c *controller) Phase() phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// SetTranscript accepts a manual edit from the textarea. The next
// recognition event overwrites it; recognition always wins while the
// stream is live.
func (c *controller) SetTranscript(text string) {
	c.mu.Lock()
	c.transcript = text
	c.mu.Unlock()
}

// SetDevice picks the capture device for the next recording. Only
// meaningful while Idle; the active recording keeps its device.
func (c *controller) SetDevice(dev *audio.DeviceInfo) {
	c.mu.Lock()
	c.device = dev
	c.mu.Unlock()
}

func (c *controller) Landmarks() []landmark.Landmark {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]landmark.Landmark, len(c.landmarks))
	copy(out, c.landmarks)
	return out
}

func (c *controller) Recordings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordings
}

// Start acquires a fresh capture device and transcription session.
// Microphone failure aborts the start and the session stays Idle; a
// missing speech capability degrades to manual entry but still records
// for the visualizer.
func (c *controller) Start() error {
	c.mu.Lock()
	if c.phase != phaseIdle {
		c.mu.Unlock()
		return nil
	}
	device := c.device
	c.mu.Unlock()

	capture, err := c.audioCtx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture init error: %v", err)
		c.notify(StatusMsg{Text: fmt.Sprintf("Microphone error: %v", err)})
		return err
	}

	sess, err := c.trans.NewSession(context.Background(), transcriber.SessionConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		Language:   c.trans.GetLanguage(),
	})
	if err != nil {
		capture.Close()
		log.Errorf("transcription session error: %v", err)
		c.notify(StatusMsg{Text: fmt.Sprintf("Transcription error: %v", err)})
		return err
	}

	var archive *encoder.FlacArchive
	if c.archiving {
		archive, err = encoder.NewFlacArchive()
		if err != nil {
			log.Warnf("flac archive init failed: %v", err)
			archive = nil
		}
	}

	vp, err := newVADProcessor()
	if err != nil {
		log.Warnf("vad init failed: %v", err)
		vp = nil
	}

	c.analyser.Reset()

	capture.SetCallback(func(data []byte, frameCount uint32) {
		if len(data) == 0 {
			return
		}
		pcm := make([]byte, len(data))
		copy(pcm, data)
		sess.Feed(pcm)
		c.analyser.Feed(data)
		if archive != nil {
			archive.Feed(data)
		}
		if vp != nil {
			vp.Process(data)
		}

		var sumSquares float64
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(data[i:]))
			normalized := float64(sample) / 32768.0
			sumSquares += normalized * normalized
		}
		rms := math.Sqrt(sumSquares / float64(len(data)/2))
		c.notify(AudioLevelMsg{Level: rms})

		c.mu.Lock()
		c.totalFrames += uint64(frameCount)
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.totalFrames = 0
	c.mu.Unlock()

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		sess.Close()
		log.Errorf("capture start error: %v", err)
		c.notify(StatusMsg{Text: fmt.Sprintf("Microphone error: %v", err)})
		return err
	}

	c.mu.Lock()
	c.phase = phaseRecording
	c.capture = capture
	c.sess = sess
	c.archive = archive
	c.vp = vp
	c.startedAt = time.Now()
	c.tickStop = make(chan struct{})
	c.tickDone = make(chan struct{})
	c.updatesDone = make(chan struct{})
	c.mu.Unlock()

	log.Info("recording_start: " + capture.DeviceName())
	c.notify(PhaseMsg{Phase: phaseRecording})
	if c.trans.Live() {
		c.notify(StatusMsg{Text: statusListening})
	} else {
		c.notify(StatusMsg{Text: statusManual})
	}

	go c.runUpdates(sess)
	go c.runTicker(vp)
	return nil
}

// runUpdates mirrors recognition events into the transcript buffer.
// Stream errors surface as status text only; the session continues.
func (c *controller) runUpdates(sess transcriber.Session) {
	defer close(c.updatesDone)
	for {
		select {
		case text, ok := <-sess.Updates():
			if !ok {
				return
			}
			c.mu.Lock()
			c.transcript = text
			c.mu.Unlock()
			c.notify(TranscriptMsg{Text: text})
		case err := <-sess.Errors():
			log.Errorf("recognition stream error: %v", err)
			c.notify(StatusMsg{Text: fmt.Sprintf("Transcription error: %v", err)})
		}
	}
}

// runTicker drives one visualizer frame per tick and feeds the silence
// monitor. It always exits before the capture device is released.
func (c *controller) runTicker(vp *vadProcessor) {
	defer close(c.tickDone)
	mon := newSilenceMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.tickStop:
			return
		case <-ticker.C:
			c.notify(SpectrumMsg{Bins: c.analyser.Snapshot()})
			c.notify(RecordingTickMsg{Duration: time.Since(c.startedAt).Seconds()})
			if vp == nil {
				continue
			}
			switch mon.Tick(vp.HasSpeechTick()) {
			case silenceWarn:
				log.Info("no_voice_warning")
				c.notify(NoVoiceWarningMsg{})
			case silenceWarnClear:
				c.notify(VoiceClearedMsg{})
			}
		}
	}
}

// Stop tears down the recording and runs extraction. Ordering: the
// visualizer ticker is cancelled first, then capture stops, then the
// transcription session closes, so the transcript is final and no audio
// resources are held during the network call.
func (c *controller) Stop() {
	c.mu.Lock()
	if c.phase != phaseRecording {
		c.mu.Unlock()
		return
	}
	c.phase = phaseProcessing
	capture := c.capture
	sess := c.sess
	archive := c.archive
	frames := c.totalFrames
	c.mu.Unlock()

	c.notify(PhaseMsg{Phase: phaseProcessing})
	c.notify(StatusMsg{Text: statusProcessing})

	close(c.tickStop)
	<-c.tickDone

	capture.Stop()
	capture.ClearCallback()
	capture.Close()

	result, closeErr := sess.Close()
	<-c.updatesDone
	if closeErr != nil {
		log.Errorf("transcription close error: %v", closeErr)
		c.notify(StatusMsg{Text: fmt.Sprintf("Transcription error: %v", closeErr)})
	}
	if result.HasText {
		c.mu.Lock()
		c.transcript = result.Text
		c.mu.Unlock()
		c.notify(TranscriptMsg{Text: result.Text})
	}
	if result.Stream != nil {
		s := result.Stream
		log.StreamMetrics(log.StreamMetricsData{
			ConnectMs:    s.ConnectMs,
			FinalizeMs:   s.FinalizeMs,
			TotalMs:      s.TotalMs,
			AudioS:       s.AudioS,
			SentChunks:   s.SentChunks,
			SentKB:       s.SentKB,
			RecvMessages: s.RecvMessages,
			RecvFinal:    s.RecvFinal,
			RecvInterim:  s.RecvInterim,
		})
	}

	if archive != nil {
		c.writeArchive(archive)
	}

	c.mu.Lock()
	c.recordings++
	transcript := strings.TrimSpace(c.transcript)
	c.mu.Unlock()

	audioS := float64(frames) / float64(encoder.SampleRate)
	log.RecordingDone(audioS, len(transcript))
	if transcript != "" {
		log.NarrationText(transcript)
	}

	if transcript == "" {
		c.finishIdle(statusNoText)
		return
	}

	c.notify(LoadingMsg{On: true})
	extractStart := time.Now()
	landmarks, err := c.extractor.Extract(context.Background(), transcript)
	c.notify(LoadingMsg{On: false})

	if err != nil {
		log.Errorf("extraction error: %v", err)
		c.finishIdle(statusAIError)
		return
	}

	c.mu.Lock()
	c.landmarks = landmarks
	c.mu.Unlock()
	log.Extraction(len(landmarks), float64(time.Since(extractStart).Milliseconds()))
	c.notify(LandmarksMsg{Landmarks: landmarks})
	c.finishIdle(fmt.Sprintf("Map ready: %d landmarks", len(landmarks)))
}

func (c *controller) finishIdle(status string) {
	c.mu.Lock()
	c.phase = phaseIdle
	c.capture = nil
	c.sess = nil
	c.archive = nil
	c.vp = nil
	c.mu.Unlock()
	c.notify(StatusMsg{Text: status})
	c.notify(PhaseMsg{Phase: phaseIdle})
}

func (c *controller) writeArchive(archive *encoder.FlacArchive) {
	if err := archive.Close(); err != nil {
		log.Warnf("flac finalize failed: %v", err)
		return
	}
	if archive.TotalFrames() == 0 {
		return
	}
	name := fmt.Sprintf("narration-%s.flac", time.Now().Format("20060102-150405"))
	path := filepath.Join(c.archiveDir, name)
	if err := os.WriteFile(path, archive.Bytes(), 0644); err != nil {
		log.Warnf("flac write failed: %v", err)
		return
	}
	log.Info("narration_saved: " + path)
}
