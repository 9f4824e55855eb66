package main

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"isle/audio"
	"isle/landmark"
	"isle/transcriber"
)

type msgRecorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *msgRecorder) send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *msgRecorder) phases() []phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []phase
	for _, m := range r.msgs {
		if pm, ok := m.(PhaseMsg); ok {
			out = append(out, pm.Phase)
		}
	}
	return out
}

func (r *msgRecorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if sm, ok := m.(StatusMsg); ok {
			out = append(out, sm.Text)
		}
	}
	return out
}

func (r *msgRecorder) sawLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if lm, ok := m.(LoadingMsg); ok && lm.On {
			return true
		}
	}
	return false
}

func hasStatus(statuses []string, want string) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

type failContext struct{}

func (failContext) Devices() ([]audio.DeviceInfo, error) { return nil, nil }
func (failContext) Close()                               {}
func (failContext) NewCapture(*audio.DeviceInfo, audio.CaptureConfig) (audio.CaptureDevice, error) {
	return nil, errors.New("no microphone")
}

func silencePCM() []byte {
	return make([]byte, 16000) // half a second of silent 16-bit mono
}

func TestStopWithEmptyTranscriptSkipsExtraction(t *testing.T) {
	rec := &msgRecorder{}
	ext := &landmark.FakeExtractor{}
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil,
		transcriber.NewFake(nil, nil), ext, rec.send)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	ctrl.Stop()

	if len(ext.Calls) != 0 {
		t.Errorf("extraction invoked %d times, want 0", len(ext.Calls))
	}
	if ctrl.Phase() != phaseIdle {
		t.Errorf("phase = %v, want idle", ctrl.Phase())
	}
	if !hasStatus(rec.statuses(), statusNoText) {
		t.Errorf("missing no-text status, got %v", rec.statuses())
	}
	if rec.sawLoading() {
		t.Error("loading flag set despite empty transcript")
	}
}

func TestSuccessfulExtractionReplacesLandmarks(t *testing.T) {
	rec := &msgRecorder{}
	want := []landmark.Landmark{
		{Name: "Forest of Whispers", Kind: landmark.Forest, X: 20, Y: -40},
		{Name: "Mirror Lake", Kind: landmark.Lake, X: -15, Y: 30},
	}
	ext := &landmark.FakeExtractor{Landmarks: want}
	fake := transcriber.NewFake([]transcriber.FakeSegment{
		{Text: "a forest of whispers and a mirror lake", Final: true},
	}, nil)
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil, fake, ext, rec.send)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	ctrl.Stop()

	got := ctrl.Landmarks()
	if len(got) != 2 || got[0].Name != "Forest of Whispers" || got[1].Kind != landmark.Lake {
		t.Errorf("landmarks = %+v", got)
	}
	if len(ext.Calls) != 1 || ext.Calls[0] != "a forest of whispers and a mirror lake" {
		t.Errorf("extractor calls = %v", ext.Calls)
	}
}

func TestFailedExtractionKeepsPreviousLandmarks(t *testing.T) {
	rec := &msgRecorder{}
	want := []landmark.Landmark{{Name: "Stone Keep", Kind: landmark.Castle, X: 0, Y: 0}}
	ext := &landmark.FakeExtractor{Landmarks: want}
	newFakeTrans := func() transcriber.Transcriber {
		return transcriber.NewFake([]transcriber.FakeSegment{
			{Text: "a stone keep", Final: true},
		}, nil)
	}

	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil, newFakeTrans(), ext, rec.send)
	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	ctrl.Stop()
	if len(ctrl.Landmarks()) != 1 {
		t.Fatalf("first extraction did not land: %+v", ctrl.Landmarks())
	}

	// Second cycle fails; the set from the first must survive.
	ext.Err = errors.New("service unavailable")
	ctrl.trans = newFakeTrans()
	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	ctrl.Stop()

	got := ctrl.Landmarks()
	if len(got) != 1 || got[0].Name != "Stone Keep" {
		t.Errorf("previous landmarks lost: %+v", got)
	}
	if !hasStatus(rec.statuses(), statusAIError) {
		t.Errorf("missing AI error status, got %v", rec.statuses())
	}
	if ctrl.Phase() != phaseIdle {
		t.Errorf("phase = %v, want idle", ctrl.Phase())
	}
}

func TestStopTransitionsThroughProcessing(t *testing.T) {
	rec := &msgRecorder{}
	ext := &landmark.FakeExtractor{Err: errors.New("down")}
	fake := transcriber.NewFake([]transcriber.FakeSegment{
		{Text: "some narration", Final: true},
	}, nil)
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil, fake, ext, rec.send)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	ctrl.Stop()

	want := []phase{phaseRecording, phaseProcessing, phaseIdle}
	got := rec.phases()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
}

func TestManualModeStillRecords(t *testing.T) {
	rec := &msgRecorder{}
	ext := &landmark.FakeExtractor{Landmarks: []landmark.Landmark{
		{Name: "Quiet Wood", Kind: landmark.Forest, X: 10, Y: 10},
	}}
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil,
		transcriber.NewNoop(), ext, rec.send)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if ctrl.Phase() != phaseRecording {
		t.Fatalf("phase = %v, want recording", ctrl.Phase())
	}
	if !hasStatus(rec.statuses(), statusManual) {
		t.Errorf("missing manual-mode status, got %v", rec.statuses())
	}

	// Typed narration feeds extraction when no recognition ran.
	ctrl.SetTranscript("a quiet wood by the shore")
	ctrl.Stop()

	if len(ext.Calls) != 1 || ext.Calls[0] != "a quiet wood by the shore" {
		t.Errorf("extractor calls = %v", ext.Calls)
	}
	if len(ctrl.Landmarks()) != 1 {
		t.Errorf("landmarks = %+v", ctrl.Landmarks())
	}
}

func TestStreamErrorSurfacesStatusOnly(t *testing.T) {
	rec := &msgRecorder{}
	ext := &landmark.FakeExtractor{Landmarks: []landmark.Landmark{
		{Name: "Cloud Peak", Kind: landmark.Mountain, X: 5, Y: -60},
	}}
	fake := transcriber.NewFake([]transcriber.FakeSegment{
		{Text: "a tall mountain", Final: true},
		{Err: errors.New("connection reset")},
		{Text: "above the clouds", Final: true},
	}, nil)
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil, fake, ext, rec.send)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}

	// The stream error becomes status text; the session keeps recording.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var seen bool
		for _, s := range rec.statuses() {
			if strings.Contains(s, "connection reset") {
				seen = true
			}
		}
		if seen {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stream error never reached the status line, statuses = %v", rec.statuses())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ctrl.Phase() != phaseRecording {
		t.Fatalf("phase = %v, want recording after stream error", ctrl.Phase())
	}

	ctrl.Stop()

	// The transcript accumulated around the error still drives extraction.
	if len(ext.Calls) != 1 || ext.Calls[0] != "a tall mountain above the clouds" {
		t.Errorf("extractor calls = %v", ext.Calls)
	}
	if len(ctrl.Landmarks()) != 1 {
		t.Errorf("landmarks = %+v", ctrl.Landmarks())
	}
}

func TestStartFailsWithoutMicrophone(t *testing.T) {
	rec := &msgRecorder{}
	ctrl := newController(failContext{}, nil, transcriber.NewNoop(), &landmark.FakeExtractor{}, rec.send)

	if err := ctrl.Start(); err == nil {
		t.Fatal("expected error from Start")
	}
	if ctrl.Phase() != phaseIdle {
		t.Errorf("phase = %v, want idle", ctrl.Phase())
	}
	if len(rec.phases()) != 0 {
		t.Errorf("no phase transitions expected, got %v", rec.phases())
	}
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	rec := &msgRecorder{}
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil,
		transcriber.NewNoop(), &landmark.FakeExtractor{}, rec.send)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Start(); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}
	if got := rec.phases(); len(got) != 1 {
		t.Errorf("phases = %v, want a single recording transition", got)
	}
	ctrl.Stop()
}

func TestArchiveWritesFlacFile(t *testing.T) {
	dir := t.TempDir()
	rec := &msgRecorder{}
	ctrl := newController(
		audio.NewFakeContext(silencePCM(), 16000, false), nil,
		transcriber.NewNoop(), &landmark.FakeExtractor{}, rec.send)
	ctrl.archiving = true
	ctrl.archiveDir = dir

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	ctrl.Stop()

	matches, err := filepath.Glob(filepath.Join(dir, "narration-*.flac"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("found %d archive files, want 1", len(matches))
	}
}
