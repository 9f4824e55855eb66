package spectrum

import (
	"encoding/binary"
	"math"
	"testing"
)

const testSampleRate = 16000

func pcmSine(freq float64, samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestSnapshotSilenceAllZero(t *testing.T) {
	a := NewAnalyser()
	a.Feed(make([]byte, WindowSize*2))
	for i, b := range a.Snapshot() {
		if b != 0 {
			t.Fatalf("bin %d = %d, want 0 for silence", i, b)
		}
	}
}

func TestSnapshotNoInputAllZero(t *testing.T) {
	a := NewAnalyser()
	for i, b := range a.Snapshot() {
		if b != 0 {
			t.Fatalf("bin %d = %d, want 0 before any Feed", i, b)
		}
	}
}

func TestSnapshotSinePeaksAtExpectedBin(t *testing.T) {
	a := NewAnalyser()
	// 1 kHz at 16 kHz / 512-point FFT lands in bin 32.
	a.Feed(pcmSine(1000, WindowSize*2))

	bins := a.Snapshot()
	peak := 0
	for i, b := range bins {
		if b > bins[peak] {
			peak = i
		}
	}
	if peak < 30 || peak > 34 {
		t.Errorf("peak bin = %d, want near 32", peak)
	}
	if bins[peak] == 0 {
		t.Error("peak bin has zero energy")
	}
}

func TestSnapshotKeepsNewestWindow(t *testing.T) {
	a := NewAnalyser()
	a.Feed(pcmSine(1000, WindowSize*4))
	a.Feed(make([]byte, WindowSize*2)) // newest full window is silence

	for i, b := range a.Snapshot() {
		if b != 0 {
			t.Fatalf("bin %d = %d, want 0 after silence overwrote window", i, b)
		}
	}
}

func TestResetClearsWindow(t *testing.T) {
	a := NewAnalyser()
	a.Feed(pcmSine(1000, WindowSize))
	a.Reset()
	for i, b := range a.Snapshot() {
		if b != 0 {
			t.Fatalf("bin %d = %d, want 0 after Reset", i, b)
		}
	}
}
