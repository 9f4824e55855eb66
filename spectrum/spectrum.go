// Package spectrum turns raw capture PCM into the radial island outline
// drawn while recording: a 512-point FFT folded to 150 byte-valued
// frequency bins, each mapped to one angular sample of a closed curve.
package spectrum

import (
	"encoding/binary"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// WindowSize is the FFT length; the analyser always transforms the
	// newest WindowSize samples.
	WindowSize = 512

	// Bins is how many leading frequency bins feed the outline, one per
	// angular sample.
	Bins = 150

	minDB = -100.0
	maxDB = -30.0
)

// Analyser keeps a rolling window of the most recent samples and
// computes byte-scaled magnitude bins on demand. Feed is safe to call
// from the capture callback while Bins runs on the render tick.
type Analyser struct {
	mu   sync.Mutex
	ring [WindowSize]float64
	pos  int

	fft    *fourier.FFT
	window [WindowSize]float64 // Hann
	coeffs []complex128
	frame  [WindowSize]float64
}

func NewAnalyser() *Analyser {
	a := &Analyser{
		fft:    fourier.NewFFT(WindowSize),
		coeffs: make([]complex128, WindowSize/2+1),
	}
	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(WindowSize)))
	}
	return a
}

// Feed appends little-endian signed 16-bit mono samples to the window.
func (a *Analyser) Feed(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		a.ring[a.pos] = float64(s) / 32768.0
		a.pos = (a.pos + 1) % WindowSize
	}
}

// Snapshot computes the current frequency bins, scaled to 0..255 over a
// fixed decibel range. Silence yields all zeros.
func (a *Analyser) Snapshot() [Bins]byte {
	a.mu.Lock()
	for i := 0; i < WindowSize; i++ {
		a.frame[i] = a.ring[(a.pos+i)%WindowSize] * a.window[i]
	}
	a.mu.Unlock()

	a.fft.Coefficients(a.coeffs, a.frame[:])

	// Hann window halves the coherent gain.
	scale := 4.0 / float64(WindowSize)

	var out [Bins]byte
	for i := 0; i < Bins; i++ {
		mag := cmplxAbs(a.coeffs[i]) * scale
		if mag <= 0 {
			continue
		}
		db := 20 * math.Log10(mag)
		v := 255 * (db - minDB) / (maxDB - minDB)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out[i] = byte(v)
	}
	return out
}

// Reset clears the sample window between recordings.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ring = [WindowSize]float64{}
	a.pos = 0
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
