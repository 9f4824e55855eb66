package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacArchive accumulates 16-bit mono PCM and encodes it as FLAC. Feed
// may be called from the capture callback; partial blocks are buffered
// and flushed on Close.
type FlacArchive struct {
	buf         bytes.Buffer
	enc         *flac.Encoder
	pending     []int16
	totalFrames uint64
	mu          sync.Mutex
}

func NewFlacArchive() (*FlacArchive, error) {
	a := &FlacArchive{}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      0,
	}
	enc, err := flac.NewEncoder(&a.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	a.enc = enc
	return a, nil
}

func (a *FlacArchive) Feed(pcm []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i+1 < len(pcm); i += 2 {
		a.pending = append(a.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(a.pending) >= BlockSize {
		if err := a.encodeBlock(a.pending[:BlockSize]); err != nil {
			return err
		}
		a.pending = a.pending[BlockSize:]
	}
	return nil
}

func (a *FlacArchive) encodeBlock(block []int16) error {
	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := a.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	a.totalFrames += uint64(len(block))
	return nil
}

// Close flushes any partial block and finalizes the stream.
func (a *FlacArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) > 0 {
		if err := a.encodeBlock(a.pending); err != nil {
			return err
		}
		a.pending = nil
	}
	return a.enc.Close()
}

func (a *FlacArchive) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Bytes()
}

func (a *FlacArchive) TotalFrames() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalFrames
}
