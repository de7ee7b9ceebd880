package wakeword

import (
	"encoding/binary"
	"time"
)

// trigger turns a stream of per-frame wakeword scores into detections.
// It fires when the max score over the last scoreWindowSize frames reaches
// the threshold and the cooldown since the previous detection has passed.
type trigger struct {
	threshold float64
	cooldown  time.Duration

	window []float32
	idx    int
	last   time.Time
	peak   float32 // highest score since the last stats dump
}

func newTrigger(threshold float64, cooldown time.Duration) *trigger {
	return &trigger{
		threshold: threshold,
		cooldown:  cooldown,
		window:    make([]float32, scoreWindowSize),
	}
}

// observe records score and reports the window max and whether to fire.
func (t *trigger) observe(score float32, now time.Time) (top float32, fire bool) {
	if score > t.peak {
		t.peak = score
	}
	t.window[t.idx%len(t.window)] = score
	t.idx++

	for _, s := range t.window {
		if s > top {
			top = s
		}
	}

	if float64(top) < t.threshold || now.Sub(t.last) <= t.cooldown {
		return top, false
	}
	t.last = now
	// Clear the window so the same peak does not re-trigger.
	for i := range t.window {
		t.window[i] = 0
	}
	return top, true
}

// reset forgets all scores but keeps the last detection time.
func (t *trigger) reset() {
	for i := range t.window {
		t.window[i] = 0
	}
	t.idx = 0
	t.peak = 0
}

// takePeak returns the peak score and clears it.
func (t *trigger) takePeak() float32 {
	p := t.peak
	t.peak = 0
	return p
}

// pcm16 decodes little-endian signed 16-bit samples.
func pcm16(raw []byte) []int16 {
	n := len(raw) / 2
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return pcm
}

// scaleMel applies the openWakeWord melspectrogram normalization.
func scaleMel(v float32) float32 {
	return v/10.0 + 2.0
}

// paddedEmbeddings fills dst with the last recentWindow embedding frames
// of src and zeros before them.
func paddedEmbeddings(dst, src []float32) {
	padSlots := nEmbedFrames - recentWindow
	for i := 0; i < padSlots*embeddingDim; i++ {
		dst[i] = 0
	}
	copy(dst[padSlots*embeddingDim:], src[padSlots*embeddingDim:])
}
