// Package wakeword detects the wake word in live microphone audio with
// the openWakeWord model chain (melspectrogram, embedding, classifier).
//
// Audio is captured through miniaudio (malgo) in 80 ms chunks. When the
// classifier score crosses the threshold the detector calls OnDetected;
// Julian uses that to wake the assistant without waiting for whisper.
// The three model files and the ONNX Runtime library are configured up
// front.
package wakeword

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hammamikhairi/julian/internal/logger"
	"github.com/hammamikhairi/julian/internal/onnxrt"
)

// Model geometry of the openWakeWord chain.
const (
	sampleRate    = 16000
	chunkSamples  = 1280 // 80 ms
	audioQueueCap = 32
	melBins       = 32
	nMelFrames    = 5  // mel frames per chunk
	melWindowSize = 76 // mel frames per embedding
	melStepSize   = 8
	embeddingDim  = 96
	nEmbedFrames  = 16 // embeddings per classifier input

	// scoreWindowSize is how many recent scores the trigger keeps;
	// it fires on their max.
	scoreWindowSize = 5
	// recentWindow is how many of the newest embeddings are scored.
	// Older slots are zeroed so accumulated silence cannot drown a peak.
	recentWindow = 5
)

// Config holds the paths and tuning knobs for a Detector.
type Config struct {
	WakewordModel  string // e.g. "models/hey_julian.onnx"
	MelspecModel   string // e.g. "bin/melspectrogram.onnx"
	EmbeddingModel string // e.g. "bin/embedding_model.onnx"
	OnnxLib        string // e.g. "bin/libonnxruntime.dylib"

	Threshold float64       // window max at or above this fires (default 0.3)
	Cooldown  time.Duration // quiet period after a detection (default 1.5s)
}

// Validate reports missing model paths.
func (c Config) Validate() error {
	var errs []error
	for name, path := range map[string]string{
		"wakeword model":  c.WakewordModel,
		"melspec model":   c.MelspecModel,
		"embedding model": c.EmbeddingModel,
		"onnx runtime":    c.OnnxLib,
	} {
		if path == "" {
			errs = append(errs, fmt.Errorf("wakeword: %s path is required", name))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) defaults() {
	if c.Threshold <= 0 {
		c.Threshold = 0.3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 1500 * time.Millisecond
	}
}

// Detector scores microphone audio for the wake word.
type Detector struct {
	cfg Config
	log *logger.Logger

	// OnDetected runs on the scoring goroutine. Set it before Start.
	OnDetected func()

	mu         sync.Mutex
	paused     bool
	needsReset bool
}

// New returns a stopped Detector.
func New(cfg Config, log *logger.Logger) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg, log: log}
}

// Pause drops incoming audio until Resume, so Julian's own voice is not
// scored.
func (d *Detector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume scores audio again, starting from an empty pipeline.
func (d *Detector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.needsReset = true
	d.mu.Unlock()
}

func (d *Detector) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// checkReset reports, once, that Resume was called.
func (d *Detector) checkReset() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.needsReset {
		d.needsReset = false
		return true
	}
	return false
}

// Start loads the models, opens the capture device and scores audio
// until ctx is cancelled. It blocks; run it in its own goroutine.
func (d *Detector) Start(ctx context.Context) error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	d.log.Debug("wakeword: initializing ONNX runtime (lib=%s)", d.cfg.OnnxLib)
	release, err := onnxrt.Acquire(d.cfg.OnnxLib)
	if err != nil {
		d.log.Error("wakeword: ONNX init failed: %v", err)
		return err
	}
	defer release()

	p, err := newPipeline(d.cfg)
	if err != nil {
		return err
	}
	defer p.close()
	d.log.Debug("wakeword: models loaded")

	audioCh := make(chan []int16, audioQueueCap)
	var drops atomic.Int64
	stop, err := openCapture(func(raw []byte) {
		select {
		case audioCh <- pcm16(raw):
		default:
			drops.Add(1)
		}
	})
	if err != nil {
		d.log.Error("wakeword: audio capture failed: %v", err)
		return err
	}
	defer stop()
	d.log.Info("wakeword: listening (rate=%d, chunk=%d, threshold=%.2f)", sampleRate, chunkSamples, d.cfg.Threshold)

	trig := newTrigger(d.cfg.Threshold, d.cfg.Cooldown)
	stats := time.NewTicker(2 * time.Second)
	defer stats.Stop()

	onScore := func(score float32) {
		top, fire := trig.observe(score, time.Now())
		if float64(top) >= d.cfg.Threshold*0.1 {
			d.log.Debug("wakeword: score=%.6f max=%.6f (threshold=%.2f)", score, top, d.cfg.Threshold)
		}
		if fire {
			d.log.Info("wakeword: detected (score=%.4f, window max=%.4f)", score, top)
			if d.OnDetected != nil {
				d.OnDetected()
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stats.C:
			d.log.Debug("wakeword: chunks=%d embeds=%d drops=%d peak=%.4f",
				p.chunks, p.embeds, drops.Load(), trig.takePeak())

		case frame := <-audioCh:
			if d.isPaused() {
				continue
			}
			// Audio buffered before a pause must not be scored after it.
			if d.checkReset() {
				p.reset()
				trig.reset()
				d.log.Debug("wakeword: pipeline reset after resume")
			}
			if err := p.feed(frame, onScore); err != nil {
				d.log.Error("wakeword: %v", err)
			}
		}
	}
}

// openCapture starts a 16 kHz mono capture device that hands every
// non-empty buffer to onData. The returned function stops it.
func openCapture(onData func(raw []byte)) (stop func(), err error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, err
	}
	freeCtx := func() { _ = mctx.Uninit(); mctx.Free() }

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = sampleRate
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, raw []byte, _ uint32) {
			if len(raw) > 0 {
				onData(raw)
			}
		},
	})
	if err != nil {
		freeCtx()
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeCtx()
		return nil, err
	}
	return func() {
		_ = device.Stop()
		device.Uninit()
		freeCtx()
	}, nil
}

// pipeline runs the three models over a stream of samples.
type pipeline struct {
	melspec, embed, ww *stage

	rem    []int16   // samples not yet scored
	mel    []float32 // mel frames, melBins values each
	embBuf []float32 // last nEmbedFrames embeddings

	chunks, embeds int
}

func newPipeline(cfg Config) (*pipeline, error) {
	melspec, err := newStage(cfg.MelspecModel,
		ort.NewShape(1, chunkSamples), ort.NewShape(1, 1, nMelFrames, melBins))
	if err != nil {
		return nil, fmt.Errorf("wakeword: melspec: %w", err)
	}
	embed, err := newStage(cfg.EmbeddingModel,
		ort.NewShape(1, melWindowSize, melBins, 1), ort.NewShape(1, 1, 1, embeddingDim))
	if err != nil {
		melspec.destroy()
		return nil, fmt.Errorf("wakeword: embedding: %w", err)
	}
	ww, err := newStage(cfg.WakewordModel,
		ort.NewShape(1, nEmbedFrames, embeddingDim), ort.NewShape(1, 1))
	if err != nil {
		embed.destroy()
		melspec.destroy()
		return nil, fmt.Errorf("wakeword: model: %w", err)
	}
	return &pipeline{
		melspec: melspec,
		embed:   embed,
		ww:      ww,
		rem:     make([]int16, 0, chunkSamples*2),
		mel:     make([]float32, 0, 300*melBins),
		embBuf:  make([]float32, nEmbedFrames*embeddingDim),
	}, nil
}

func (p *pipeline) close() {
	p.ww.destroy()
	p.embed.destroy()
	p.melspec.destroy()
}

func (p *pipeline) reset() {
	p.rem = p.rem[:0]
	p.mel = p.mel[:0]
	clear(p.embBuf)
	p.embeds = 0
}

// feed appends samples and calls onScore for every new embedding step.
func (p *pipeline) feed(samples []int16, onScore func(float32)) error {
	p.rem = append(p.rem, samples...)
	for len(p.rem) >= chunkSamples {
		p.chunks++
		in := p.melspec.in.GetData()
		for i, v := range p.rem[:chunkSamples] {
			in[i] = float32(v)
		}
		n := copy(p.rem, p.rem[chunkSamples:])
		p.rem = p.rem[:n]

		if err := p.melspec.run(); err != nil {
			return fmt.Errorf("melspec run: %w", err)
		}
		for _, v := range p.melspec.out.GetData()[:nMelFrames*melBins] {
			p.mel = append(p.mel, scaleMel(v))
		}

		fresh, err := p.embedMel()
		if err != nil {
			return err
		}
		if !fresh {
			continue
		}
		p.embeds++

		paddedEmbeddings(p.ww.in.GetData(), p.embBuf)
		if err := p.ww.run(); err != nil {
			return fmt.Errorf("wakeword run: %w", err)
		}
		onScore(p.ww.out.GetData()[0])
	}
	return nil
}

// embedMel slides the embedding window over the buffered mel frames and
// reports whether at least one embedding was produced.
func (p *pipeline) embedMel() (bool, error) {
	fresh := false
	for len(p.mel)/melBins >= melWindowSize {
		copy(p.embed.in.GetData(), p.mel[:melWindowSize*melBins])
		if err := p.embed.run(); err != nil {
			return fresh, fmt.Errorf("embed run: %w", err)
		}
		copy(p.embBuf, p.embBuf[embeddingDim:])
		copy(p.embBuf[(nEmbedFrames-1)*embeddingDim:], p.embed.out.GetData()[:embeddingDim])
		fresh = true

		n := copy(p.mel, p.mel[melStepSize*melBins:])
		p.mel = p.mel[:n]
	}
	return fresh, nil
}

// stage is one ONNX model with fixed input and output tensors.
type stage struct {
	in   *ort.Tensor[float32]
	out  *ort.Tensor[float32]
	sess *ort.AdvancedSession
}

func newStage(model string, inShape, outShape ort.Shape) (*stage, error) {
	in, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, err
	}
	out, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		in.Destroy()
		return nil, err
	}
	inInfo, outInfo, err := ort.GetInputOutputInfo(model)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, err
	}
	sess, err := ort.NewAdvancedSession(model,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{in}, []ort.Value{out},
		nil,
	)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, err
	}
	return &stage{in: in, out: out, sess: sess}, nil
}

func (s *stage) run() error { return s.sess.Run() }

func (s *stage) destroy() {
	s.sess.Destroy()
	s.out.Destroy()
	s.in.Destroy()
}
