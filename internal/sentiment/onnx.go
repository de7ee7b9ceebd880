package sentiment

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hammamikhairi/julian/internal/logger"
	"github.com/hammamikhairi/julian/internal/onnxrt"
)

// maxTokens is the sequence limit of BERT-family classifiers.
const maxTokens = 512

var _ Analyzer = (*Classifier)(nil)

// ClassifierConfig locates a two-label (negative, positive) sequence
// classification model exported to ONNX, such as distilbert-base-uncased
// fine-tuned on SST-2.
type ClassifierConfig struct {
	Model     string // model.onnx with inputs input_ids and attention_mask
	Tokenizer string // tokenizer.json
	OnnxLib   string // ONNX Runtime shared library
}

// Classifier runs an ONNX sentiment model.
type Classifier struct {
	log     *logger.Logger
	tk      *tokenizer.Tokenizer
	mu      sync.Mutex // sessions are not safe for concurrent Run
	sess    *ort.DynamicAdvancedSession
	release func()
}

// NewClassifier loads the tokenizer and model.
func NewClassifier(cfg ClassifierConfig, log *logger.Logger) (*Classifier, error) {
	tk, err := pretrained.FromFile(cfg.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("sentiment: loading tokenizer: %w", err)
	}

	release, err := onnxrt.Acquire(cfg.OnnxLib)
	if err != nil {
		return nil, err
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.Model,
		[]string{"input_ids", "attention_mask"}, []string{"logits"}, nil)
	if err != nil {
		release()
		return nil, fmt.Errorf("sentiment: loading model: %w", err)
	}

	log.Info("[sentiment] classifier loaded from %s", cfg.Model)
	return &Classifier{log: log, tk: tk, sess: sess, release: release}, nil
}

// Close frees the model session.
func (c *Classifier) Close() error {
	err := c.sess.Destroy()
	c.release()
	return err
}

// Analyze classifies text with the model.
func (c *Classifier) Analyze(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	enc, err := c.tk.EncodeSingle(text, true)
	if err != nil {
		return Result{}, fmt.Errorf("sentiment: tokenize: %w", err)
	}
	ids, mask := enc.Ids, enc.AttentionMask
	if len(ids) > maxTokens {
		ids, mask = ids[:maxTokens], mask[:maxTokens]
	}

	n := int64(len(ids))
	idData := make([]int64, n)
	maskData := make([]int64, n)
	for i := range ids {
		idData[i] = int64(ids[i])
		maskData[i] = int64(mask[i])
	}

	idT, err := ort.NewTensor(ort.NewShape(1, n), idData)
	if err != nil {
		return Result{}, err
	}
	defer idT.Destroy()
	maskT, err := ort.NewTensor(ort.NewShape(1, n), maskData)
	if err != nil {
		return Result{}, err
	}
	defer maskT.Destroy()
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return Result{}, err
	}
	defer out.Destroy()

	c.mu.Lock()
	err = c.sess.Run([]ort.Value{idT, maskT}, []ort.Value{out})
	c.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("sentiment: run model: %w", err)
	}

	logits := out.GetData()
	r := fromLogits(logits[0], logits[1])
	c.log.Debug("[sentiment] %s %.3f", r.Label, r.Score)
	return r, nil
}

// fromLogits converts (negative, positive) logits to a Result by softmax.
func fromLogits(neg, pos float32) Result {
	m := math.Max(float64(neg), float64(pos))
	en := math.Exp(float64(neg) - m)
	ep := math.Exp(float64(pos) - m)
	pPos := ep / (en + ep)
	if pPos >= 0.5 {
		return Result{Label: Positive, Score: pPos}
	}
	return Result{Label: Negative, Score: 1 - pPos}
}
