package model

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

const (
	paramA = "adapter.a"
	paramB = "adapter.b"

	defaultRank  = 4
	defaultAlpha = 8
)

// LoRA is a low-rank additive adapter over a frozen bigram backbone. The
// backbone is a vocab x vocab logit table shared by construction across all
// clients; only the low-rank factors A (vocab x rank) and B (rank x vocab)
// are trained and aggregated. Logits for input token x are
//
//	backbone[x] + (alpha/rank) * A[x] * B
//
// with softmax cross-entropy against the shifted target token.
type LoRA struct {
	mu sync.Mutex

	vocab int
	rank  int
	scale float64

	dropout  float64
	training bool

	backbone []float64 // vocab x vocab, frozen
	a        []float64 // vocab x rank
	b        []float64 // rank x vocab
	gradA    []float64
	gradB    []float64

	rng *rand.Rand
}

// NewLoRA builds the adapter with B zero-initialized so the initial adapter
// contribution is exactly zero.
func NewLoRA(cfg Config) (*LoRA, error) {
	if cfg.VocabSize <= 0 {
		return nil, fmt.Errorf("%w: vocab size must be positive", errors.ErrInvalidConfig)
	}
	rank := cfg.Rank
	if rank <= 0 {
		rank = defaultRank
	}
	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = defaultAlpha
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout must be in [0, 1)", errors.ErrInvalidConfig)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	m := &LoRA{
		vocab:    cfg.VocabSize,
		rank:     rank,
		scale:    alpha / float64(rank),
		dropout:  cfg.Dropout,
		training: true,
		backbone: make([]float64, cfg.VocabSize*cfg.VocabSize),
		a:        make([]float64, cfg.VocabSize*rank),
		b:        make([]float64, rank*cfg.VocabSize),
		gradA:    make([]float64, cfg.VocabSize*rank),
		gradB:    make([]float64, rank*cfg.VocabSize),
		rng:      rng,
	}
	for i := range m.backbone {
		m.backbone[i] = rng.NormFloat64() * 0.02
	}
	for i := range m.a {
		m.a[i] = rng.NormFloat64() * 0.02
	}

	return m, nil
}

func (m *LoRA) ForwardBackward(batch Batch, lossScale float64, _ StepContext) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loss, _, _, err := m.forward(batch, lossScale, true)

	return loss, err
}

func (m *LoRA) Eval(batch Batch) (float64, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.forward(batch, 0, false)
}

// forward computes the mean cross-entropy over all positions of the batch.
// When backward is true it accumulates gradients scaled by lossScale.
func (m *LoRA) forward(batch Batch, lossScale float64, backward bool) (float64, int, int, error) {
	positions := 0
	for _, row := range batch.Inputs {
		positions += len(row)
	}
	if positions == 0 {
		return 0, 0, 0, fmt.Errorf("%w: empty batch", errors.ErrInvalidConfig)
	}

	var (
		totalLoss float64
		correct   int
		logits    = make([]float64, m.vocab)
		probs     = make([]float64, m.vocab)
		h         = make([]float64, m.rank)
		hfac      = make([]float64, m.rank)
	)
	keep := 1.0
	if m.training && backward {
		keep = 1.0 - m.dropout
	}

	for bi, row := range batch.Inputs {
		targets := batch.Targets[bi]
		for t, xt := range row {
			x, y := int(xt), int(targets[t])
			if x < 0 || x >= m.vocab || y < 0 || y >= m.vocab {
				return 0, 0, 0, fmt.Errorf("%w: token out of vocabulary range", errors.ErrMalformedShard)
			}

			for k := 0; k < m.rank; k++ {
				fac := 1.0
				if keep < 1.0 {
					if m.rng.Float64() < m.dropout {
						fac = 0
					} else {
						fac = 1 / keep
					}
				}
				hfac[k] = fac
				h[k] = m.a[x*m.rank+k] * fac
			}
			maxLogit := math.Inf(-1)
			for v := 0; v < m.vocab; v++ {
				l := m.backbone[x*m.vocab+v]
				for k := 0; k < m.rank; k++ {
					l += m.scale * h[k] * m.b[k*m.vocab+v]
				}
				logits[v] = l
				if l > maxLogit {
					maxLogit = l
				}
			}

			var sum float64
			for v := 0; v < m.vocab; v++ {
				probs[v] = math.Exp(logits[v] - maxLogit)
				sum += probs[v]
			}
			totalLoss += math.Log(sum) - (logits[y] - maxLogit)

			argmax := 0
			for v := 1; v < m.vocab; v++ {
				if logits[v] > logits[argmax] {
					argmax = v
				}
			}
			if argmax == y {
				correct++
			}

			if backward {
				gradScale := lossScale / float64(positions)
				for v := 0; v < m.vocab; v++ {
					dl := (probs[v]/sum - b2f(v == y)) * gradScale
					for k := 0; k < m.rank; k++ {
						m.gradB[k*m.vocab+v] += m.scale * h[k] * dl
						m.gradA[x*m.rank+k] += m.scale * m.b[k*m.vocab+v] * hfac[k] * dl
					}
				}
			}
		}
	}

	loss := totalLoss / float64(positions)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, 0, 0, errors.ErrNonFiniteLoss
	}

	return loss, correct, positions, nil
}

func (m *LoRA) TrainableParams() Params {
	return Params{paramA: m.a, paramB: m.b}
}

func (m *LoRA) Grads() Params {
	return Params{paramA: m.gradA, paramB: m.gradB}
}

func (m *LoRA) ZeroGrads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.gradA {
		m.gradA[i] = 0
	}
	for i := range m.gradB {
		m.gradB[i] = 0
	}
}

func (m *LoRA) GradNorm() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.gradNorm()
}

func (m *LoRA) gradNorm() float64 {
	var sum float64
	for _, g := range m.gradA {
		sum += g * g
	}
	for _, g := range m.gradB {
		sum += g * g
	}

	return math.Sqrt(sum)
}

func (m *LoRA) ClipGradNorm(maxNorm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	norm := m.gradNorm()
	if norm <= maxNorm || norm == 0 {
		return
	}
	s := maxNorm / norm
	for i := range m.gradA {
		m.gradA[i] *= s
	}
	for i := range m.gradB {
		m.gradB[i] *= s
	}
}

func (m *LoRA) SetTraining(training bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.training = training
}

func (m *LoRA) ParameterGroupSpecs() []GroupSpec {
	return []GroupSpec{{Params: []string{paramA, paramB}}}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
