package optim

import (
	"math"

	"github.com/fan1dy/personalized-llms-colm/model"
)

// adamW implements AdamW with decoupled weight decay.
type adamW struct {
	m      model.Model
	groups []group

	lr          float64
	beta1       float64
	beta2       float64
	epsilon     float64
	weightDecay float64

	step int
	fst  map[string][]float64 // first moment
	snd  map[string][]float64 // second moment
}

func newAdamW(cfg Config, m model.Model, groups []group) *adamW {
	beta1, beta2 := cfg.Beta1, cfg.Beta2
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	epsilon := cfg.Epsilon
	if epsilon == 0 {
		epsilon = 1e-8
	}

	return &adamW{
		m:           m,
		groups:      groups,
		lr:          cfg.LR,
		beta1:       beta1,
		beta2:       beta2,
		epsilon:     epsilon,
		weightDecay: cfg.WeightDecay,
		fst:         make(map[string][]float64),
		snd:         make(map[string][]float64),
	}
}

func (o *adamW) Step() {
	o.step++
	params := o.m.TrainableParams()
	grads := o.m.Grads()

	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))

	for _, g := range o.groups {
		for _, name := range g.names {
			p, grad := params[name], grads[name]
			fst, ok := o.fst[name]
			if !ok {
				fst = make([]float64, len(p))
				o.fst[name] = fst
				o.snd[name] = make([]float64, len(p))
			}
			snd := o.snd[name]

			for i := range p {
				if !g.noDecay && o.weightDecay != 0 {
					p[i] -= o.lr * o.weightDecay * p[i]
				}
				fst[i] = o.beta1*fst[i] + (1-o.beta1)*grad[i]
				snd[i] = o.beta2*snd[i] + (1-o.beta2)*grad[i]*grad[i]
				p[i] -= o.lr * (fst[i] / c1) / (math.Sqrt(snd[i]/c2) + o.epsilon)
			}
		}
	}
}

func (o *adamW) LR() float64 {
	return o.lr
}

func (o *adamW) SetLR(lr float64) {
	o.lr = lr
}
