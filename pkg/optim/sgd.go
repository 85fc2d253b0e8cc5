package optim

import "github.com/fan1dy/personalized-llms-colm/model"

// sgd implements SGD with classical momentum and L2 weight decay folded into
// the gradient.
type sgd struct {
	m      model.Model
	groups []group

	lr          float64
	momentum    float64
	weightDecay float64

	buf map[string][]float64
}

func newSGD(cfg Config, m model.Model, groups []group) *sgd {
	momentum := cfg.Momentum
	if momentum == 0 {
		momentum = 0.9
	}

	return &sgd{
		m:           m,
		groups:      groups,
		lr:          cfg.LR,
		momentum:    momentum,
		weightDecay: cfg.WeightDecay,
		buf:         make(map[string][]float64),
	}
}

func (o *sgd) Step() {
	params := o.m.TrainableParams()
	grads := o.m.Grads()

	for _, g := range o.groups {
		for _, name := range g.names {
			p, grad := params[name], grads[name]
			buf, ok := o.buf[name]
			if !ok {
				buf = make([]float64, len(p))
				o.buf[name] = buf
			}

			for i := range p {
				d := grad[i]
				if !g.noDecay && o.weightDecay != 0 {
					d += o.weightDecay * p[i]
				}
				buf[i] = o.momentum*buf[i] + d
				p[i] -= o.lr * buf[i]
			}
		}
	}
}

func (o *sgd) LR() float64 {
	return o.lr
}

func (o *sgd) SetLR(lr float64) {
	o.lr = lr
}
