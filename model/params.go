package model

// Params maps parameter names to flat row-major tensors.
type Params map[string][]float64

// Clone returns a deep copy, used to snapshot parameters before aggregation.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for name, v := range p {
		c := make([]float64, len(v))
		copy(c, v)
		out[name] = c
	}

	return out
}

// CopyFrom writes src's values into p's existing storage. Tensors present in
// p but not in src are left untouched.
func (p Params) CopyFrom(src Params) {
	for name, v := range p {
		if s, ok := src[name]; ok {
			copy(v, s)
		}
	}
}

// Zero clears every tensor in place.
func (p Params) Zero() {
	for _, v := range p {
		for i := range v {
			v[i] = 0
		}
	}
}
