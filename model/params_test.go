package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsClone(t *testing.T) {
	p := Params{"w": {1.0, 2.0}, "b": {3.0}}
	c := p.Clone()

	assert.Equal(t, p, c)

	c["w"][0] = 9.0
	assert.Equal(t, 1.0, p["w"][0], "clone must not alias the source")
}

func TestParamsCopyFrom(t *testing.T) {
	dst := Params{"w": {0.0, 0.0}}
	buf := dst["w"]

	dst.CopyFrom(Params{"w": {4.0, 5.0}})

	assert.Equal(t, Params{"w": {4.0, 5.0}}, dst)
	assert.Equal(t, []float64{4.0, 5.0}, buf, "copy must write in place")
}

func TestParamsZero(t *testing.T) {
	p := Params{"w": {1.0, -2.0}, "b": {3.0}}
	p.Zero()

	assert.Equal(t, Params{"w": {0.0, 0.0}, "b": {0.0}}, p)
}
