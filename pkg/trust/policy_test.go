package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

func TestNewPolicy(t *testing.T) {
	cases := []struct {
		name string
		cfg  PolicyConfig
		want string
		err  error
	}{
		{
			name: "softmax",
			cfg:  PolicyConfig{Name: "softmax"},
			want: "softmax",
		},
		{
			name: "inverse",
			cfg:  PolicyConfig{Name: "inverse"},
			want: "inverse",
		},
		{
			name: "uniform",
			cfg:  PolicyConfig{Name: "uniform"},
			want: "uniform",
		},
		{
			name: "negative temperature",
			cfg:  PolicyConfig{Name: "softmax", Temperature: -1},
			err:  errors.ErrInvalidConfig,
		},
		{
			name: "unknown policy",
			cfg:  PolicyConfig{Name: "median"},
			err:  errors.ErrUnknownPolicy,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPolicy(tc.cfg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Name())
		})
	}
}

func TestPolicyWeights(t *testing.T) {
	policies := []PolicyConfig{
		{Name: "softmax"},
		{Name: "softmax", Temperature: 0.1},
		{Name: "inverse"},
		{Name: "uniform"},
	}
	rows := [][]float64{
		{1.0},
		{1.0, 1.0, 1.0},
		{0.5, 2.0, 4.0},
		{0.0, 3.0},
	}

	for _, cfg := range policies {
		p, err := NewPolicy(cfg)
		require.NoError(t, err)

		t.Run(p.Name(), func(t *testing.T) {
			for _, losses := range rows {
				weights, err := p.Weights(losses)
				require.NoError(t, err)
				require.Len(t, weights, len(losses))

				var sum float64
				for _, w := range weights {
					assert.GreaterOrEqual(t, w, 0.0)
					sum += w
				}
				assert.InDelta(t, 1.0, sum, 1e-6, "weights must form a convex combination")
			}

			_, err = p.Weights(nil)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestSoftmaxFavorsLowerLoss(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{Name: "softmax"})
	require.NoError(t, err)

	weights, err := p.Weights([]float64{0.5, 1.0, 3.0})
	require.NoError(t, err)

	assert.Greater(t, weights[0], weights[1])
	assert.Greater(t, weights[1], weights[2])
}

func TestSoftmaxTemperatureSharpens(t *testing.T) {
	flat, err := NewPolicy(PolicyConfig{Name: "softmax", Temperature: 10})
	require.NoError(t, err)
	sharp, err := NewPolicy(PolicyConfig{Name: "softmax", Temperature: 0.1})
	require.NoError(t, err)

	losses := []float64{0.5, 1.0}
	flatW, err := flat.Weights(losses)
	require.NoError(t, err)
	sharpW, err := sharp.Weights(losses)
	require.NoError(t, err)

	assert.Greater(t, sharpW[0], flatW[0], "lower temperature must concentrate weight on the best source")
}

func TestSoftmaxEqualLossesAreUniform(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{Name: "softmax"})
	require.NoError(t, err)

	weights, err := p.Weights([]float64{2.0, 2.0, 2.0, 2.0})
	require.NoError(t, err)
	for _, w := range weights {
		assert.InDelta(t, 0.25, w, 1e-12)
	}
}

func TestInverseRejectsNegativeLoss(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{Name: "inverse"})
	require.NoError(t, err)

	_, err = p.Weights([]float64{1.0, -0.5})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
