package trust

import (
	"fmt"
	"math/rand"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/shard"
)

// Participant is one client's view for an aggregation event: its current
// model and its reference shard, a split disjoint from its train and
// validation data.
type Participant struct {
	Model model.Model
	Ref   *shard.Shard
}

// Aggregate replaces every participant's trainable parameters with the
// trust-weighted convex combination of all participants' parameters.
//
// For each target j one reference batch is drawn from j's reference shard
// and every source model i is scored on it, giving the loss row L(·, j).
// The policy turns each row into mixing weights. All updates are computed
// from a snapshot of the parameters taken before any participant is mutated,
// so the result is independent of participant order, and all updates are
// committed only after every row has been computed.
//
// A failure to sample any reference batch aborts the whole event with no
// participant mutated.
func Aggregate(parts []Participant, policy Policy, rng *rand.Rand, sequenceLength, batchSize int) error {
	if len(parts) == 0 {
		return fmt.Errorf("no participants to aggregate")
	}

	for _, p := range parts {
		p.Model.SetTraining(false)
	}
	defer func() {
		for _, p := range parts {
			p.Model.SetTraining(true)
		}
	}()

	snapshots := make([]model.Params, len(parts))
	for i, p := range parts {
		snapshots[i] = p.Model.TrainableParams().Clone()
	}

	updated := make([]model.Params, len(parts))
	for j, target := range parts {
		batch, err := target.Ref.Sample(rng, sequenceLength, batchSize)
		if err != nil {
			return fmt.Errorf("aggregation aborted: reference batch for client %d: %w", target.Ref.ClientID, err)
		}

		losses := make([]float64, len(parts))
		for i, source := range parts {
			loss, _, _, err := source.Model.Eval(batch)
			if err != nil {
				return fmt.Errorf("aggregation aborted: scoring client %d on client %d reference data: %w",
					i, target.Ref.ClientID, err)
			}
			losses[i] = loss
		}

		weights, err := policy.Weights(losses)
		if err != nil {
			return fmt.Errorf("aggregation aborted: %w", err)
		}

		mixed := snapshots[j].Clone()
		mixed.Zero()
		for i, w := range weights {
			for name, v := range mixed {
				src := snapshots[i][name]
				for k := range v {
					v[k] += w * src[k]
				}
			}
		}
		updated[j] = mixed
	}

	for j, p := range parts {
		p.Model.TrainableParams().CopyFrom(updated[j])
	}

	return nil
}
