package route

import (
	"math/rand"
	"time"

	"github.com/kilianp07/parcelmas/core/fleet"
	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
)

// RandomStrategy visits tasks in a random order. Deliveries of carried tasks
// may happen anywhere; every other delivery follows its pickup.
type RandomStrategy struct {
	rng *rand.Rand
}

// NewRandomStrategy returns a strategy drawing from its own generator.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

// NewRandom returns a planner with a RandomStrategy.
func NewRandom(seed int64, log logger.Logger) *RoutePlanner {
	return New("random", NewRandomStrategy(seed), log)
}

// Plan implements Strategy.
func (s *RandomStrategy) Plan(v fleet.Vehicle, parcels, _ []*model.Task, _ time.Time) ([]*model.Task, error) {
	onBoard, onMap := split(v, parcels)
	seq := make([]*model.Task, 0, len(onBoard)+2*len(onMap))
	for _, i := range s.rng.Perm(len(onBoard)) {
		seq = append(seq, onBoard[i])
	}
	for _, i := range s.rng.Perm(len(onMap)) {
		t := onMap[i]
		pick := s.rng.Intn(len(seq) + 1)
		seq = insertAt(seq, pick, t)
		drop := pick + 1 + s.rng.Intn(len(seq)-pick)
		seq = insertAt(seq, drop, t)
	}
	return seq, nil
}

func insertAt(seq []*model.Task, pos int, t *model.Task) []*model.Task {
	seq = append(seq, nil)
	copy(seq[pos+1:], seq[pos:])
	seq[pos] = t
	return seq
}
