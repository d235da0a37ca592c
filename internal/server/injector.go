package server

import (
	"math/rand"
	"sync"
	"time"
)

// Injector draws actions from a policy. The random source is owned by the
// injector and guarded by a mutex so concurrent connection workers can
// share it.
type Injector struct {
	policy Policy
	mu     sync.Mutex
	rng    *rand.Rand
	hits   map[Action]int64
}

// NewInjector creates an injector for policy. A zero seed seeds from the
// clock.
func NewInjector(policy Policy, seed int64) (*Injector, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Injector{
		policy: policy,
		rng:    rand.New(rand.NewSource(seed)),
		hits:   make(map[Action]int64),
	}, nil
}

// Draw returns a uniform integer in [DrawMin, DrawMax].
func (i *Injector) Draw() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return DrawMin + i.rng.Intn(DrawMax-DrawMin+1)
}

// Next draws and returns the action for one message.
func (i *Injector) Next() Action {
	a := i.policy.Decide(i.Draw())
	i.mu.Lock()
	i.hits[a]++
	i.mu.Unlock()
	return a
}

// Policy returns the injector's policy.
func (i *Injector) Policy() Policy {
	return i.policy
}

// Stats returns how often each action was chosen.
func (i *Injector) Stats() map[Action]int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	stats := make(map[Action]int64, len(i.hits))
	for k, v := range i.hits {
		stats[k] = v
	}
	return stats
}

// Reset clears the action counters.
func (i *Injector) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.hits = make(map[Action]int64)
}
