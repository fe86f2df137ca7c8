package service

import (
	"reflect"
	"sync"

	"github.com/siderealhq/genesis/internal/domain"
)

// StrategyRegistry is a static capability lookup: field name to the ordered
// set of probing strategies that apply to it. Strategies are pure data and
// carry no session state. Registration happens at startup; a name collision
// with a different definition is a conflict, re-registering an identical
// strategy is a no-op.
type StrategyRegistry struct {
	mu     sync.RWMutex
	byName map[string]domain.Strategy
	order  []string
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{byName: make(map[string]domain.Strategy)}
}

func (r *StrategyRegistry) Register(s domain.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[s.Name]; ok {
		if reflect.DeepEqual(existing, s) {
			return nil
		}
		return ErrDuplicateStrategy
	}

	r.byName[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

// StrategiesFor returns every registered strategy applicable to the field,
// in registration order.
func (r *StrategyRegistry) StrategiesFor(field string) []domain.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Strategy
	for _, name := range r.order {
		s := r.byName[name]
		if s.AppliesTo(field) {
			out = append(out, s)
		}
	}
	return out
}

func (r *StrategyRegistry) Get(name string) (domain.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}
