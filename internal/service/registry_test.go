package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siderealhq/genesis/internal/domain"
)

func binaryStrategy(name string, fields ...string) domain.Strategy {
	return domain.Strategy{
		Name:             name,
		Type:             domain.ProbeBinaryChoice,
		ApplicableFields: fields,
		Template:         "Are you more yourself early in the morning or late at night?",
		FallbackOptions:  []string{"morning", "night"},
		FallbackDeltas:   map[string]float32{"morning": 0.15, "night": -0.10},
	}
}

func TestStrategyRegistry_Register(t *testing.T) {
	r := NewStrategyRegistry()

	err := r.Register(binaryStrategy("daily_rhythm", "rising_sign"))
	assert.NoError(t, err)

	s, ok := r.Get("daily_rhythm")
	assert.True(t, ok)
	assert.Equal(t, "daily_rhythm", s.Name)
}

func TestStrategyRegistry_RegisterIdenticalIsNoOp(t *testing.T) {
	r := NewStrategyRegistry()
	s := binaryStrategy("daily_rhythm", "rising_sign")

	assert.NoError(t, r.Register(s))
	assert.NoError(t, r.Register(s))
	assert.Len(t, r.StrategiesFor("rising_sign"), 1)
}

func TestStrategyRegistry_RegisterConflict(t *testing.T) {
	r := NewStrategyRegistry()

	assert.NoError(t, r.Register(binaryStrategy("daily_rhythm", "rising_sign")))

	changed := binaryStrategy("daily_rhythm", "moon_sign")
	err := r.Register(changed)
	assert.ErrorIs(t, err, ErrDuplicateStrategy)

	// The original definition survives the rejected registration.
	s, _ := r.Get("daily_rhythm")
	assert.Equal(t, []string{"rising_sign"}, s.ApplicableFields)
}

func TestStrategyRegistry_StrategiesForFiltersAndOrders(t *testing.T) {
	r := NewStrategyRegistry()

	assert.NoError(t, r.Register(binaryStrategy("first", "rising_sign", "moon_sign")))
	assert.NoError(t, r.Register(binaryStrategy("second", "moon_sign")))
	assert.NoError(t, r.Register(binaryStrategy("third", "rising_sign")))

	got := r.StrategiesFor("rising_sign")
	assert.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "third", got[1].Name)

	assert.Empty(t, r.StrategiesFor("pet_preference"))
}

func TestDefaultStrategies_AllRegister(t *testing.T) {
	r := NewStrategyRegistry()
	for _, s := range DefaultStrategies() {
		assert.NoError(t, r.Register(s))
	}

	// Every default strategy keeps a complete fallback: one delta per option.
	for _, s := range DefaultStrategies() {
		assert.NotEmpty(t, s.Template, s.Name)
		for _, opt := range s.FallbackOptions {
			_, ok := s.FallbackDeltas[opt]
			assert.True(t, ok, "strategy %s missing fallback delta for %q", s.Name, opt)
		}
	}
}
