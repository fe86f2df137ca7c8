package service

import "github.com/siderealhq/genesis/internal/domain"

// DefaultStrategies is the built-in probing repertoire, registered at
// startup. Templates never reference the field they resolve; each reads as
// ordinary small talk. Fallback deltas apply to the hypothesis's suspected
// value when the text backend is unavailable.
func DefaultStrategies() []domain.Strategy {
	return []domain.Strategy{
		{
			Name:             "daily_rhythm",
			Type:             domain.ProbeBinaryChoice,
			ApplicableFields: []string{"rising_sign", "birth_hour", "sun_sign"},
			Template:         "Are you more yourself early in the morning or late at night?",
			FallbackOptions:  []string{"morning", "night"},
			FallbackDeltas: map[string]float32{
				"morning": 0.15,
				"night":   -0.10,
			},
		},
		{
			Name:             "first_impression",
			Type:             domain.ProbeConfirmation,
			ApplicableFields: []string{"rising_sign", "moon_sign"},
			Template:         "People who just met you would probably call you calm and a little reserved. Does that sound right?",
			FallbackOptions:  []string{"yes", "no", "sometimes"},
			FallbackDeltas: map[string]float32{
				"yes":       0.20,
				"no":        -0.20,
				"sometimes": 0.05,
			},
		},
		{
			Name:             "instinct_scale",
			Type:             domain.ProbeSlider,
			ApplicableFields: []string{"rising_sign", "moon_sign", "birth_hour"},
			Template:         "When plans change at the last minute, how thrown off are you, from 1 (not at all) to 5 (completely)?",
			FallbackOptions:  []string{"1", "2", "3", "4", "5"},
			FallbackDeltas: map[string]float32{
				"1": -0.15,
				"2": -0.05,
				"3": 0.0,
				"4": 0.10,
				"5": 0.20,
			},
		},
		{
			Name:             "quiet_hours",
			Type:             domain.ProbeReflection,
			ApplicableFields: []string{"birth_hour", "moon_sign"},
			Template:         "Think back to childhood mornings at home. Were they usually rushed or slow?",
			FallbackOptions:  []string{"rushed", "slow", "don't remember"},
			FallbackDeltas: map[string]float32{
				"rushed":         0.10,
				"slow":           -0.10,
				"don't remember": 0.0,
			},
		},
	}
}
