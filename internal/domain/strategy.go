package domain

// Strategy is a stateless descriptor for turning a hypothesis into a
// natural-sounding probe: probe shape, the fields it applies to, and a static
// template used whenever the text-generation backend fails or misbehaves.
// Strategies carry no session state; dispatch is a pure lookup.
type Strategy struct {
	Name             string             `json:"name"`
	Type             ProbeType          `json:"probe_type"`
	ApplicableFields []string           `json:"applicable_fields"`
	Template         string             `json:"template"`
	FallbackOptions  []string           `json:"fallback_options,omitempty"`
	FallbackDeltas   map[string]float32 `json:"fallback_deltas"`
}

// AppliesTo reports whether the strategy is declared for the given field.
func (s Strategy) AppliesTo(field string) bool {
	for _, f := range s.ApplicableFields {
		if f == field {
			return true
		}
	}
	return false
}
