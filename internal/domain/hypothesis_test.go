package domain

import "testing"

func TestHypothesis_Confirmed(t *testing.T) {
	h := &Hypothesis{Confidence: 0.85, Threshold: 0.8, Resolved: true}
	if !h.Confirmed() {
		t.Fatal("expected resolved hypothesis at threshold to be confirmed")
	}
}

func TestHypothesis_ResolvedButNotConfirmed(t *testing.T) {
	h := &Hypothesis{Confidence: 0.55, Threshold: 0.8, Resolved: true}
	if h.Confirmed() {
		t.Fatal("expected hypothesis resolved by exhaustion to not be confirmed")
	}
}

func TestHypothesis_NotResolvedNotConfirmed(t *testing.T) {
	// Above threshold but not yet marked resolved: confirmation requires both.
	h := &Hypothesis{Confidence: 0.9, Threshold: 0.8}
	if h.Confirmed() {
		t.Fatal("expected unresolved hypothesis to not be confirmed")
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in, want float32
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}
	for _, c := range cases {
		if got := ClampConfidence(c.in); got != c.want {
			t.Fatalf("ClampConfidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestProbePacket_DeltasFor(t *testing.T) {
	p := &ProbePacket{
		Mappings: map[string]map[string]float32{
			"morning": {"virgo": 0.15},
		},
	}

	deltas, ok := p.DeltasFor("morning")
	if !ok {
		t.Fatal("expected mapping for declared answer token")
	}
	if deltas["virgo"] != 0.15 {
		t.Fatalf("expected delta 0.15, got %v", deltas["virgo"])
	}

	if _, ok := p.DeltasFor("afternoon"); ok {
		t.Fatal("expected no mapping for undeclared answer token")
	}
}
