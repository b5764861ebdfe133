package scoring

import (
	"math"
	"testing"

	"github.com/kilianp07/eventrescue/core/model"
)

func TestScoreFireAlwaysHigh(t *testing.T) {
	cases := []model.Evidence{
		{Labels: []string{"fire"}},
		{Labels: []string{"fire", "fall"}, LabelConfidences: map[string]float64{"fall": 0.1}},
		{Labels: []string{"FIRE"}},
	}
	for _, ev := range cases {
		if s := Score(model.Metadata{}, ev); s < 0.9 {
			t.Errorf("fire evidence %v scored %v, want >= 0.9", ev.Labels, s)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	inputs := []struct {
		md model.Metadata
		ev model.Evidence
	}{
		{},
		{md: model.Metadata{MotionIntensity: -5}},
		{md: model.Metadata{MotionIntensity: 42, PoseConfidence: 9}},
		{md: model.Metadata{Age: "martian"}},
		{ev: model.Evidence{Labels: []string{"???", ""}}},
		{
			md: model.Metadata{Age: model.AgeChild, AudioScream: true, MotionIntensity: 1},
			ev: model.Evidence{
				Labels:           []string{"fire", "smoke", "bleeding", "collapse", "fall", "panic"},
				LabelConfidences: map[string]float64{"fall": 1, "fire": 1},
			},
		},
	}
	for _, in := range inputs {
		s := Score(in.md, in.ev)
		if s < 0 || s > 1 {
			t.Errorf("score out of range for %+v / %+v: %v", in.md, in.ev, s)
		}
	}
}

func TestScoreChildMonotonic(t *testing.T) {
	evs := []model.Evidence{
		{},
		{Labels: []string{"fall"}, LabelConfidences: map[string]float64{"fall": 0.5}},
		{Labels: []string{"smoke"}},
	}
	for _, ev := range evs {
		for _, motion := range []float64{0, 0.3, 0.9} {
			base := Score(model.Metadata{MotionIntensity: motion}, ev)
			child := Score(model.Metadata{Age: model.AgeChild, MotionIntensity: motion}, ev)
			if child < base {
				t.Errorf("child variant scored %v below base %v for %v", child, base, ev.Labels)
			}
		}
	}
}

func TestScoreFallWithMotion(t *testing.T) {
	md := model.Metadata{MotionIntensity: 0.5}
	ev := model.Evidence{Labels: []string{"fall"}, LabelConfidences: map[string]float64{"fall": 0.8}}
	s := Score(md, ev)
	if s < 0.3 || s > 0.9 {
		t.Fatalf("fall scenario scored %v, want within [0.3, 0.9]", s)
	}
}

func TestScoreCollapseWithScream(t *testing.T) {
	md := model.Metadata{AudioScream: true, MotionIntensity: 0.9}
	ev := model.Evidence{Labels: []string{"collapse"}, LabelConfidences: map[string]float64{"collapse": 0.95}}
	if s := Score(md, ev); s < 0.8 {
		t.Fatalf("collapse scenario scored %v, want >= 0.8", s)
	}
}

func TestScoreBlendNeverLowers(t *testing.T) {
	// The confidence blend takes the max with the pre-blend score, so a low
	// mean confidence must not undercut a hard floor.
	ev := model.Evidence{
		Labels:           []string{"fire", "fall"},
		LabelConfidences: map[string]float64{"fire": 0.05, "fall": 0.05},
	}
	if s := Score(model.Metadata{}, ev); s < 0.9 {
		t.Fatalf("blend lowered score below fire floor: %v", s)
	}

	for _, conf := range []float64{0, 0.1, 0.25, 0.5, 0.75, 1} {
		ev := model.Evidence{
			Labels:           []string{"bleeding"},
			LabelConfidences: map[string]float64{"bleeding": conf},
		}
		if s := Score(model.Metadata{}, ev); s < 0.8 {
			t.Errorf("conf %v lowered bleeding floor: %v", conf, s)
		}
	}
}

func TestScoreRounding(t *testing.T) {
	md := model.Metadata{MotionIntensity: 1.0 / 3.0}
	s := Score(md, model.Evidence{})
	if s*1000 != math.Trunc(s*1000) {
		t.Fatalf("score %v not rounded to 3 decimals", s)
	}
}

func TestScoreCaseInsensitiveConfidences(t *testing.T) {
	mixed := model.Evidence{
		Labels:           []string{"Fall"},
		LabelConfidences: map[string]float64{"Fall": 0.95},
	}
	lower := model.Evidence{
		Labels:           []string{"fall"},
		LabelConfidences: map[string]float64{"fall": 0.95},
	}
	got := Score(model.Metadata{}, mixed)
	want := Score(model.Metadata{}, lower)
	if got != want {
		t.Errorf("mixed-case evidence scored %v, lower-case %v", got, want)
	}
	// the recorded confidence must reach the fall floor, not the default
	if got != 0.83 {
		t.Errorf("score = %v, want 0.83", got)
	}
}

func TestScoreFallDefaultConfidence(t *testing.T) {
	// absent confidence defaults to 0.6, a recorded zero does not
	withDefault := Score(model.Metadata{}, model.Evidence{Labels: []string{"fall"}})
	if withDefault != 0.6 {
		t.Fatalf("fall with default confidence scored %v, want 0.6", withDefault)
	}
	withZero := Score(model.Metadata{}, model.Evidence{
		Labels:           []string{"fall"},
		LabelConfidences: map[string]float64{"fall": 0},
	})
	if withZero >= withDefault {
		t.Fatalf("explicit zero confidence scored %v, want below %v", withZero, withDefault)
	}
}
