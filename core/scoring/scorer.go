// Package scoring converts raw detector signals into a normalized distress
// severity. The scorer is a pure function: deterministic, total and monotonic,
// so adding a more severe signal never lowers the result.
package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/eventrescue/core/model"
)

// Fixed severity floors per evidence label. One high-confidence risk factor
// dominates the score instead of being diluted by averaging.
const (
	fireFloor        = 0.9
	smokeFloor       = 0.8
	unconsciousFloor = 0.85
	bleedingFloor    = 0.8
	screamFloor      = 0.7
	panicFloor       = 0.75
)

// Score computes the distress severity in [0,1] for the given detector
// outputs. Missing or malformed numeric fields count as zero; the function
// never fails.
func Score(md model.Metadata, ev model.Evidence) float64 {
	labels := ev.LabelSet()

	score := 0.0
	if labels["fire"] {
		score = math.Max(score, fireFloor)
	}
	if labels["smoke"] {
		score = math.Max(score, smokeFloor)
	}
	if labels["unconscious"] || labels["collapse"] {
		score = math.Max(score, unconsciousFloor)
	}
	if labels["bleeding"] {
		score = math.Max(score, bleedingFloor)
	}
	if labels["fall"] {
		// a fall may be minor, scale the floor by its own confidence
		conf := ev.Confidence("fall", 0.6)
		score = math.Max(score, math.Min(0.75, 0.3+0.5*conf))
	}

	// Age only escalates, never de-escalates.
	switch md.Age {
	case model.AgeChild:
		score = math.Max(score, math.Min(1.0, score+0.12))
	case model.AgeElderly:
		score = math.Max(score, math.Min(1.0, score+0.10))
	}

	if md.AudioScream {
		score = math.Max(score, screamFloor)
	}

	// Raw motion alone is bounded below "critical" without corroborating
	// evidence.
	score = math.Max(score, math.Min(0.6, 0.2+0.6*md.MotionIntensity))

	if md.PoseConfidence > 0.8 && labels["panic"] {
		score = math.Max(score, panicFloor)
	}

	score = clamp01(score)

	// Blend with the mean confidence of matched labels only. Taking the max
	// with the pre-blend score rewards corroborated detections without
	// letting confidence alone lower the result.
	if matched := matchedConfidences(ev, labels); len(matched) > 0 {
		avg := stat.Mean(matched, nil)
		score = math.Min(1.0, math.Max(score, 0.6*score+0.4*avg))
	}

	return round3(score)
}

func matchedConfidences(ev model.Evidence, labels map[string]bool) []float64 {
	conf := ev.NormalizedConfidences()
	keys := make([]string, 0, len(conf))
	for label := range conf {
		if labels[label] {
			keys = append(keys, label)
		}
	}
	// fixed summation order keeps the result bit-for-bit deterministic
	sort.Strings(keys)
	out := make([]float64, 0, len(keys))
	for _, label := range keys {
		out = append(out, conf[label])
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
