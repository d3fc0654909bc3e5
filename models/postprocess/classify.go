package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-predict/models"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// topK is the length of the ranked candidate list.
const topK = 5

// ClassificationSource is anything that can be ranked into a ClassificationResult.
type ClassificationSource interface {
	Rank() (ClassificationResult, error)
}

// Decode ranks a classification source.
//
// On error the returned result is empty (not nil slices) so callers in a real-time
// loop can keep going with a zero result.
//
// Arguments:
//   - src: Either RawScores, HalfScores or Observations.
//
// Returns:
//   - ClassificationResult: The ranking.
//   - error: ErrLabelCountMismatch or ErrLabelIndexOutOfRange on malformed input.
func Decode(src ClassificationSource) (ClassificationResult, error) {
	return src.Rank()
}

// EmptyClassification returns the zero ranking with non-nil empty slices.
func EmptyClassification() ClassificationResult {
	return ClassificationResult{Top5: []string{}, Top5Confs: []float32{}}
}

// RawScores is a per-class score vector of arbitrary non-negative scale.
type RawScores struct {
	// Scores is index-aligned with Labels.
	Scores []float32
	// Labels names each score position.
	Labels models.Labels
}

// Rank sorts the scores in descending order and keeps the best five.
//
// Equal scores keep their original order, so the lower class index ranks first.
func (s RawScores) Rank() (ClassificationResult, error) {
	if len(s.Scores) != len(s.Labels) {
		return EmptyClassification(), errors.Wrapf(ErrLabelCountMismatch,
			"%d scores for %d labels", len(s.Scores), len(s.Labels))
	}

	order := make([]int, len(s.Scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Scores[order[a]] > s.Scores[order[b]]
	})

	n := min(topK, len(order))
	result := ClassificationResult{
		Top5:      make([]string, 0, n),
		Top5Confs: make([]float32, 0, n),
	}
	for _, idx := range order[:n] {
		name, ok := s.Labels.Name(idx)
		if !ok {
			return EmptyClassification(), errors.Wrapf(ErrLabelIndexOutOfRange,
				"class %d with %d labels", idx, len(s.Labels))
		}
		result.Top5 = append(result.Top5, name)
		result.Top5Confs = append(result.Top5Confs, s.Scores[idx])
	}

	if n > 0 {
		result.Top1 = result.Top5[0]
		result.Top1Conf = result.Top5Confs[0]
	}
	return result, nil
}

// HalfScores is a score vector delivered as IEEE 754 half-precision bit patterns.
type HalfScores struct {
	Bits   []uint16
	Labels models.Labels
}

// Rank widens the scores to float32 and ranks them like RawScores.
func (s HalfScores) Rank() (ClassificationResult, error) {
	scores := make([]float32, len(s.Bits))
	for i, b := range s.Bits {
		scores[i] = float16.Frombits(b).Float32()
	}
	return RawScores{Scores: scores, Labels: s.Labels}.Rank()
}

// Observation is one entry of an engine-ranked classification list.
type Observation struct {
	Identifier string  `json:"identifier"`
	Confidence float32 `json:"confidence"`
}

// Observations is a classification list already sorted by the engine, best first.
// The order is trusted and not re-verified.
type Observations []Observation

// Rank keeps the first five observations. An empty list yields an empty result.
func (o Observations) Rank() (ClassificationResult, error) {
	if len(o) == 0 {
		return EmptyClassification(), nil
	}

	n := min(topK, len(o))
	result := ClassificationResult{
		Top1:      o[0].Identifier,
		Top1Conf:  o[0].Confidence,
		Top5:      make([]string, n),
		Top5Confs: make([]float32, n),
	}
	for i, obs := range o[:n] {
		result.Top5[i] = obs.Identifier
		result.Top5Confs[i] = obs.Confidence
	}
	return result, nil
}
