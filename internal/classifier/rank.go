package classifier

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Prediction is one class and its probability.
type Prediction struct {
	Label string
	Prob  float64
}

// Result holds the top-K predictions, most probable first.
type Result struct {
	TopLabel string
	TopProb  float64
	TopK     []Prediction
}

// TopKString renders the predictions as "label:0.000|label:0.000".
func (r Result) TopKString() string {
	parts := make([]string, len(r.TopK))
	for i, p := range r.TopK {
		parts[i] = p.Label + ":" + strconv.FormatFloat(p.Prob, 'f', 3, 64)
	}
	return strings.Join(parts, "|")
}

// Softmax converts logits to probabilities. The maximum logit is subtracted
// before exponentiation.
func Softmax(logits []float32) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}
	for i, v := range logits {
		probs[i] = float64(v)
	}

	floats.AddConst(-floats.Max(probs), probs)
	for i, v := range probs {
		probs[i] = math.Exp(v)
	}

	sum := floats.Sum(probs)
	if sum <= 0 {
		sum = 1
	}
	floats.Scale(1/sum, probs)
	return probs
}

// Rank returns the k most probable classes of probs. k is raised to 1 and
// capped at the class count; equal probabilities keep index order.
func Rank(probs []float64, k int, labels []string) (Result, error) {
	if len(probs) == 0 {
		return Result{}, fmt.Errorf("empty model output")
	}

	// Stable ascending sort of negated probabilities gives descending order
	// with ties broken by lower index.
	neg := make([]float64, len(probs))
	floats.ScaleTo(neg, -1, probs)
	inds := make([]int, len(probs))
	floats.ArgsortStable(neg, inds)

	k = min(max(1, k), len(probs))
	res := Result{TopK: make([]Prediction, k)}
	for i := 0; i < k; i++ {
		idx := inds[i]
		res.TopK[i] = Prediction{Label: labelOf(labels, idx), Prob: probs[idx]}
	}
	res.TopLabel = res.TopK[0].Label
	res.TopProb = res.TopK[0].Prob
	return res, nil
}

func labelOf(labels []string, idx int) string {
	if idx < 0 || idx >= len(labels) {
		return fmt.Sprintf("Class%d", idx)
	}
	return labels[idx]
}
