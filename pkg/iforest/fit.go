package iforest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Options controls forest fitting.
type Options struct {
	Trees         int
	SampleSize    int
	Contamination float64 // expected anomaly share; 0 uses the fixed 0.5 score cut
	Seed          int64
}

// DefaultOptions mirrors the settings the ICMP model has always been trained with.
func DefaultOptions() Options {
	return Options{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.01,
		Seed:          42,
	}
}

// Fit trains a forest on rows, each a vector in features order.
func Fit(rows [][]float64, features []string, opts Options) (*Forest, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need at least 2 rows to fit, got %d", len(rows))
	}
	for i, r := range rows {
		if len(r) != len(features) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimension, i, len(r), len(features))
		}
	}
	if opts.Trees <= 0 {
		opts.Trees = DefaultOptions().Trees
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultOptions().SampleSize
	}
	if opts.Contamination < 0 || opts.Contamination >= 0.5 {
		return nil, fmt.Errorf("contamination must be in [0, 0.5), got %v", opts.Contamination)
	}

	psi := min(opts.SampleSize, len(rows))
	b := &builder{
		rows:        rows,
		nFeatures:   len(features),
		heightLimit: int(math.Ceil(math.Log2(float64(psi)))),
		rng:         rand.New(rand.NewSource(opts.Seed)),
	}

	f := &Forest{
		Version:       FormatVersion,
		Features:      append([]string(nil), features...),
		SampleSize:    psi,
		Contamination: opts.Contamination,
		TrainedAt:     time.Now().UTC(),
		TrainingRows:  len(rows),
		Trees:         make([]Tree, 0, opts.Trees),
	}
	for i := 0; i < opts.Trees; i++ {
		idx := b.rng.Perm(len(rows))[:psi]
		t := Tree{}
		b.grow(&t, idx, 0)
		f.Trees = append(f.Trees, t)
	}

	if opts.Contamination == 0 {
		f.Threshold = 0.5
		return f, nil
	}

	scores := make([]float64, len(rows))
	for i, r := range rows {
		s, err := f.Score(r)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	sort.Float64s(scores)
	f.Threshold = quantile(scores, 1-opts.Contamination)
	return f, nil
}

type builder struct {
	rows        [][]float64
	nFeatures   int
	heightLimit int
	rng         *rand.Rand
}

// grow appends the subtree for idx to t and returns its node index.
func (b *builder) grow(t *Tree, idx []int, depth int) int {
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Size: len(idx)})

	if depth >= b.heightLimit || len(idx) <= 1 {
		return self
	}

	// Only features that still vary can split.
	lo := make([]float64, b.nFeatures)
	hi := make([]float64, b.nFeatures)
	for f := 0; f < b.nFeatures; f++ {
		lo[f], hi[f] = math.Inf(1), math.Inf(-1)
	}
	for _, i := range idx {
		for f, v := range b.rows[i] {
			lo[f] = math.Min(lo[f], v)
			hi[f] = math.Max(hi[f], v)
		}
	}
	var candidates []int
	for f := 0; f < b.nFeatures; f++ {
		if hi[f] > lo[f] {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return self
	}

	feat := candidates[b.rng.Intn(len(candidates))]
	split := lo[feat] + b.rng.Float64()*(hi[feat]-lo[feat])

	var left, right []int
	for _, i := range idx {
		if b.rows[i][feat] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(t, left, depth+1)
	r := b.grow(t, right, depth+1)
	t.Nodes[self] = Node{Feature: feat, Threshold: split, Left: l, Right: r}
	return self
}

// quantile returns the q-quantile of sorted values with linear interpolation.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
