// Package iforest implements isolation forest scoring over a persisted model
// artifact, plus the batch fitting used by the train command.
//
// A forest is immutable once loaded. Rows are scored with the standard
// isolation score s(x) = 2^(-E[h(x)] / c(psi)); rows whose score exceeds the
// forest threshold are labelled anomalous.
package iforest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// FormatVersion is the artifact format written by Save.
const FormatVersion = 1

// eulerGamma is the Euler-Mascheroni constant used by the average path length.
const eulerGamma = 0.5772156649015329

var (
	// ErrNotFound is returned by Load when no artifact exists at the path.
	ErrNotFound = errors.New("model artifact not found")

	// ErrSchemaMismatch is returned by Load when the artifact was trained on a
	// different feature set or order than the caller scores with.
	ErrSchemaMismatch = errors.New("model feature schema mismatch")

	// ErrDimension is returned when a row does not match the feature count.
	ErrDimension = errors.New("row dimension mismatch")
)

// Label is the binary model verdict for one row.
type Label int

const (
	Normal  Label = 1
	Anomaly Label = -1
)

// String returns a human-readable label.
func (l Label) String() string {
	if l == Anomaly {
		return "anomaly"
	}
	return "normal"
}

// Node is one node of an isolation tree. Leaves have Left == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Size      int     `json:"s"` // training samples reaching a leaf
}

// IsLeaf reports whether the node is a leaf.
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a flattened isolation tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a trained isolation forest artifact.
type Forest struct {
	Version       int       `json:"version"`
	Features      []string  `json:"features"`
	SampleSize    int       `json:"sample_size"`
	Contamination float64   `json:"contamination"`
	Threshold     float64   `json:"threshold"`
	TrainedAt     time.Time `json:"trained_at"`
	TrainingRows  int       `json:"training_rows"`
	Trees         []Tree    `json:"trees"`
}

// Score returns the isolation score of row in (0, 1]. Higher is more anomalous.
func (f *Forest) Score(row []float64) (float64, error) {
	if len(row) != len(f.Features) {
		return 0, fmt.Errorf("%w: got %d values, model has %d features", ErrDimension, len(row), len(f.Features))
	}
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("forest has no trees")
	}

	var total float64
	for i := range f.Trees {
		total += pathLength(&f.Trees[i], row)
	}
	mean := total / float64(len(f.Trees))

	norm := averagePathLength(f.SampleSize)
	if norm == 0 {
		return 1, nil
	}
	return math.Pow(2, -mean/norm), nil
}

// Predict labels row as Anomaly when its score exceeds the threshold.
func (f *Forest) Predict(row []float64) (Label, error) {
	score, err := f.Score(row)
	if err != nil {
		return Normal, err
	}
	if score > f.Threshold {
		return Anomaly, nil
	}
	return Normal, nil
}

func pathLength(t *Tree, row []float64) float64 {
	depth := 0.0
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return depth + averagePathLength(n.Size)
		}
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST
// search over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// ────────────────────────────────────────────────────────────────────────────────
// Persistence
// ────────────────────────────────────────────────────────────────────────────────

// Load reads an artifact and checks it was trained on exactly expected
// features, in order. A missing file yields ErrNotFound.
func Load(path string, expected []string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read model: %w", err)
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported model version %d (want %d)", f.Version, FormatVersion)
	}
	if !slices.Equal(f.Features, expected) {
		return nil, fmt.Errorf("%w: model trained on %v, scorer uses %v", ErrSchemaMismatch, f.Features, expected)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the artifact atomically.
func (f *Forest) Save(path string) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (f *Forest) validate() error {
	if f.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", ti, ni, n.Feature)
			}
			// Children always follow their parent, so walks terminate.
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}
