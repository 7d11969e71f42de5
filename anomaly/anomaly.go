// Package anomaly counts outlier rows in a window of feature records using an
// optional isolation forest.
package anomaly

import (
	"errors"
	"fmt"

	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/pkg/iforest"
	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// Model is the scorer's optional capability: either a loaded forest or
// nothing. Build one with Disabled or WithForest.
type Model struct {
	forest *iforest.Forest
}

// Disabled returns a model that never flags rows.
func Disabled() Model {
	return Model{}
}

// WithForest returns a model backed by f. A nil forest is Disabled.
func WithForest(f *iforest.Forest) Model {
	return Model{forest: f}
}

// Scorer counts anomalous rows. It is safe for concurrent use; the model is
// read-only after construction.
type Scorer struct {
	model Model
}

// New creates a scorer over m.
func New(m Model) *Scorer {
	return &Scorer{model: m}
}

// Open loads the forest at path. A missing artifact yields a disabled scorer;
// a feature schema mismatch is an error.
func Open(path string) (*Scorer, error) {
	f, err := iforest.Load(path, model.Columns)
	if err != nil {
		if errors.Is(err, iforest.ErrNotFound) {
			log := logging.Component("anomaly")
			log.Warn().Str("path", path).Msg("no model artifact, anomaly scoring disabled")
			return New(Disabled()), nil
		}
		return nil, fmt.Errorf("load anomaly model: %w", err)
	}
	return New(WithForest(f)), nil
}

// Enabled reports whether a forest is loaded.
func (s *Scorer) Enabled() bool {
	return s != nil && s.model.forest != nil
}

// Forest returns the loaded forest or nil.
func (s *Scorer) Forest() *iforest.Forest {
	if s == nil {
		return nil
	}
	return s.model.forest
}

// Score returns how many rows the model labels anomalous. Always 0 when
// disabled.
func (s *Scorer) Score(rows []model.FeatureRecord) int {
	if !s.Enabled() {
		return 0
	}
	count := 0
	for _, r := range rows {
		label, err := s.model.forest.Predict(r.Vector())
		if err != nil {
			// Load already checked the feature count; this cannot happen.
			continue
		}
		if label == iforest.Anomaly {
			count++
		}
	}
	return count
}
