package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zerofisher/icmpwatch/pkg/iforest"
	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

// TrainModel fits a forest on every record in the log and saves it to path.
// The running monitor only loads the artifact at startup.
func TrainModel(ctx context.Context, r store.Reader, path string, opts iforest.Options) (*iforest.Forest, error) {
	records, err := r.Tail(ctx, 0)
	if err != nil {
		if errors.Is(err, store.ErrNoLog) {
			return nil, fmt.Errorf("no training data: %w", err)
		}
		return nil, fmt.Errorf("read metric log: %w", err)
	}

	rows := make([][]float64, len(records))
	for i, rec := range records {
		rows[i] = rec.Vector()
	}

	forest, err := iforest.Fit(rows, model.Columns, opts)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	if err := forest.Save(path); err != nil {
		return nil, err
	}
	return forest, nil
}
