package app

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/Zerofisher/icmpwatch/anomaly"
	"github.com/Zerofisher/icmpwatch/pkg/iforest"
	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
	"github.com/Zerofisher/icmpwatch/pkg/store/csvlog"
)

func TestTrainModel(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	log := csvlog.New(filepath.Join(dir, "icmp_live.csv"))

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		rec := model.FeatureRecord{
			RTTProxyMs:  100 + rng.NormFloat64()*5,
			ICMPRate:    10 + rng.NormFloat64(),
			TTL:         64 + rng.Intn(3) - 1,
			TTLVariance: 1 + rng.Float64(),
		}.Rounded()
		if err := log.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, "model", "icmp_model.json")
	forest, err := TrainModel(ctx, log, path, iforest.DefaultOptions())
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}
	if forest.TrainingRows != 200 || len(forest.Trees) != 100 {
		t.Errorf("forest rows=%d trees=%d", forest.TrainingRows, len(forest.Trees))
	}

	scorer, err := anomaly.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !scorer.Enabled() {
		t.Fatal("Expected the saved model to load")
	}
	outlier := model.FeatureRecord{RTTProxyMs: 2000, ICMPRate: 400, TTL: 12, TTLVariance: 900}
	if n := scorer.Score([]model.FeatureRecord{outlier}); n != 1 {
		t.Errorf("outlier anomalies = %d, want 1", n)
	}
}

func TestTrainModelNoLog(t *testing.T) {
	log := csvlog.New(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := TrainModel(context.Background(), log, filepath.Join(t.TempDir(), "m.json"), iforest.DefaultOptions())
	if !errors.Is(err, store.ErrNoLog) {
		t.Fatalf("err = %v, want ErrNoLog", err)
	}
}
