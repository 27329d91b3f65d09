package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/config"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func sample(entryID int64, createdAt time.Time, pir, temp, threat, eclass string) models.SensorSample {
	return models.SensorSample{
		EntryID:   entryID,
		CreatedAt: createdAt,
		Field1:    pir,
		Field2:    temp,
		Field6:    threat,
		Field8:    eclass,
	}
}

func analysisView() config.ViewConfig {
	return config.ViewConfig{
		Name:           config.ViewAnalysis,
		PollInterval:   5 * time.Second,
		StaleThreshold: 30 * time.Second,
		SeriesStep:     time.Minute,
		LabelLayout:    "15:04",
		FallRate:       0.05,
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Monitor.NodeID = "A-101"
	cfg.Monitor.WindowSize = 20
	cfg.Monitor.AlertView = config.ViewAnalysis
	cfg.Monitor.Views = []config.ViewConfig{analysisView()}
	return cfg
}

type fakeSnapshotSink struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (f *fakeSnapshotSink) PublishSnapshot(ctx context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap.Clone())
	return f.err
}

func (f *fakeSnapshotSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

type fakeAlertSink struct {
	mu     sync.Mutex
	events []*models.AlertEvent
}

func (f *fakeAlertSink) HandleAlert(ctx context.Context, ev *models.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeRecorder struct {
	batches [][]models.SensorSample
}

func (f *fakeRecorder) RecordSamples(ctx context.Context, nodeID string, samples []models.SensorSample) (int64, error) {
	f.batches = append(f.batches, samples)
	return int64(len(samples)), nil
}

type staticFetcher struct {
	mu      sync.Mutex
	samples []models.SensorSample
	err     error
}

func (f *staticFetcher) Fetch(ctx context.Context) ([]models.SensorSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples, f.err
}
