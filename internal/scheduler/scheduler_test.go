package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"flap/internal/content"
)

type fakePipeline struct {
	mu      sync.Mutex
	majors  int
	minors  int
	skipped bool
}

func (f *fakePipeline) GenerateAndSend(_ context.Context, _ content.GenerationContext) (*content.GeneratedContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.majors++
	return &content.GeneratedContent{Text: "OK", OutputMode: content.ModeText}, nil
}

func (f *fakePipeline) RedecorateCached(_ context.Context, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minors++
	return f.skipped, nil
}

func TestAlignDelay(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2026, 8, 29, 10, 30, 45, 500_000_000, time.UTC), 14500 * time.Millisecond},
		{time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC), 60 * time.Second},
		{time.Date(2026, 8, 29, 10, 30, 59, 999_000_000, time.UTC), 1 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := AlignDelay(tc.now); got != tc.want {
			t.Errorf("AlignDelay(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestRunMajorNow(t *testing.T) {
	pipeline := &fakePipeline{}
	s := New(Config{Enabled: true}, pipeline, nil)

	s.RunMajorNow(context.Background())
	if pipeline.majors != 1 {
		t.Errorf("majors = %d", pipeline.majors)
	}
}

func TestTickMinor(t *testing.T) {
	pipeline := &fakePipeline{}
	s := New(Config{Enabled: true, MinorUpdates: true}, pipeline, nil)

	s.tickMinor(context.Background())
	s.tickMinor(context.Background())
	if pipeline.minors != 2 {
		t.Errorf("minors = %d", pipeline.minors)
	}
}

func TestDisabledSchedulerDoesNothing(t *testing.T) {
	pipeline := &fakePipeline{}
	s := New(Config{Enabled: false}, pipeline, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if pipeline.majors != 0 || pipeline.minors != 0 {
		t.Errorf("disabled scheduler did work: %+v", pipeline)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	pipeline := &fakePipeline{}
	s := New(Config{Enabled: true, MinorUpdates: true}, pipeline, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	s.Stop()
	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestDefaultsApplied(t *testing.T) {
	s := New(Config{Enabled: true}, &fakePipeline{}, nil)
	if s.config.MajorSchedule != DefaultMajorSchedule {
		t.Errorf("schedule = %q", s.config.MajorSchedule)
	}
	if s.config.CycleTimeout != DefaultCycleTimeout {
		t.Errorf("timeout = %v", s.config.CycleTimeout)
	}
}
