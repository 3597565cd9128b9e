package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type pruneRepo struct {
	Repository

	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *pruneRepo) Prune(_ context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, before)
	return 1, p.err
}

func (p *pruneRepo) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

type recordingLogger struct {
	mu     sync.Mutex
	errors int
}

func (l *recordingLogger) Info(string, ...any) {}
func (l *recordingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}

func TestRetain_PrunesPeriodically(t *testing.T) {
	repo := &pruneRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	start := time.Now()
	go func() { done <- Retain(ctx, repo, time.Hour, time.Millisecond, &recordingLogger{}) }()

	deadline := time.Now().Add(2 * time.Second)
	for repo.calls() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d prunes ran", repo.calls())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Retain() = %v", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	first := repo.cutoffs[0]
	if first.After(start.Add(-time.Hour).Add(time.Second)) || first.Before(start.Add(-time.Hour).Add(-time.Second)) {
		t.Errorf("cutoff = %v, want about an hour before %v", first, start)
	}
}

func TestRetain_LogsErrors(t *testing.T) {
	repo := &pruneRepo{err: errors.New("database is locked")}
	logger := &recordingLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- Retain(ctx, repo, time.Hour, time.Hour, logger) }()

	deadline := time.Now().Add(2 * time.Second)
	for logger.count() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("prune error was not logged")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if n := logger.count(); n != 1 {
		t.Errorf("logged %d errors, want 1", n)
	}
}

func TestRetain_Disabled(t *testing.T) {
	repo := &pruneRepo{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := Retain(ctx, repo, 0, time.Millisecond, &recordingLogger{}); err != nil {
		t.Errorf("Retain() = %v", err)
	}
	if repo.calls() != 0 {
		t.Errorf("Prune called %d times with retention disabled", repo.calls())
	}
}
