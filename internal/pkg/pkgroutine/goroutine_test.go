package pkgroutine

import (
	"context"
	"errors"
	"testing"
)

func TestNewManagerDefaultMax(t *testing.T) {
	mgr := NewManager(0)
	if got := cap(mgr.sema); got != DefaultMaxGoroutine {
		t.Fatalf("expected cap %d, got %d", DefaultMaxGoroutine, got)
	}
}

func TestManagerCollectsErrors(t *testing.T) {
	mgr := NewManager(2)
	errOne := errors.New("one")
	errTwo := errors.New("two")

	mgr.Go(context.Background(), func(ctx context.Context) error {
		return errOne
	})
	mgr.Go(context.Background(), func(ctx context.Context) error {
		return errTwo
	})

	joined := mgr.Wait()
	if joined == nil {
		t.Fatalf("expected errors")
	}
	if !errors.Is(joined, errOne) {
		t.Fatalf("expected errOne to be present")
	}
	if !errors.Is(joined, errTwo) {
		t.Fatalf("expected errTwo to be present")
	}
}

func TestManagerRecoversPanics(t *testing.T) {
	mgr := NewManager(1)
	mgr.Go(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})

	if err := mgr.Wait(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestManagerTryGoRespectsCapacity(t *testing.T) {
	mgr := NewManager(1)
	release := make(chan struct{})
	started := make(chan struct{})

	if ok := mgr.TryGo(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}); !ok {
		t.Fatal("expected first TryGo to be scheduled")
	}
	<-started

	if ok := mgr.TryGo(context.Background(), func(ctx context.Context) error {
		t.Error("must not run while the only slot is busy")
		return nil
	}); ok {
		t.Fatal("expected second TryGo to be rejected")
	}

	close(release)
	if err := mgr.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ok := mgr.TryGo(ctx, func(ctx context.Context) error { return nil }); ok {
		t.Fatal("expected TryGo on a canceled context to be rejected")
	}
}
