package embedder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeEmbedder is a controllable Embedder for backend tests.
type fakeEmbedder struct {
	pingErr    error
	embedErr   error
	embedDelay time.Duration
	vector     []float32

	pingCount  atomic.Int32
	embedCount atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embedCount.Add(1)
	if f.embedDelay > 0 {
		select {
		case <-time.After(f.embedDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Ping(ctx context.Context) error {
	f.pingCount.Add(1)
	return f.pingErr
}

func (f *fakeEmbedder) Dimension() int    { return len(f.vector) }
func (f *fakeEmbedder) ModelName() string { return "fake-model" }

func TestLazyBackend_AvailableProbesOnce(t *testing.T) {
	fake := &fakeEmbedder{vector: []float32{1, 0}}
	backend := NewLazyBackend(fake)

	for i := 0; i < 5; i++ {
		if !backend.Available() {
			t.Fatal("expected backend to be available")
		}
	}

	if got := fake.pingCount.Load(); got != 1 {
		t.Errorf("expected exactly 1 probe, got %d", got)
	}
}

func TestLazyBackend_AvailableConcurrentFirstCalls(t *testing.T) {
	fake := &fakeEmbedder{vector: []float32{1, 0}}
	backend := NewLazyBackend(fake)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backend.Available()
		}()
	}
	wg.Wait()

	if got := fake.pingCount.Load(); got != 1 {
		t.Errorf("expected exactly 1 probe under concurrency, got %d", got)
	}
}

func TestLazyBackend_Unavailable(t *testing.T) {
	fake := &fakeEmbedder{pingErr: errors.New("connection refused")}
	backend := NewLazyBackend(fake)

	if backend.Available() {
		t.Fatal("expected backend to be unavailable")
	}

	_, err := backend.Embed(context.Background(), "some text")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	if got := fake.embedCount.Load(); got != 0 {
		t.Errorf("embedder should not be called when unavailable, got %d calls", got)
	}
}

func TestLazyBackend_NilEmbedder(t *testing.T) {
	backend := NewLazyBackend(nil)

	if backend.Available() {
		t.Fatal("expected nil embedder to be unavailable")
	}
}

func TestLazyBackend_EmbedTimeoutDegrades(t *testing.T) {
	fake := &fakeEmbedder{
		vector:     []float32{1, 0},
		embedDelay: 200 * time.Millisecond,
	}
	backend := NewLazyBackend(fake, WithEmbedTimeout(10*time.Millisecond))

	_, err := backend.Embed(context.Background(), "slow text")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected timeout to degrade to ErrBackendUnavailable, got %v", err)
	}
}

func TestLazyBackend_EmbedCaches(t *testing.T) {
	fake := &fakeEmbedder{vector: []float32{1, 2, 3}}
	backend := NewLazyBackend(fake)

	for i := 0; i < 3; i++ {
		vec, err := backend.Embed(context.Background(), "same text")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vec) != 3 {
			t.Fatalf("expected 3-dim vector, got %d", len(vec))
		}
	}

	if got := fake.embedCount.Load(); got != 1 {
		t.Errorf("expected 1 embed call for repeated text, got %d", got)
	}

	if _, err := backend.Embed(context.Background(), "other text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fake.embedCount.Load(); got != 2 {
		t.Errorf("expected 2 embed calls after distinct text, got %d", got)
	}
}
