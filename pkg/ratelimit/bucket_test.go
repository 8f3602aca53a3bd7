package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rate    float64
		burst   int
		wantMax float64
	}{
		{"explicit burst", 50, 10, 10},
		{"zero burst defaults to rate", 25, 0, 25},
		{"fractional rate keeps one token", 0.5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stats := NewBucket(tt.rate, tt.burst).Stats()
			if stats.Max != tt.wantMax {
				t.Errorf("Max = %v, want %v", stats.Max, tt.wantMax)
			}
			if stats.Available < tt.wantMax-0.01 {
				t.Errorf("bucket should start full, Available = %v", stats.Available)
			}
		})
	}
}

func TestBucketDrainsAndRefills(t *testing.T) {
	t.Parallel()
	b := NewBucket(2, 3)
	start := b.lastUpdate

	for i := 0; i < 3; i++ {
		if ok, _, _ := b.take(start); !ok {
			t.Fatalf("take #%d should succeed", i+1)
		}
	}
	ok, _, wait := b.take(start)
	if ok {
		t.Fatal("take on an empty bucket should fail")
	}
	if wait != 500*time.Millisecond {
		t.Errorf("wait = %v, want 500ms at 2 tokens/s", wait)
	}

	if ok, left, _ := b.take(start.Add(time.Second)); !ok || left != 1 {
		t.Errorf("after 1s: ok=%v left=%v, want true 1", ok, left)
	}
}

func TestBucketWait(t *testing.T) {
	t.Parallel()

	t.Run("returns when a token refills", func(t *testing.T) {
		t.Parallel()
		b := NewBucket(100, 1)
		b.Allow()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := b.Wait(ctx); err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	})

	t.Run("honours cancellation", func(t *testing.T) {
		t.Parallel()
		b := NewBucket(0.01, 1)
		b.Allow()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v, want deadline exceeded", err)
		}
	})
}
