package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/test/provider"
)

func TestRateLimit_BlocksBeyondBurst(t *testing.T) {
	fake := provider.New(provider.Text("ok"))
	c, err := client.New(fake, client.WithMiddleware(NewRateLimitMiddleware(0.001, 1)))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	if _, err := c.SendMessage(context.Background(), "first"); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.SendMessage(ctx, "second")
	if err == nil {
		t.Fatal("expected the second call to be limited")
	}
	if fake.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", fake.CallCount())
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	fake := provider.New(provider.Text("ok"))
	c, err := client.New(fake, client.WithMiddleware(NewRateLimitMiddleware(0, 0)))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	for range 5 {
		if _, err := c.SendMessage(context.Background(), "hello"); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}
	if fake.CallCount() != 5 {
		t.Errorf("calls = %d, want 5", fake.CallCount())
	}
}

func TestRateLimit_CancelledContext(t *testing.T) {
	fake := provider.New(provider.Text("ok"))
	c, err := client.New(fake, client.WithMiddleware(NewRateLimitMiddleware(1, 1)))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.SendMessage(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
