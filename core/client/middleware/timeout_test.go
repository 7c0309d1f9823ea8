package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/test/provider"
)

func blockUntilDone(ctx context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeout_CancelsSlowCall(t *testing.T) {
	fake := provider.New(blockUntilDone)
	c, err := client.New(fake, client.WithMiddleware(NewTimeoutMiddleware(20*time.Millisecond)))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	_, err = c.SendMessage(context.Background(), "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if !ai.IsTransient(err) {
		t.Error("a per-attempt deadline should be retryable")
	}
}

func TestTimeout_EachAttemptGetsItsOwnDeadline(t *testing.T) {
	sleeper := &sleepRecorder{}
	fake := provider.New(provider.FailTimes(2, context.DeadlineExceeded, provider.Text("ok")))
	c, err := client.New(fake, client.WithMiddleware(
		NewRetryMiddleware(RetryConfig{Sleep: sleeper.sleep}),
		NewTimeoutMiddleware(time.Second),
	))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	resp, err := c.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if resp.Content != "ok" || fake.CallCount() != 3 {
		t.Errorf("content = %q calls = %d", resp.Content, fake.CallCount())
	}
}

func TestTimeout_DisabledPassesThrough(t *testing.T) {
	var hadDeadline bool
	fake := provider.New(func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		_, hadDeadline = ctx.Deadline()
		return provider.Text("ok")(ctx, request)
	})
	c, err := client.New(fake, client.WithMiddleware(NewTimeoutMiddleware(0)))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	if _, err := c.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if hadDeadline {
		t.Error("zero timeout must not add a deadline")
	}
}
