package client

import (
	"context"
	"errors"
	"testing"

	"github.com/leofalp/graphyte/core/overview"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/test/provider"
)

func TestNew_NilProvider(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestNew_NilMiddleware(t *testing.T) {
	_, err := New(provider.New(provider.Text("ok")), WithMiddleware(MiddlewareConfig{}))
	if err == nil {
		t.Fatal("expected error for nil Send middleware")
	}
}

func TestSendMessage_BuildsRequest(t *testing.T) {
	fake := provider.New(provider.Text("ok"))
	c, err := New(fake, WithDefaultModel("gpt-4o-mini"), WithSystemPrompt("be precise"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.SendMessage(context.Background(), "classify this",
		WithMetadata(MetadataStage, "01_domain_identifier"),
		WithModel("gpt-4o"),
	)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	req := calls[0]
	if req.Model != "gpt-4o" {
		t.Errorf("model = %q, want per-call override", req.Model)
	}
	if req.SystemPrompt != "be precise" {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != ai.RoleUser || req.Messages[0].Content != "classify this" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.Metadata[MetadataStage] != "01_domain_identifier" {
		t.Errorf("metadata = %v", req.Metadata)
	}
}

func TestSendMessage_EmptyPrompt(t *testing.T) {
	fake := provider.New(provider.Text("ok"))
	c, _ := New(fake)
	if _, err := c.SendMessage(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if fake.CallCount() != 0 {
		t.Error("provider must not be called for an empty prompt")
	}
}

func TestSendMessage_RecordsUsageInLedger(t *testing.T) {
	fake := provider.New(provider.Text("ok"))
	c, _ := New(fake, WithDefaultModel("m"))
	ledger := overview.New()
	ctx := ledger.ToContext(context.Background())

	if _, err := c.SendMessage(ctx, "x", WithMetadata(MetadataStage, "s1")); err != nil {
		t.Fatal(err)
	}
	summary := ledger.Summary()
	if summary.Requests != 1 || summary.TotalUsage.TotalTokens != 2 || summary.RequestsByStage["s1"] != 1 {
		t.Errorf("unexpected ledger %+v", summary)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) MiddlewareConfig {
		return MiddlewareConfig{Send: func(next SendFunc) SendFunc {
			return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
				order = append(order, name+">")
				resp, err := next(ctx, request)
				order = append(order, "<"+name)
				return resp, err
			}
		}}
	}

	c, _ := New(provider.New(provider.Text("ok")), WithMiddleware(tag("a"), tag("b")))
	if _, err := c.SendMessage(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}

	want := []string{"a>", "b>", "<b", "<a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
