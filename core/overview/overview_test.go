package overview

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leofalp/graphyte/providers/ai"
)

func TestOverviewFromContext_Missing(t *testing.T) {
	if got := OverviewFromContext(context.Background()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestOverviewFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), overviewContextKey, "not-an-overview")
	if got := OverviewFromContext(ctx); got != nil {
		t.Errorf("expected nil for wrong type, got %v", got)
	}
}

func TestToContext_Roundtrip(t *testing.T) {
	overview := New()
	ctx := overview.ToContext(context.Background())
	if OverviewFromContext(ctx) != overview {
		t.Error("expected same Overview pointer from context")
	}
}

func TestRecordRequest_AccumulatesUsage(t *testing.T) {
	overview := New()
	overview.RecordRequest("01_domain_identifier", "gpt-4o-mini", &ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil)
	overview.RecordRequest("03_topic_identifier", "gpt-4o-mini", &ai.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30}, nil)
	overview.RecordRequest("03_topic_identifier", "gpt-4o", &ai.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil)
	overview.RecordRequest("03_topic_identifier", "gpt-4o", nil, errors.New("timeout"))
	overview.RecordRequest("", "gpt-4o", nil, nil)

	summary := overview.Summary()
	if summary.Requests != 5 || summary.Failures != 1 {
		t.Errorf("requests=%d failures=%d", summary.Requests, summary.Failures)
	}
	if summary.TotalUsage.TotalTokens != 47 {
		t.Errorf("total tokens = %d, want 47", summary.TotalUsage.TotalTokens)
	}
	if summary.UsageByModel["gpt-4o-mini"].PromptTokens != 30 {
		t.Errorf("gpt-4o-mini prompt tokens = %d", summary.UsageByModel["gpt-4o-mini"].PromptTokens)
	}
	if summary.RequestsByStage["03_topic_identifier"] != 3 {
		t.Errorf("topic requests = %d", summary.RequestsByStage["03_topic_identifier"])
	}
	if _, ok := summary.RequestsByStage[""]; ok {
		t.Error("empty stage should not be counted")
	}
}

func TestSummary_IsACopy(t *testing.T) {
	overview := New()
	overview.RecordDecode("typed")
	summary := overview.Summary()
	summary.DecodeKinds["typed"] = 100

	if overview.Summary().DecodeKinds["typed"] != 1 {
		t.Error("Summary must not alias internal maps")
	}
}

func TestExecutionDuration(t *testing.T) {
	overview := New()
	if overview.Summary().ExecutionDuration != 0 {
		t.Error("expected zero duration before start")
	}
	overview.StartExecution()
	overview.EndExecution()
	if overview.Summary().ExecutionDuration < 0 {
		t.Error("expected non-negative duration")
	}
}

func TestRecordRequest_Concurrent(t *testing.T) {
	overview := New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			overview.RecordRequest("s", "m", &ai.Usage{TotalTokens: 1}, nil)
			overview.RecordDecode("validated")
		}()
	}
	wg.Wait()

	summary := overview.Summary()
	if summary.Requests != 50 || summary.TotalUsage.TotalTokens != 50 || summary.DecodeKinds["validated"] != 50 {
		t.Errorf("unexpected summary %+v", summary)
	}
}
