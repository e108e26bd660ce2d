package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/InfiniteCod3/chatplugins/internal/clock"
	"github.com/InfiniteCod3/chatplugins/internal/format"
	"github.com/InfiniteCod3/chatplugins/internal/kv"
	"github.com/InfiniteCod3/chatplugins/internal/llm"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/internal/notify"
	"github.com/InfiniteCod3/chatplugins/internal/store"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

type stubLLM struct {
	reqs  []*llm.CompletionRequest
	reply string
	err   error
}

func (s *stubLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.reply, Model: req.Model, TokensIn: 10, TokensOut: 2}, nil
}

func (s *stubLLM) Name() string         { return "stub" }
func (s *stubLLM) DefaultModel() string { return "stub-model" }

type stubFetcher struct {
	msgs  []model.Message
	calls int
	lastN int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string, n int) []model.Message {
	f.calls++
	f.lastN = n
	return f.msgs
}

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newAssistant(client llm.Client, f Fetcher, opts Options) (*Assistant, *store.Store, *notify.Recorder) {
	rec := &notify.Recorder{}
	st := store.New(store.NewRecordPersistence(kv.NewMemory()), clock.NewFake(now),
		store.Policy{MaxCount: 20, MaxAgeDays: 7}, rec, logger.NewNop())
	return New(client, f, st, format.New(nil), opts, rec, logger.NewNop()), st, rec
}

func TestAsk_MissingConfigurationFailsBeforeNetwork(t *testing.T) {
	f := &stubFetcher{}
	a, st, rec := newAssistant(nil, f, Options{ContextMessages: 10})

	_, err := a.Ask(context.Background(), "c1", "hello")
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if f.calls != 0 {
		t.Fatal("no fetch should happen without configuration")
	}
	if len(st.Get("c1")) != 0 {
		t.Fatal("nothing should be stored")
	}
	if len(rec.Notices()) != 1 {
		t.Fatal("expected a notice")
	}
}

func TestAsk_EmptyPrompt(t *testing.T) {
	a, _, _ := newAssistant(&stubLLM{}, &stubFetcher{}, Options{})
	if _, err := a.Ask(context.Background(), "c1", "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestAsk_BuildsRequestAndStoresExchange(t *testing.T) {
	client := &stubLLM{reply: "It's sunny."}
	f := &stubFetcher{msgs: []model.Message{{
		ID:        "1",
		ChannelID: "c1",
		Author:    &model.User{Username: "bob"},
		Content:   "anyone checked the weather?",
		Timestamp: now.Add(-time.Minute),
	}}}
	a, st, _ := newAssistant(client, f, Options{SystemPrompt: "Be helpful.", ContextMessages: 25, MaxTokens: 300})

	st.Append("c1", model.RoleUser, "earlier question")
	st.Append("c1", model.RoleAssistant, "earlier answer")

	resp, err := a.Ask(context.Background(), "c1", "  what's the weather?  ")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if resp.Response != "It's sunny." || resp.Model != "stub-model" || resp.ChannelID != "c1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if f.lastN != 25 {
		t.Fatalf("expected 25 context messages requested, got %d", f.lastN)
	}

	req := client.reqs[0]
	if req.MaxTokens != 300 || req.Model != "stub-model" {
		t.Fatalf("unexpected request settings: %+v", req)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("expected system + 2 history + prompt, got %d", len(req.Messages))
	}
	sys := req.Messages[0]
	if sys.Role != "system" || !strings.HasPrefix(sys.Content, "Be helpful.") || !strings.Contains(sys.Content, "anyone checked the weather?") {
		t.Fatalf("unexpected system message: %+v", sys)
	}
	if last := req.Messages[3]; last.Role != "user" || last.Content != "what's the weather?" {
		t.Fatalf("unexpected final message: %+v", last)
	}

	hist := a.History("c1")
	if len(hist) != 4 {
		t.Fatalf("expected 4 stored entries, got %d", len(hist))
	}
	if hist[2].Role != model.RoleUser || hist[2].Content != "what's the weather?" {
		t.Fatalf("user prompt not stored: %+v", hist[2])
	}
	if hist[3].Role != model.RoleAssistant || hist[3].Content != "It's sunny." {
		t.Fatalf("answer not stored: %+v", hist[3])
	}
}

func TestAsk_ProviderFailureStoresNothing(t *testing.T) {
	client := &stubLLM{err: errors.New("upstream 500")}
	a, st, rec := newAssistant(client, &stubFetcher{}, Options{})

	if _, err := a.Ask(context.Background(), "c1", "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(st.Get("c1")) != 0 {
		t.Fatal("failed exchange must not be stored")
	}
	if n := rec.Notices(); len(n) != 1 || n[0].Level != model.NoticeError {
		t.Fatalf("expected an error notice, got %+v", n)
	}
}

func TestAsk_NoContextWhenDisabled(t *testing.T) {
	client := &stubLLM{reply: "ok"}
	f := &stubFetcher{}
	a, _, _ := newAssistant(client, f, Options{})

	if _, err := a.Ask(context.Background(), "c1", "hi"); err != nil {
		t.Fatal(err)
	}
	if f.calls != 0 {
		t.Fatal("fetch should be skipped when ContextMessages is 0")
	}
	if len(client.reqs[0].Messages) != 1 {
		t.Fatalf("expected only the prompt, got %+v", client.reqs[0].Messages)
	}
}

func TestReset(t *testing.T) {
	a, st, _ := newAssistant(&stubLLM{reply: "x"}, &stubFetcher{}, Options{})
	st.Append("c1", model.RoleUser, "a")
	if err := a.Reset(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if len(a.History("c1")) != 0 {
		t.Fatal("expected empty history after reset")
	}
}
