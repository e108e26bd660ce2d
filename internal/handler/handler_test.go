package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/InfiniteCod3/chatplugins/internal/assistant"
	"github.com/InfiniteCod3/chatplugins/internal/discord"
	"github.com/InfiniteCod3/chatplugins/internal/export"
	"github.com/InfiniteCod3/chatplugins/internal/middleware"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

const (
	secret  = "handler-test-secret"
	channel = "81384788765712384"
)

type stubAssistant struct {
	askErr  error
	prompts []string
	history map[string][]model.ConversationEntry
	resets  []string
}

func (a *stubAssistant) Ask(_ context.Context, channelID, prompt string) (*model.AskResponse, error) {
	a.prompts = append(a.prompts, prompt)
	if a.askErr != nil {
		return nil, a.askErr
	}
	return &model.AskResponse{ChannelID: channelID, Response: "answer to " + prompt, Model: "stub"}, nil
}

func (a *stubAssistant) History(channelID string) []model.ConversationEntry {
	if e, ok := a.history[channelID]; ok {
		return e
	}
	return []model.ConversationEntry{}
}

func (a *stubAssistant) Reset(_ context.Context, channelID string) error {
	a.resets = append(a.resets, channelID)
	return nil
}

type stubFetcher struct{ lastN int }

func (f *stubFetcher) Fetch(_ context.Context, channelID string, n int) []model.Message {
	f.lastN = n
	return []model.Message{{ID: "1", ChannelID: channelID, Content: "hi"}}
}

type stubExporter struct {
	req export.Request
	err error
}

func (e *stubExporter) Export(_ context.Context, req export.Request) (*export.Result, error) {
	e.req = req
	if e.err != nil {
		return nil, e.err
	}
	return &export.Result{Filename: "messages.txt", Text: "Total messages: 0\n", Count: 0}, nil
}

func (e *stubExporter) Notes(context.Context) (*export.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &export.Result{Filename: "notes.txt", Text: "Total notes: 0\n"}, nil
}

type stubDecider struct{}

func (stubDecider) Decide(msg model.Message, mentioned bool, _ time.Time) model.NotificationDecision {
	return model.NotificationDecision{MessageID: msg.ID, ChannelID: msg.ChannelID, Suppress: !mentioned, Reason: "test"}
}

type fixture struct {
	router    http.Handler
	assistant *stubAssistant
	fetcher   *stubFetcher
	exporter  *stubExporter
	ready     bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		assistant: &stubAssistant{history: map[string][]model.ConversationEntry{}},
		fetcher:   &stubFetcher{},
		exporter:  &stubExporter{},
		ready:     true,
	}
	log := logger.NewNop()
	f.router = NewRouter(RouterConfig{
		JWTSecret:         secret,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	}, Handlers{
		Health:        NewHealthHandler(Check{Name: "store", Check: func(context.Context) error { return nil }}),
		Conversations: NewConversationHandler(f.assistant, log),
		Messages:      NewMessageHandler(f.fetcher, func() bool { return f.ready }, log),
		Exports:       NewExportHandler(f.exporter, log),
		Notifications: NewNotificationHandler(stubDecider{}, nil, log),
	}, log)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if scopes != nil {
		token, err := middleware.IssueToken(secret, "tester", scopes, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

var rw = []string{middleware.ScopeRead, middleware.ScopeWrite}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: %d", rec.Code)
	}
}

func TestReady_FailingCheck(t *testing.T) {
	h := NewHealthHandler(Check{Name: "nats", Check: func(context.Context) error { return errors.New("down") }})
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "nats: down") {
		t.Fatalf("unexpected ready response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPI_RequiresAuth(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/api/v1/channels/"+channel+"/conversation", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/api/v1/channels/"+channel+"/ai", `{"prompt":"hi"}`, middleware.ScopeRead)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without write scope, got %d", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/channels/"+channel+"/ai", `{"prompt":"what's up"}`, rw...)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "answer to what's up" || resp.ChannelID != channel {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAsk_Errors(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"bad channel", "/api/v1/channels/general/ai", `{"prompt":"x"}`, nil, http.StatusBadRequest},
		{"bad body", "/api/v1/channels/" + channel + "/ai", `{`, nil, http.StatusBadRequest},
		{"empty prompt", "/api/v1/channels/" + channel + "/ai", `{"prompt":""}`, nil, http.StatusBadRequest},
		{"unconfigured", "/api/v1/channels/" + channel + "/ai", `{"prompt":"x"}`, assistant.ErrConfigurationMissing, http.StatusServiceUnavailable},
		{"provider failure", "/api/v1/channels/" + channel + "/ai", `{"prompt":"x"}`, errors.New("upstream"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.assistant.askErr = tc.err
			rec := f.do(t, http.MethodPost, tc.path, tc.body, rw...)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestConversation_GetAndClear(t *testing.T) {
	f := newFixture(t)
	f.assistant.history[channel] = []model.ConversationEntry{{Role: model.RoleUser, Content: "hello"}}

	rec := f.do(t, http.MethodGet, "/api/v1/channels/"+channel+"/conversation", "", middleware.ScopeRead)
	var resp model.ConversationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Content != "hello" {
		t.Fatalf("unexpected conversation: %+v", resp)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/channels/"+channel+"/conversation", "", rw...)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(f.assistant.resets) != 1 || f.assistant.resets[0] != channel {
		t.Fatalf("reset not called: %v", f.assistant.resets)
	}
}

func TestMessages_List(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/channels/"+channel+"/messages?count=5000", "", middleware.ScopeRead)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.fetcher.lastN != maxMessageCount {
		t.Fatalf("count not capped: %d", f.fetcher.lastN)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/channels/"+channel+"/messages?count=zero", "", middleware.ScopeRead); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad count, got %d", rec.Code)
	}

	f.ready = false
	if rec := f.do(t, http.MethodGet, "/api/v1/channels/"+channel+"/messages", "", middleware.ScopeRead); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without token, got %d", rec.Code)
	}
}

func TestExport_Messages(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/channels/" + channel + "/export?count=20&after=2024-01-01T00:00:00Z"
	rec := f.do(t, http.MethodGet, path, "", middleware.ScopeRead)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="messages.txt"` {
		t.Fatalf("unexpected disposition: %s", cd)
	}
	if f.exporter.req.Count != 20 || f.exporter.req.After.IsZero() || !f.exporter.req.Before.IsZero() {
		t.Fatalf("unexpected export request: %+v", f.exporter.req)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/channels/"+channel+"/export?before=yesterday", "", middleware.ScopeRead); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time, got %d", rec.Code)
	}
}

func TestExport_ErrorMapping(t *testing.T) {
	cases := map[error]int{
		discord.ErrMissingToken:               http.StatusServiceUnavailable,
		export.ErrInvalidRange:                http.StatusBadRequest,
		&discord.StatusError{StatusCode: 403}: http.StatusBadGateway,
		errors.New("disk on fire"):            http.StatusInternalServerError,
	}
	for err, want := range cases {
		f := newFixture(t)
		f.exporter.err = err
		rec := f.do(t, http.MethodGet, "/api/v1/notes/export", "", middleware.ScopeRead)
		if rec.Code != want {
			t.Errorf("%v: status = %d, want %d", err, rec.Code, want)
		}
	}
}

func TestNotifications_Decide(t *testing.T) {
	f := newFixture(t)
	body := `{"message":{"id":"5","channel_id":"` + channel + `","content":"hey"},"mentioned":true}`
	rec := f.do(t, http.MethodPost, "/api/v1/notifications/decide", body, middleware.ScopeRead)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var d model.NotificationDecision
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Suppress || d.MessageID != "5" {
		t.Fatalf("unexpected decision: %+v", d)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/notifications/decide", `{"message":{"channel_id":"`+channel+`"}}`, middleware.ScopeRead)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without message id, got %d", rec.Code)
	}
}
