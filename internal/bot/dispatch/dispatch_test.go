package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/eigo-sensei/server/internal/bot/credential"
	"github.com/eigo-sensei/server/internal/bot/dispatch"
	"github.com/eigo-sensei/server/internal/bot/memory"
	"github.com/eigo-sensei/server/internal/bot/model"
)

// ---- collaborator stubs ----

type stubStore struct{}

func (stubStore) Load(context.Context) (map[string]string, error) { return map[string]string{}, nil }
func (stubStore) Save(context.Context, map[string]string) error   { return nil }

type stubGate struct {
	over     bool
	recorded chan string
}

func (g *stubGate) IsOverLimit(_ context.Context, _ string) bool { return g.over }

func (g *stubGate) RecordUsage(_ context.Context, userID string) bool {
	if g.recorded != nil {
		g.recorded <- userID
	}
	return true
}

type providerCalls struct {
	keys       []string
	chatMsgs   []*schema.Message
	chatModel  string
	imageCalls int
}

type stubProvider struct {
	calls *providerCalls

	chatContent string
	chatErr     error
	imageURL    string
	imageErr    error
	checkErr    error
}

func (p *stubProvider) ChatComplete(_ context.Context, messages []*schema.Message, modelID string) (string, error) {
	p.calls.chatMsgs = messages
	p.calls.chatModel = modelID
	if p.chatErr != nil {
		return "", p.chatErr
	}
	return p.chatContent, nil
}

func (p *stubProvider) GenerateImage(context.Context, string) (string, error) {
	p.calls.imageCalls++
	if p.imageErr != nil {
		return "", p.imageErr
	}
	return p.imageURL, nil
}

func (p *stubProvider) Transcribe(context.Context, string, []byte) (string, error) {
	return "", errors.New("not implemented")
}

func (p *stubProvider) CheckCredential(context.Context) error { return p.checkErr }

type fixture struct {
	dispatcher *dispatch.Dispatcher
	registry   *credential.Registry
	memory     *memory.Store
	gate       *stubGate
	calls      *providerCalls
	provider   *stubProvider
}

func newFixture(t *testing.T, checkErr error) *fixture {
	t.Helper()

	calls := &providerCalls{}
	prov := &stubProvider{calls: calls, chatContent: "corrected text", imageURL: "https://img.example/1.png", checkErr: checkErr}
	factory := func(apiKey string) model.Provider {
		calls.keys = append(calls.keys, apiKey)
		return prov
	}

	registry := credential.New(stubStore{}, func(ctx context.Context, apiKey string) error {
		return factory(apiKey).CheckCredential(ctx)
	})
	mem := memory.New("you are a helpful assistant", 2)
	gate := &stubGate{recorded: make(chan string, 1)}

	cfg := model.BotConfig{ModelEngine: "gpt-3.5-turbo", DefaultAPIKey: "sk-default"}
	return &fixture{
		dispatcher: dispatch.New(registry, mem, gate, factory, cfg),
		registry:   registry,
		memory:     mem,
		gate:       gate,
		calls:      calls,
		provider:   prov,
	}
}

func waitRecorded(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case userID := <-ch:
		return userID
	case <-time.After(time.Second):
		t.Fatal("usage was never recorded")
		return ""
	}
}

// ---- scenarios ----

func TestRegisterSuccess(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "/註冊 sk-validtoken")
	if reply.Text != "Token 有效，註冊成功" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	key, ok := f.registry.Resolve("u1")
	if !ok || key != "sk-validtoken" {
		t.Fatalf("expected registry to resolve sk-validtoken, got %q ok=%v", key, ok)
	}
}

func TestRegisterInvalidToken(t *testing.T) {
	f := newFixture(t, errors.New("401 unauthorized"))

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "/註冊 sk-bad")
	if reply.Text != "Token 無效，請重新註冊，格式為 /註冊 sk-xxxxx" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if _, ok := f.registry.Resolve("u1"); ok {
		t.Fatal("rejected registration must not store a key")
	}
}

func TestImageWithoutRegistration(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "/圖像 a red fox")
	if reply.Text != "請先註冊 Token，格式為 /註冊 sk-xxxxx" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if f.calls.imageCalls != 0 {
		t.Fatal("image capability must not be called without a credential")
	}
}

func TestImageGeneration(t *testing.T) {
	f := newFixture(t, nil)
	f.registry.Bootstrap(map[string]string{"u1": "sk-mine"})

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "/圖像 a red fox")
	if reply.Kind != model.ReplyImage {
		t.Fatalf("expected image reply, got %+v", reply)
	}
	if reply.ImageURL != "https://img.example/1.png" || reply.PreviewURL != reply.ImageURL {
		t.Fatalf("unexpected image reply: %+v", reply)
	}

	msgs := f.memory.Compose("u1")
	if len(msgs) != 3 || msgs[1].Content != "a red fox" || msgs[2].Content != reply.ImageURL {
		t.Fatalf("expected prompt and URL appended to history, got %+v", msgs)
	}
}

func TestChatUnderQuota(t *testing.T) {
	f := newFixture(t, nil)
	f.registry.Bootstrap(map[string]string{"u1": "sk-mine"})

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "I has a apple")
	if reply.Text != "corrected text" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	// Composed request: system prompt first, correction template last with
	// the raw text embedded.
	msgs := f.calls.chatMsgs
	if len(msgs) < 2 || msgs[0].Role != schema.System {
		t.Fatalf("unexpected composed messages: %+v", msgs)
	}
	last := msgs[len(msgs)-1]
	if last.Role != schema.User || !strings.Contains(last.Content, "「I has a apple」") {
		t.Fatalf("expected template with raw text embedded, got %q", last.Content)
	}
	if f.calls.chatModel != "gpt-3.5-turbo" {
		t.Fatalf("unexpected model id %q", f.calls.chatModel)
	}

	if got := waitRecorded(t, f.gate.recorded); got != "u1" {
		t.Fatalf("usage recorded for wrong user: %q", got)
	}

	// Both sides of the exchange retained.
	hist := f.memory.Compose("u1")
	if len(hist) != 3 || hist[1].Content != "I has a apple" || hist[2].Content != "corrected text" {
		t.Fatalf("unexpected history after exchange: %+v", hist)
	}
}

func TestChatOverQuota(t *testing.T) {
	f := newFixture(t, nil)
	f.gate.over = true

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "I has a apple")
	if !strings.Contains(reply.Text, "今日の無料利用回数") {
		t.Fatalf("expected quota-exceeded reply, got %q", reply.Text)
	}
	if len(f.calls.keys) != 0 {
		t.Fatal("no provider call may happen over quota")
	}
	select {
	case <-f.gate.recorded:
		t.Fatal("no usage may be recorded over quota")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChatFallsBackToDefaultKey(t *testing.T) {
	f := newFixture(t, nil)

	f.dispatcher.Dispatch(context.Background(), "u1", "first message")
	waitRecorded(t, f.gate.recorded)
	f.dispatcher.Dispatch(context.Background(), "u1", "second message")
	waitRecorded(t, f.gate.recorded)

	if len(f.calls.keys) != 2 {
		t.Fatalf("expected 2 provider constructions, got %d", len(f.calls.keys))
	}
	for _, key := range f.calls.keys {
		if key != "sk-default" {
			t.Fatalf("expected fallback key, got %q", key)
		}
	}

	// Fallback was adopted in memory, so the image branch now resolves too.
	if key, ok := f.registry.Resolve("u1"); !ok || key != "sk-default" {
		t.Fatalf("expected adopted fallback key, got %q ok=%v", key, ok)
	}
}

func TestIncorrectAPIKeyErrorRemapped(t *testing.T) {
	f := newFixture(t, nil)
	f.registry.Bootstrap(map[string]string{"u1": "sk-mine"})
	f.memory.Append("u1", schema.UserMessage("earlier"))
	f.provider.chatErr = errors.New("Incorrect API key provided: sk-mine. You can find your API key at https://platform.openai.com.")

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "I has a apple")
	if reply.Text != "OpenAI API Token 有誤，請重新註冊。" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	if msgs := f.memory.Compose("u1"); len(msgs) != 1 {
		t.Fatalf("expected conversation memory cleared, got %+v", msgs)
	}
}

func TestOverloadedErrorRemapped(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.chatErr = errors.New("That model is currently overloaded with other requests. Retry later.")

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "I has a apple")
	if reply.Text != "已超過負荷，請稍後再試" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestUnknownErrorEchoed(t *testing.T) {
	f := newFixture(t, nil)
	f.registry.Bootstrap(map[string]string{"u1": "sk-mine"})
	f.provider.imageErr = errors.New("Your request was rejected as a result of our safety system.")

	reply := f.dispatcher.Dispatch(context.Background(), "u1", "/圖像 something")
	if reply.Text != "Your request was rejected as a result of our safety system." {
		t.Fatalf("expected error echoed verbatim, got %q", reply.Text)
	}
}

func TestHelpAndSystemAndClear(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if reply := f.dispatcher.Dispatch(ctx, "u1", "/指令說明"); !strings.Contains(reply.Text, "/註冊 + API Token") {
		t.Fatalf("unexpected help reply: %q", reply.Text)
	}

	if reply := f.dispatcher.Dispatch(ctx, "u1", "/系統訊息 請你扮演擅長做總結的人"); reply.Text != "輸入成功" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if msgs := f.memory.Compose("u1"); msgs[0].Content != "請你扮演擅長做總結的人" {
		t.Fatalf("system prompt not applied: %+v", msgs[0])
	}

	if reply := f.dispatcher.Dispatch(ctx, "u1", "/清除"); reply.Text != "歷史訊息清除成功" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if msgs := f.memory.Compose("u1"); msgs[0].Content != "you are a helpful assistant" {
		t.Fatalf("clear must revert the system prompt: %+v", msgs[0])
	}
}
