// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/roomgpt/conversation"
	"github.com/bureau-foundation/roomgpt/lib/clock"
	"github.com/bureau-foundation/roomgpt/lib/config"
	"github.com/bureau-foundation/roomgpt/lib/keyqueue"
	"github.com/bureau-foundation/roomgpt/lib/kv"
	"github.com/bureau-foundation/roomgpt/lib/llm"
	llmcontext "github.com/bureau-foundation/roomgpt/lib/llm/context"
	"github.com/bureau-foundation/roomgpt/lib/testutil"
	"github.com/bureau-foundation/roomgpt/messaging"
	"github.com/bureau-foundation/roomgpt/state"
)

const (
	botUser   = "@roomgpt:example.org"
	alice     = "@alice:example.org"
	adminUser = "@operator:example.org"
	roomA     = "!a:example.org"
	roomB     = "!b:example.org"
)

type sentMessage struct {
	roomID  string
	content messaging.MessageContent
}

type reaction struct {
	roomID, eventID, key string
}

// fakeSession records what the bot sends. Sync replays responses and
// then blocks until ctx is done, closing idle the first time it runs
// out.
type fakeSession struct {
	messaging.Session

	mu        sync.Mutex
	sent      []sentMessage
	reactions []reaction
	typing    []bool
	levels    map[string]*messaging.PowerLevels
	joined    []string
	syncs     []*messaging.SyncResponse
	idle      chan struct{}
	idleOnce  sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		levels: make(map[string]*messaging.PowerLevels),
		idle:   make(chan struct{}),
	}
}

func (session *fakeSession) UserID() string { return botUser }

func (session *fakeSession) SendMessage(_ context.Context, roomID string, content messaging.MessageContent) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.sent = append(session.sent, sentMessage{roomID: roomID, content: content})
	return fmt.Sprintf("$reply%d", len(session.sent)), nil
}

func (session *fakeSession) React(_ context.Context, roomID, eventID, key string) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.reactions = append(session.reactions, reaction{roomID, eventID, key})
	return "$reaction", nil
}

func (session *fakeSession) SetTyping(_ context.Context, _ string, typing bool, _ time.Duration) error {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.typing = append(session.typing, typing)
	return nil
}

func (session *fakeSession) PowerLevels(_ context.Context, roomID string) (*messaging.PowerLevels, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	levels, ok := session.levels[roomID]
	if !ok {
		return nil, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}
	}
	return levels, nil
}

func (session *fakeSession) JoinRoom(_ context.Context, roomID string) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.joined = append(session.joined, roomID)
	return roomID, nil
}

func (session *fakeSession) Sync(ctx context.Context, _ messaging.SyncOptions) (*messaging.SyncResponse, error) {
	session.mu.Lock()
	if len(session.syncs) > 0 {
		response := session.syncs[0]
		session.syncs = session.syncs[1:]
		session.mu.Unlock()
		return response, nil
	}
	session.mu.Unlock()
	session.idleOnce.Do(func() { close(session.idle) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func (session *fakeSession) bodies() []string {
	session.mu.Lock()
	defer session.mu.Unlock()
	var bodies []string
	for _, message := range session.sent {
		bodies = append(bodies, message.content.Body)
	}
	return bodies
}

func (session *fakeSession) lastBody(t *testing.T) string {
	t.Helper()
	bodies := session.bodies()
	if len(bodies) == 0 {
		t.Fatal("no message was sent")
	}
	return bodies[len(bodies)-1]
}

// fakeProvider answers with "answer N" and fixed usage, or fails with
// err.
type fakeProvider struct {
	mu       sync.Mutex
	requests []llm.Request
	usage    llm.Usage
	err      error
}

func (provider *fakeProvider) Complete(_ context.Context, request llm.Request) (*llm.Response, error) {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	provider.requests = append(provider.requests, request)
	if provider.err != nil {
		return nil, provider.err
	}
	return &llm.Response{
		Model:      request.Model,
		Text:       fmt.Sprintf("answer %d", len(provider.requests)),
		StopReason: llm.StopReasonEndTurn,
		Usage:      provider.usage,
	}, nil
}

func (provider *fakeProvider) calls() []llm.Request {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	return slices.Clone(provider.requests)
}

type harness struct {
	bot      *Bot
	session  *fakeSession
	provider *fakeProvider
	ledger   *state.Ledger
	registry *state.Registry
	queue    *keyqueue.Queue[string]
	counter  int
}

func newHarness(t *testing.T, configure func(*Config)) *harness {
	t.Helper()
	logger := testutil.Logger(t)
	store := kv.NewMemory()
	defaults := config.Default()

	session := newFakeSession()
	provider := &fakeProvider{usage: llm.Usage{InputTokens: 500, OutputTokens: 500}}
	queue := keyqueue.New[string](logger)
	botConfig := Config{
		Session: session,
		Conversation: conversation.Config{
			Provider:  provider,
			Estimator: llmcontext.NewEstimator(llmcontext.RuneWeightEncoding{}),
			Prices:    defaults.Billing.Prices,
			FeeRate:   defaults.Billing.FeeRate,
			Limits:    defaults.Limits.Session(),
			Clock:     clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
			Logger:    logger,
		},
		Ledger:                state.NewLedger(store, kv.JSON, state.LedgerConfig{FreeCredits: 0.05}, logger),
		Registry:              state.NewRegistry(store, kv.JSON, logger),
		Gate:                  state.NewPrivilegeGate(filepath.Join(t.TempDir(), "privileged.jsonc"), []string{"admin"}, logger),
		Queue:                 queue,
		Models:                defaults.Models,
		Settings:              config.BotConfig{AdminUser: adminUser},
		MaxSystemPromptTokens: defaults.Limits.MaxSystemPromptTokens,
		Logger:                logger,
	}
	if configure != nil {
		configure(&botConfig)
	}
	bot, err := New(botConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{
		bot:      bot,
		session:  session,
		provider: provider,
		ledger:   botConfig.Ledger,
		registry: botConfig.Registry,
		queue:    queue,
	}
}

// message builds an m.text event with a fresh event ID.
func (h *harness) message(sender, body string) messaging.Event {
	h.counter++
	return messaging.Event{
		EventID: fmt.Sprintf("$event%d", h.counter),
		Type:    messaging.EventTypeMessage,
		Sender:  sender,
		Content: map[string]any{"msgtype": "m.text", "body": body},
	}
}

// deliver hands events in roomID to the bot as one /sync response and
// waits for every queued job.
func (h *harness) deliver(t *testing.T, roomID string, events ...messaging.Event) {
	t.Helper()
	h.bot.handleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				roomID: {Timeline: messaging.TimelineSection{Events: events}},
			},
		},
	})
	h.wait(t)
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.queue.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

// say delivers one message from sender in roomID and returns the
// bot's last reply.
func (h *harness) say(t *testing.T, roomID, sender, body string) string {
	t.Helper()
	h.deliver(t, roomID, h.message(sender, body))
	return h.session.lastBody(t)
}

func approximately(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	if err == nil {
		t.Fatal("New accepted an empty config")
	}
	for _, want := range []string{"Session", "Ledger", "Registry", "Gate", "Queue", "Provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"!gpt start", "start", "", true},
		{"!gpt", "help", "", true},
		{"!gpt   PROMPT  be brief  ", "prompt", "be brief", true},
		{"!gpt prompt line one\nline two", "prompt", "line one\nline two", true},
		{"!gpt\tforget 2", "forget", "2", true},
		{"!gpt forget\t2", "forget", "2", true},
		{"!gptx start", "", "", false},
		{"hello !gpt start", "", "", false},
		{"plain chat", "", "", false},
	}
	for _, test := range tests {
		name, args, ok := parseCommand("!gpt", test.body)
		if name != test.wantName || args != test.wantArgs || ok != test.wantOK {
			t.Errorf("parseCommand(%q) = %q, %q, %v; want %q, %q, %v",
				test.body, name, args, ok, test.wantName, test.wantArgs, test.wantOK)
		}
	}
}

func TestRolesFor(t *testing.T) {
	t.Parallel()

	levels := &messaging.PowerLevels{
		Users:        map[string]int{"@owner:x": 100, "@mod:x": 50, "@helper:x": 10},
		UsersDefault: 0,
	}
	tests := []struct {
		user string
		want []string
	}{
		{"@owner:x", []string{"power:100", "admin", "moderator"}},
		{"@mod:x", []string{"power:50", "moderator"}},
		{"@helper:x", []string{"power:10"}},
		{"@stranger:x", []string{"power:0"}},
	}
	for _, test := range tests {
		if got := rolesFor(levels, test.user); !slices.Equal(got, test.want) {
			t.Errorf("rolesFor(%s) = %v, want %v", test.user, got, test.want)
		}
	}
}

func TestChatRepliesInThreadAndDebits(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	if reply := h.say(t, roomA, alice, "!gpt start"); reply != replyStarted {
		t.Fatalf("start reply = %q", reply)
	}

	question := h.message(alice, "What is **Go**?")
	h.deliver(t, roomA, question)

	calls := h.provider.calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(calls))
	}
	if calls[0].Model != "gpt-3.5-turbo" || calls[0].System != config.DefaultSystemPrompt || calls[0].User != alice {
		t.Errorf("request = %+v", calls[0])
	}

	h.session.mu.Lock()
	reply := h.session.sent[len(h.session.sent)-1]
	h.session.mu.Unlock()
	if reply.roomID != roomA || reply.content.Body != "answer 1" {
		t.Errorf("reply = %+v", reply)
	}
	relation := reply.content.RelatesTo
	if relation == nil || relation.RelType != "m.thread" || relation.EventID != question.EventID ||
		relation.InReplyTo == nil || relation.InReplyTo.EventID != question.EventID {
		t.Errorf("reply relation = %+v", relation)
	}
	if reply.content.FormattedBody != "<p>answer 1</p>" {
		t.Errorf("formatted body = %q", reply.content.FormattedBody)
	}

	// 1000 tokens at $0.002/1k plus the 10% fee.
	user := h.ledger.Load(context.Background(), alice)
	if !approximately(user.Credits, 0.05-0.0022) {
		t.Errorf("credits = %v, want %v", user.Credits, 0.05-0.0022)
	}
	h.session.mu.Lock()
	typing := slices.Clone(h.session.typing)
	h.session.mu.Unlock()
	if !slices.Equal(typing, []bool{true, false}) {
		t.Errorf("typing = %v, want [true false]", typing)
	}
}

func TestChatKeepsThreadRoot(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.say(t, roomA, alice, "!gpt start")

	inThread := h.message(alice, "follow-up")
	inThread.Content["m.relates_to"] = map[string]any{"rel_type": "m.thread", "event_id": "$root"}
	h.deliver(t, roomA, inThread)

	h.session.mu.Lock()
	relation := h.session.sent[len(h.session.sent)-1].content.RelatesTo
	h.session.mu.Unlock()
	if relation.EventID != "$root" || relation.InReplyTo.EventID != inThread.EventID {
		t.Errorf("relation = %+v, want root $root replying to %s", relation, inThread.EventID)
	}
}

func TestIgnoredMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.say(t, roomA, alice, "!gpt start")
	sentBefore := len(h.session.bodies())

	edit := h.message(alice, "* fixed")
	edit.Content["m.relates_to"] = map[string]any{"rel_type": "m.replace", "event_id": "$old"}
	notice := h.message(alice, "automated")
	notice.Content["msgtype"] = "m.notice"
	member := h.message(alice, "")
	member.Type = messaging.EventTypeMember

	h.deliver(t, roomA,
		h.message(alice, "# aside"),
		h.message(alice, "＃ fullwidth aside"),
		h.message(botUser, "my own words"),
		h.message(alice, "   "),
		edit,
		notice,
		member,
	)
	h.deliver(t, roomB, h.message(alice, "is anyone here?"))

	if calls := h.provider.calls(); len(calls) != 0 {
		t.Errorf("provider was called %d times", len(calls))
	}
	if sent := len(h.session.bodies()); sent != sentBefore {
		t.Errorf("bot sent %d messages, want none", sent-sentBefore)
	}
}

func TestChatOutOfCredits(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.say(t, roomA, alice, "!gpt start")
	ctx := context.Background()
	h.ledger.Load(ctx, alice)
	if _, err := h.ledger.Credit(ctx, alice, -0.05, false); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	question := h.message(alice, "hello?")
	h.deliver(t, roomA, question)

	if calls := h.provider.calls(); len(calls) != 0 {
		t.Errorf("provider was called %d times", len(calls))
	}
	if got := h.session.lastBody(t); got != replyNoCredits {
		t.Errorf("reply = %q, want %q", got, replyNoCredits)
	}
	h.session.mu.Lock()
	reactions := slices.Clone(h.session.reactions)
	h.session.mu.Unlock()
	want := []reaction{{roomA, question.EventID, quotaReaction}}
	if !slices.Equal(reactions, want) {
		t.Errorf("reactions = %v, want %v", reactions, want)
	}
}

func TestChatFailureIsFree(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.say(t, roomA, alice, "!gpt start")
	h.provider.err = &llm.ProviderError{StatusCode: 429, Type: "rate_limit_exceeded", Message: "slow down"}

	if got := h.say(t, roomA, alice, "hello"); got != conversation.DefaultReplies.RateLimited {
		t.Errorf("reply = %q, want the rate-limit text", got)
	}
	if credits := h.ledger.Load(context.Background(), alice).Credits; credits != 0.05 {
		t.Errorf("credits = %v, want 0.05", credits)
	}
	if length := h.bot.lookup(roomA).Len(); length != 0 {
		t.Errorf("history length = %d after a failed call, want 0", length)
	}
}

func TestChatSerializedPerRoom(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	// Messages queued behind "start" in the same batch are answered.
	h.deliver(t, roomA,
		h.message(alice, "!gpt start"),
		h.message(alice, "one"),
		h.message(alice, "two"),
		h.message(alice, "three"),
	)

	calls := h.provider.calls()
	if len(calls) != 3 {
		t.Fatalf("provider calls = %d, want 3", len(calls))
	}
	for index, want := range []string{"one", "two", "three"} {
		messages := calls[index].Messages
		if last := messages[len(messages)-1]; last.Content != want {
			t.Errorf("call %d ended with %q, want %q", index, last.Content, want)
		}
		if len(messages) != 2*index+1 {
			t.Errorf("call %d carried %d messages, want %d", index, len(messages), 2*index+1)
		}
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()

	steps := []struct {
		body       string
		wantReply  string
		wantActive bool
	}{
		{"!gpt start", replyStarted, true},
		{"!gpt start", replyAlreadyActive, true},
		{"!gpt stop", replyStopped, false},
		{"!gpt stop", replyNotStarted, false},
	}
	for _, step := range steps {
		if got := h.say(t, roomA, alice, step.body); got != step.wantReply {
			t.Errorf("%s: reply = %q, want %q", step.body, got, step.wantReply)
		}
		if got := h.registry.Contains(ctx, roomA); got != step.wantActive {
			t.Errorf("%s: registered = %v, want %v", step.body, got, step.wantActive)
		}
		if got := h.bot.lookup(roomA) != nil; got != step.wantActive {
			t.Errorf("%s: session present = %v, want %v", step.body, got, step.wantActive)
		}
	}
}

func TestSessionCommandsNeedStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	want := fmt.Sprintf(replyNotActive, "!gpt")
	for _, body := range []string{"!gpt forget", "!gpt prompt", "!gpt reset"} {
		if got := h.say(t, roomA, alice, body); got != want {
			t.Errorf("%s: reply = %q, want %q", body, got, want)
		}
	}
}

func TestPromptCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	h.say(t, roomA, alice, "!gpt start")

	if got, want := h.say(t, roomA, alice, "!gpt prompt"), fmt.Sprintf(replyPrompt, config.DefaultSystemPrompt); got != want {
		t.Errorf("prompt reply = %q, want %q", got, want)
	}

	if got := h.say(t, roomA, alice, "!gpt prompt "+strings.Repeat("blah ", 1000)); got != replyPromptTooLong {
		t.Errorf("long prompt reply = %q", got)
	}

	if got, want := h.say(t, roomA, alice, "!gpt prompt You answer like a pirate."), fmt.Sprintf(replyPromptUpdated, "You answer like a pirate."); got != want {
		t.Errorf("set reply = %q, want %q", got, want)
	}
	if prompt, _ := h.registry.Prompt(ctx, roomA); prompt != "You answer like a pirate." {
		t.Errorf("registered prompt = %q", prompt)
	}
	h.say(t, roomA, alice, "ahoy")
	if calls := h.provider.calls(); calls[len(calls)-1].System != "You answer like a pirate." {
		t.Errorf("system prompt sent = %q", calls[len(calls)-1].System)
	}

	h.say(t, roomA, alice, "!gpt reset")
	if prompt, ok := h.registry.Prompt(ctx, roomA); !ok || prompt != "" {
		t.Errorf("registered prompt after reset = %q, %v; want default", prompt, ok)
	}
	if got := h.bot.lookup(roomA).SystemPrompt(); got != config.DefaultSystemPrompt {
		t.Errorf("session prompt after reset = %q", got)
	}
}

func TestForgetCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.say(t, roomA, alice, "!gpt start")
	h.say(t, roomA, alice, "one")
	h.say(t, roomA, alice, "two")

	if got, want := h.say(t, roomA, alice, "!gpt forget 1"), fmt.Sprintf(replyForgotSome, 2); got != want {
		t.Errorf("forget 1 reply = %q, want %q", got, want)
	}
	if length := h.bot.lookup(roomA).Len(); length != 2 {
		t.Errorf("history length = %d, want 2", length)
	}
	if got := h.say(t, roomA, alice, "!gpt forget zero"); !strings.HasPrefix(got, "Usage:") {
		t.Errorf("bad argument reply = %q", got)
	}
	if got := h.say(t, roomA, alice, "!gpt forget"); got != replyForgotAll {
		t.Errorf("forget reply = %q", got)
	}
	if length := h.bot.lookup(roomA).Len(); length != 0 {
		t.Errorf("history length = %d, want 0", length)
	}
}

func TestModelCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	h.say(t, roomA, alice, "!gpt start")

	if got, want := h.say(t, roomA, alice, "!gpt model"), fmt.Sprintf(replyModel, llm.TierBasic, "gpt-3.5-turbo"); got != want {
		t.Errorf("model reply = %q, want %q", got, want)
	}

	// No power levels readable: no roles.
	if got := h.say(t, roomA, alice, "!gpt model premium"); got != replyNotPrivileged {
		t.Errorf("premium without levels = %q", got)
	}

	h.session.mu.Lock()
	h.session.levels[roomA] = &messaging.PowerLevels{Users: map[string]int{alice: 50}}
	h.session.mu.Unlock()
	if got := h.say(t, roomA, alice, "!gpt model premium"); got != replyNotPrivileged {
		t.Errorf("premium as moderator = %q", got)
	}

	h.session.mu.Lock()
	h.session.levels[roomA] = &messaging.PowerLevels{Users: map[string]int{alice: 100}}
	h.session.mu.Unlock()
	if got, want := h.say(t, roomA, alice, "!gpt model premium"), fmt.Sprintf(replyModelSet, llm.TierPremium, "gpt-4"); got != want {
		t.Errorf("premium as admin = %q, want %q", got, want)
	}
	if tier := h.ledger.Load(ctx, alice).Model; tier != llm.TierPremium {
		t.Errorf("stored tier = %q", tier)
	}

	h.say(t, roomA, alice, "hello")
	calls := h.provider.calls()
	if model := calls[len(calls)-1].Model; model != "gpt-4" {
		t.Errorf("chat used %q, want gpt-4", model)
	}

	if got := h.say(t, roomA, alice, "!gpt model enormous"); !strings.HasPrefix(got, "Usage:") {
		t.Errorf("unknown tier reply = %q", got)
	}
	if got, want := h.say(t, roomA, alice, "!gpt model basic"), fmt.Sprintf(replyModelSet, llm.TierBasic, "gpt-3.5-turbo"); got != want {
		t.Errorf("basic reply = %q, want %q", got, want)
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	status := h.say(t, roomA, alice, "!gpt status")
	for _, want := range []string{"Model: basic (gpt-3.5-turbo)", "Credits: $0.0500", "not active"} {
		if !strings.Contains(status, want) {
			t.Errorf("status %q does not contain %q", status, want)
		}
	}

	h.say(t, roomA, alice, "!gpt start")
	h.say(t, roomA, alice, "hi")
	status = h.say(t, roomA, alice, "!gpt status")
	for _, want := range []string{"Credits: $0.0478", "2 messages", "Prompt: " + config.DefaultSystemPrompt} {
		if !strings.Contains(status, want) {
			t.Errorf("status %q does not contain %q", status, want)
		}
	}
}

func TestGrantCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ledger.Load(ctx, alice)

	tests := []struct {
		name        string
		sender      string
		body        string
		wantReply   string
		wantCredits map[string]float64
	}{
		{
			name:      "refused for other users",
			sender:    alice,
			body:      "!gpt grant @alice:example.org 5",
			wantReply: replyNotAdmin,
		},
		{
			name:        "existing user",
			sender:      adminUser,
			body:        "!gpt grant @alice:example.org 1",
			wantReply:   fmt.Sprintf(replyGranted, alice, "$1.0500"),
			wantCredits: map[string]float64{alice: 1.05},
		},
		{
			name:      "unknown user without new",
			sender:    adminUser,
			body:      "!gpt grant @bob:example.org 1",
			wantReply: fmt.Sprintf(replyUnknownUser, "@bob:example.org"),
		},
		{
			name:        "new user gets the free grant too",
			sender:      adminUser,
			body:        "!gpt grant @bob:example.org 1 new",
			wantReply:   fmt.Sprintf(replyGranted, "@bob:example.org", "$1.0500"),
			wantCredits: map[string]float64{"@bob:example.org": 1.05},
		},
		{
			name:        "unlimited",
			sender:      adminUser,
			body:        "!gpt grant @alice:example.org unlimited",
			wantReply:   fmt.Sprintf(replyGranted, alice, "unlimited"),
			wantCredits: map[string]float64{alice: state.UnlimitedCredits},
		},
		{
			name:      "malformed user",
			sender:    adminUser,
			body:      "!gpt grant carol 1",
			wantReply: fmt.Sprintf(replyBadUser, "carol"),
		},
		{
			name:      "malformed amount",
			sender:    adminUser,
			body:      "!gpt grant @alice:example.org lots",
			wantReply: fmt.Sprintf(replyUsage, "!gpt grant <user> <amount|unlimited> [new]"),
		},
	}
	for _, test := range tests {
		if got := h.say(t, roomA, test.sender, test.body); got != test.wantReply {
			t.Errorf("%s: reply = %q, want %q", test.name, got, test.wantReply)
		}
		for user, want := range test.wantCredits {
			if got := h.ledger.Load(ctx, user).Credits; !approximately(got, want) {
				t.Errorf("%s: credits of %s = %v, want %v", test.name, user, got, want)
			}
		}
	}
	if h.ledger.Exists(ctx, "@carol:example.org") {
		t.Error("a refused grant created a record")
	}
}

func TestGrantRestrictedToAdminRooms(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(config *Config) {
		config.Settings.AdminRooms = []string{roomB}
	})

	if got := h.say(t, roomA, adminUser, "!gpt grant @alice:example.org 1 new"); got != replyNotAdmin {
		t.Errorf("grant outside admin rooms = %q", got)
	}
	if got := h.say(t, roomB, adminUser, "!gpt grant @alice:example.org 1 new"); got != fmt.Sprintf(replyGranted, alice, "$1.0500") {
		t.Errorf("grant in admin room = %q", got)
	}
}

func TestHelpAndUnknownCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(config *Config) {
		config.Settings.CommandPrefix = "!bot"
	})

	help := h.say(t, roomA, alice, "!bot help")
	for _, entry := range commands {
		if !strings.Contains(help, "`!bot "+entry.name) {
			t.Errorf("help does not list %s:\n%s", entry.name, help)
		}
	}
	if got := h.say(t, roomA, alice, "!bot"); got != help {
		t.Errorf("bare prefix reply differs from help: %q", got)
	}
	if got, want := h.say(t, roomA, alice, "!bot dance"), fmt.Sprintf(replyUnknownCommand, "dance", "!bot"); got != want {
		t.Errorf("unknown command reply = %q, want %q", got, want)
	}
}

func TestLeaveRemovesRoom(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	h.say(t, roomA, alice, "!gpt start")

	h.bot.handleSync(ctx, &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{Leave: map[string]messaging.LeftRoom{roomA: {}}},
	})
	h.wait(t)

	if h.bot.lookup(roomA) != nil {
		t.Error("session survived leaving the room")
	}
	if h.registry.Contains(ctx, roomA) {
		t.Error("registry still lists the left room")
	}
}

func TestRunRestoresRoomsAndSkipsBacklog(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	if err := h.registry.Upsert(context.Background(), roomA, "Be terse."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	stateKey := botUser
	h.session.syncs = []*messaging.SyncResponse{
		{
			NextBatch: "s1",
			Rooms: messaging.RoomsSection{
				Join: map[string]messaging.JoinedRoom{
					roomA: {Timeline: messaging.TimelineSection{Events: []messaging.Event{h.message(alice, "old news")}}},
				},
				Invite: map[string]messaging.InvitedRoom{
					roomB: {InviteState: messaging.StateSection{Events: []messaging.Event{{
						Type:     messaging.EventTypeMember,
						Sender:   alice,
						StateKey: &stateKey,
						Content:  map[string]any{"membership": "invite"},
					}}}},
				},
			},
		},
		{
			NextBatch: "s2",
			Rooms: messaging.RoomsSection{
				Join: map[string]messaging.JoinedRoom{
					roomA: {Timeline: messaging.TimelineSection{Events: []messaging.Event{h.message(alice, "fresh question")}}},
				},
			},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	testutil.RequireClosed(t, h.session.idle, 5*time.Second, "sync loop did not consume the script")
	h.wait(t)
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Run did not return"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := h.provider.calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d, want 1 (backlog skipped)", len(calls))
	}
	if calls[0].System != "Be terse." || calls[0].Messages[0].Content != "fresh question" {
		t.Errorf("request = %+v", calls[0])
	}
	h.session.mu.Lock()
	joined := slices.Clone(h.session.joined)
	h.session.mu.Unlock()
	if !slices.Equal(joined, []string{roomB}) {
		t.Errorf("joined = %v, want [%s]", joined, roomB)
	}
}

func TestQueueClosedDropsEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.say(t, roomA, alice, "!gpt start")
	h.queue.Close()

	h.deliver(t, roomA, h.message(alice, "too late"))
	if calls := h.provider.calls(); len(calls) != 0 {
		t.Errorf("provider calls after Close = %d", len(calls))
	}
	if pending := h.queue.Pending(roomA); pending != 0 {
		t.Errorf("pending jobs after Close = %d", pending)
	}
}
