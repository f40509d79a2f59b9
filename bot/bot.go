// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/roomgpt/conversation"
	"github.com/bureau-foundation/roomgpt/lib/clock"
	"github.com/bureau-foundation/roomgpt/lib/config"
	"github.com/bureau-foundation/roomgpt/lib/keyqueue"
	"github.com/bureau-foundation/roomgpt/lib/service"
	"github.com/bureau-foundation/roomgpt/messaging"
	"github.com/bureau-foundation/roomgpt/state"
)

// DefaultCommandPrefix starts command messages when the configuration
// leaves the prefix empty.
const DefaultCommandPrefix = "!gpt"

// syncFilter restricts /sync to room messages and membership, which is
// all the bot reacts to.
var syncFilter = buildSyncFilter()

func buildSyncFilter() string {
	emptyTypes := []string{}
	filter := map[string]any{
		"room": map[string]any{
			"state": map[string]any{
				"types": []string{messaging.EventTypeMember},
			},
			"timeline": map[string]any{
				"types": []string{messaging.EventTypeMessage, messaging.EventTypeMember},
				"limit": 50,
			},
			"ephemeral": map[string]any{
				"types": emptyTypes,
			},
			"account_data": map[string]any{
				"types": emptyTypes,
			},
		},
		"presence": map[string]any{
			"types": emptyTypes,
		},
		"account_data": map[string]any{
			"types": emptyTypes,
		},
	}

	data, err := json.Marshal(filter)
	if err != nil {
		panic("building sync filter: " + err.Error())
	}
	return string(data)
}

// Config holds the bot's collaborators and settings. Session,
// Conversation (with its Provider and Estimator), Ledger, Registry,
// Gate and Queue are required.
type Config struct {
	Session      messaging.Session
	Conversation conversation.Config
	Ledger       *state.Ledger
	Registry     *state.Registry
	Gate         *state.PrivilegeGate
	Queue        *keyqueue.Queue[string]

	Models   config.ModelsConfig
	Settings config.BotConfig

	// DefaultPrompt is the system prompt of rooms without their own.
	DefaultPrompt string

	// MaxSystemPromptTokens rejects longer prompts from the prompt
	// command. Zero disables the check.
	MaxSystemPromptTokens int

	// SyncTimeout is the long-poll timeout of each /sync.
	SyncTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Bot answers messages in the rooms it has been started in.
type Bot struct {
	config  Config
	session messaging.Session
	queue   *keyqueue.Queue[string]
	prefix  string
	clock   clock.Clock
	logger  *slog.Logger

	mu    sync.Mutex
	rooms map[string]*conversation.Session
}

// New checks config and returns a bot with no active rooms. Call
// [Bot.Run] to restore rooms and start syncing.
func New(cfg Config) (*Bot, error) {
	var problems []error
	if cfg.Session == nil {
		problems = append(problems, errors.New("Session is required"))
	}
	if cfg.Ledger == nil {
		problems = append(problems, errors.New("Ledger is required"))
	}
	if cfg.Registry == nil {
		problems = append(problems, errors.New("Registry is required"))
	}
	if cfg.Gate == nil {
		problems = append(problems, errors.New("Gate is required"))
	}
	if cfg.Queue == nil {
		problems = append(problems, errors.New("Queue is required"))
	}
	if _, err := conversation.NewSession(cfg.Conversation, ""); err != nil {
		problems = append(problems, err)
	}
	if err := errors.Join(problems...); err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = config.DefaultSystemPrompt
	}
	prefix := strings.TrimSpace(cfg.Settings.CommandPrefix)
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}

	return &Bot{
		config:  cfg,
		session: cfg.Session,
		queue:   cfg.Queue,
		prefix:  prefix,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		rooms:   make(map[string]*conversation.Session),
	}, nil
}

// Run restores the registered rooms, performs the initial /sync
// (accepting pending invites but not answering the backlog) and then
// runs the incremental sync loop until ctx is done. Jobs still queued
// when Run returns keep running; the caller drains the queue.
func (b *Bot) Run(ctx context.Context) error {
	b.restore(ctx)

	sinceToken, initial, err := service.InitialSync(ctx, b.session, syncFilter)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	b.acceptInvites(ctx, initial.Rooms.Invite)

	skipped := 0
	for _, room := range initial.Rooms.Join {
		skipped += len(room.Timeline.Events)
	}
	b.logger.Info("bot running",
		"user_id", b.session.UserID(),
		"active_rooms", b.ActiveRooms(),
		"skipped_backlog", skipped,
		"command_prefix", b.prefix,
	)

	service.RunSyncLoop(ctx, b.session, service.SyncConfig{
		Filter:  syncFilter,
		Timeout: int(b.config.SyncTimeout.Milliseconds()),
	}, sinceToken, b.handleSync, b.clock, b.logger)
	return nil
}

// restore creates a session for every registered room.
func (b *Bot) restore(ctx context.Context) {
	for roomID, prompt := range b.config.Registry.Snapshot(ctx) {
		session, err := b.newSession(prompt)
		if err != nil {
			b.logger.Error("restoring room failed", "room_id", roomID, "error", err)
			continue
		}
		b.setSession(roomID, session)
	}
}

// ActiveRooms returns the number of rooms with a session.
func (b *Bot) ActiveRooms() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms)
}

// newSession starts a session with prompt, or the default prompt when
// prompt is empty.
func (b *Bot) newSession(prompt string) (*conversation.Session, error) {
	if prompt == "" {
		prompt = b.config.DefaultPrompt
	}
	return conversation.NewSession(b.config.Conversation, prompt)
}

func (b *Bot) lookup(roomID string) *conversation.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rooms[roomID]
}

func (b *Bot) setSession(roomID string, session *conversation.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[roomID] = session
}

func (b *Bot) dropSession(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, existed := b.rooms[roomID]
	delete(b.rooms, roomID)
	return existed
}

// handleSync routes one incremental /sync response.
func (b *Bot) handleSync(ctx context.Context, response *messaging.SyncResponse) {
	if len(response.Rooms.Invite) > 0 {
		b.acceptInvites(ctx, response.Rooms.Invite)
	}

	// A room in the leave section was left, or the bot was kicked or
	// banned. Queue the cleanup behind the room's pending jobs.
	for roomID := range response.Rooms.Leave {
		b.submit(ctx, roomID, "leave", func(ctx context.Context, logger *slog.Logger) {
			if !b.dropSession(roomID) {
				return
			}
			logger.Info("left active room, removing it")
			if err := b.config.Registry.Remove(ctx, roomID); err != nil {
				logger.Error("removing left room from registry failed", "error", err)
			}
		})
	}

	for roomID, room := range response.Rooms.Join {
		for _, event := range room.Timeline.Events {
			b.handleEvent(ctx, roomID, event)
		}
	}
}

func (b *Bot) acceptInvites(ctx context.Context, invites map[string]messaging.InvitedRoom) {
	accepted := service.AcceptInvites(ctx, b.session, invites, b.config.Settings.AvailableServers, b.logger)
	if len(accepted) > 0 {
		b.logger.Info("accepted room invites", "count", len(accepted))
	}
}

// handleEvent queues a command or chat job for a timeline event, or
// drops it.
func (b *Bot) handleEvent(ctx context.Context, roomID string, event messaging.Event) {
	if event.Type != messaging.EventTypeMessage || event.Sender == b.session.UserID() {
		return
	}
	if event.IsEdit() || event.MsgType() != "m.text" {
		return
	}
	body := strings.TrimSpace(event.Body())
	if body == "" || strings.HasPrefix(body, "#") || strings.HasPrefix(body, "＃") {
		return
	}
	event.RoomID = roomID

	if name, args, ok := parseCommand(b.prefix, body); ok {
		b.submit(ctx, roomID, "command", func(ctx context.Context, logger *slog.Logger) {
			b.runCommand(ctx, logger, event, name, args)
		})
		return
	}
	b.submit(ctx, roomID, "chat", func(ctx context.Context, logger *slog.Logger) {
		b.chat(ctx, logger, event, body)
	})
}

// submit queues job on roomID's FIFO. Jobs outlive ctx's cancellation
// so that shutdown lets queued turns finish; the API timeout bounds
// each one.
func (b *Bot) submit(ctx context.Context, roomID, kind string, job func(ctx context.Context, logger *slog.Logger)) {
	logger := b.logger.With("room_id", roomID, "job_id", uuid.NewString(), "job", kind)
	err := b.queue.Submit(context.WithoutCancel(ctx), roomID, func(ctx context.Context) {
		job(ctx, logger)
	})
	if err != nil {
		logger.Warn("dropping event", "error", err)
	}
}

// reply posts text as a threaded reply to event, rendered as HTML
// when the markdown converts.
func (b *Bot) reply(ctx context.Context, logger *slog.Logger, event messaging.Event, text string) {
	content := messaging.NewThreadReply(event.ThreadRoot(), event.EventID, text)
	if html, err := messaging.RenderMarkdown(text); err != nil {
		logger.Warn("rendering reply failed, sending plain text", "error", err)
	} else {
		content = content.WithHTML(html)
	}
	if _, err := b.session.SendMessage(ctx, event.RoomID, content); err != nil {
		logger.Error("sending reply failed", "error", err)
	}
}
