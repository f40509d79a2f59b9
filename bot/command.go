// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/roomgpt/conversation"
	"github.com/bureau-foundation/roomgpt/lib/llm"
	"github.com/bureau-foundation/roomgpt/messaging"
	"github.com/bureau-foundation/roomgpt/state"
)

// commandRequest is one parsed command message.
type commandRequest struct {
	event  messaging.Event
	roomID string
	sender string
	args   string
	logger *slog.Logger
}

// command is one entry of the command table. run returns the reply
// text.
type command struct {
	name    string
	usage   string
	summary string

	// session commands reply with notActive in rooms that have not
	// been started; run receives the room's session.
	session bool

	// admin commands are restricted to the configured administrator.
	admin bool

	run func(b *Bot, ctx context.Context, request commandRequest, session *conversation.Session) string
}

// commands lists every command in help order. Initialized in init to
// break the cycle through commandHelp.
var commands []command

func init() {
	commands = []command{
		{name: "start", summary: "start chatting in this room", run: (*Bot).commandStart},
		{name: "stop", summary: "stop chatting in this room", run: (*Bot).commandStop},
		{name: "forget", usage: "[n]", summary: "forget the last n exchanges, or everything", session: true, run: (*Bot).commandForget},
		{name: "prompt", usage: "[text]", summary: "show or set this room's system prompt", session: true, run: (*Bot).commandPrompt},
		{name: "reset", summary: "restore the default system prompt", session: true, run: (*Bot).commandReset},
		{name: "model", usage: "[basic|premium]", summary: "show or choose your model", run: (*Bot).commandModel},
		{name: "status", summary: "show your credits and model, and this room's state", run: (*Bot).commandStatus},
		{name: "grant", usage: "<user> <amount|unlimited> [new]", summary: "add credits to a user", admin: true, run: (*Bot).commandGrant},
		{name: "help", summary: "show this list", run: (*Bot).commandHelp},
	}
}

// parseCommand splits "<prefix> <name> <args>" into name and args. The
// prefix must be followed by whitespace or end the message; a bare
// prefix is "help".
func parseCommand(prefix, body string) (name, args string, ok bool) {
	rest, found := strings.CutPrefix(body, prefix)
	if !found {
		return "", "", false
	}
	if rest != "" && !strings.ContainsAny(rest[:1], " \t\n") {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "help", "", true
	}
	name, args, _ = strings.Cut(rest, " ")
	if index := strings.IndexAny(name, "\t\n"); index >= 0 {
		name, args = name[:index], rest[index:]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func findCommand(name string) (command, bool) {
	index := slices.IndexFunc(commands, func(entry command) bool { return entry.name == name })
	if index < 0 {
		return command{}, false
	}
	return commands[index], true
}

// runCommand executes one command job and replies with its result.
func (b *Bot) runCommand(ctx context.Context, logger *slog.Logger, event messaging.Event, name, args string) {
	logger = logger.With("command", name, "sender", event.Sender)
	request := commandRequest{
		event:  event,
		roomID: event.RoomID,
		sender: event.Sender,
		args:   args,
		logger: logger,
	}

	entry, found := findCommand(name)
	var reply string
	switch {
	case !found:
		reply = fmt.Sprintf(replyUnknownCommand, name, b.prefix)
	case entry.admin && !b.isAdmin(request.sender, request.roomID):
		logger.Warn("admin command refused")
		reply = replyNotAdmin
	default:
		session := b.lookup(request.roomID)
		if entry.session && session == nil {
			reply = fmt.Sprintf(replyNotActive, b.prefix)
			break
		}
		logger.Info("command")
		reply = entry.run(b, ctx, request, session)
	}
	b.reply(ctx, logger, event, reply)
}

// isAdmin reports whether sender may run admin commands in roomID.
func (b *Bot) isAdmin(sender, roomID string) bool {
	settings := b.config.Settings
	if settings.AdminUser == "" || sender != settings.AdminUser {
		return false
	}
	return len(settings.AdminRooms) == 0 || slices.Contains(settings.AdminRooms, roomID)
}

func (b *Bot) commandStart(ctx context.Context, request commandRequest, session *conversation.Session) string {
	if session != nil {
		return replyAlreadyActive
	}
	session, err := b.newSession("")
	if err != nil {
		request.logger.Error("creating session failed", "error", err)
		return replyFailed
	}
	b.setSession(request.roomID, session)
	if err := b.config.Registry.Upsert(ctx, request.roomID, ""); err != nil {
		return replyStarted + replyNotSaved
	}
	return replyStarted
}

func (b *Bot) commandStop(ctx context.Context, request commandRequest, session *conversation.Session) string {
	if session == nil {
		return replyNotStarted
	}
	b.dropSession(request.roomID)
	if err := b.config.Registry.Remove(ctx, request.roomID); err != nil {
		return replyStopped + replyNotSaved
	}
	return replyStopped
}

func (b *Bot) commandForget(_ context.Context, request commandRequest, session *conversation.Session) string {
	exchanges := 0
	if request.args != "" {
		parsed, err := strconv.Atoi(request.args)
		if err != nil || parsed <= 0 {
			return b.usage("forget")
		}
		exchanges = parsed
	}
	removed := session.Forget(exchanges)
	request.logger.Info("history forgotten", "exchanges", exchanges, "messages_removed", removed)
	if exchanges == 0 {
		return replyForgotAll
	}
	return fmt.Sprintf(replyForgotSome, removed)
}

func (b *Bot) commandPrompt(ctx context.Context, request commandRequest, session *conversation.Session) string {
	if request.args == "" {
		return fmt.Sprintf(replyPrompt, session.SystemPrompt())
	}
	if limit := b.config.MaxSystemPromptTokens; limit > 0 {
		tokens := b.config.Conversation.Estimator.Estimate([]llm.Message{llm.UserMessage(request.args)})
		if tokens > limit {
			request.logger.Info("system prompt rejected", "tokens", tokens, "limit", limit)
			return replyPromptTooLong
		}
	}
	session.SetSystemPrompt(request.args)
	return b.savePrompt(ctx, request, request.args, session)
}

func (b *Bot) commandReset(ctx context.Context, request commandRequest, session *conversation.Session) string {
	session.SetSystemPrompt(b.config.DefaultPrompt)
	return b.savePrompt(ctx, request, "", session)
}

// savePrompt records the room's prompt; "" stores the default.
func (b *Bot) savePrompt(ctx context.Context, request commandRequest, stored string, session *conversation.Session) string {
	request.logger.Info("system prompt updated", "default", stored == "")
	reply := fmt.Sprintf(replyPromptUpdated, session.SystemPrompt())
	if err := b.config.Registry.Upsert(ctx, request.roomID, stored); err != nil {
		reply += replyNotSaved
	}
	return reply
}

func (b *Bot) commandModel(ctx context.Context, request commandRequest, _ *conversation.Session) string {
	if request.args == "" {
		user := b.config.Ledger.Load(ctx, request.sender)
		return fmt.Sprintf(replyModel, user.Model, b.config.Models.Name(user.Model))
	}
	tier, err := llm.ParseTier(strings.ToLower(request.args))
	if err != nil {
		return b.usage("model")
	}
	if tier == llm.TierPremium {
		roles := b.roles(ctx, request.logger, request.roomID, request.sender)
		if !b.config.Gate.IsPrivileged(roles) {
			request.logger.Info("premium tier refused", "roles", roles)
			return replyNotPrivileged
		}
	}
	user, err := b.config.Ledger.SetModel(ctx, request.sender, tier)
	if err != nil {
		return replyNotSavedAlone
	}
	return fmt.Sprintf(replyModelSet, user.Model, b.config.Models.Name(user.Model))
}

func (b *Bot) commandStatus(ctx context.Context, request commandRequest, session *conversation.Session) string {
	user := b.config.Ledger.Load(ctx, request.sender)
	var status strings.Builder
	fmt.Fprintf(&status, "Model: %s (%s)\n", user.Model, b.config.Models.Name(user.Model))
	fmt.Fprintf(&status, "Credits: %s\n", formatCredits(user))
	if session == nil {
		fmt.Fprintf(&status, "Room: not active (use `%s start`)", b.prefix)
		return status.String()
	}
	fmt.Fprintf(&status, "Room: active, %d messages of history\n", session.Len())
	fmt.Fprintf(&status, "Prompt: %s", session.SystemPrompt())
	return status.String()
}

func (b *Bot) commandGrant(ctx context.Context, request commandRequest, _ *conversation.Session) string {
	fields := strings.Fields(request.args)
	if len(fields) < 2 || len(fields) > 3 {
		return b.usage("grant")
	}
	target, amountText := fields[0], fields[1]
	createNewUser := len(fields) == 3 && fields[2] == "new"
	if len(fields) == 3 && !createNewUser {
		return b.usage("grant")
	}
	if !strings.HasPrefix(target, "@") || messaging.ServerName(target) == "" {
		return fmt.Sprintf(replyBadUser, target)
	}

	logger := request.logger.With("target", target)
	if amountText == "unlimited" {
		if !createNewUser && !b.config.Ledger.Exists(ctx, target) {
			return fmt.Sprintf(replyUnknownUser, target)
		}
		user, err := b.config.Ledger.SetUnlimited(ctx, target)
		if err != nil {
			return replyNotSavedAlone
		}
		logger.Info("unlimited credits granted")
		return fmt.Sprintf(replyGranted, target, formatCredits(user))
	}

	amount, err := strconv.ParseFloat(amountText, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return b.usage("grant")
	}
	user, err := b.config.Ledger.Credit(ctx, target, amount, createNewUser)
	if errors.Is(err, state.ErrUnknownUser) {
		return fmt.Sprintf(replyUnknownUser, target)
	}
	if err != nil {
		return replyNotSavedAlone
	}
	return fmt.Sprintf(replyGranted, target, formatCredits(user))
}

func (b *Bot) commandHelp(context.Context, commandRequest, *conversation.Session) string {
	var help strings.Builder
	help.WriteString("Commands:\n\n")
	for _, entry := range commands {
		fmt.Fprintf(&help, "- `%s` %s", b.syntax(entry), entry.summary)
		if entry.admin {
			help.WriteString(" (administrator)")
		}
		help.WriteString("\n")
	}
	help.WriteString("\nMessages starting with `#` are not answered.")
	return help.String()
}

func (b *Bot) syntax(entry command) string {
	if entry.usage == "" {
		return b.prefix + " " + entry.name
	}
	return b.prefix + " " + entry.name + " " + entry.usage
}

func (b *Bot) usage(name string) string {
	entry, _ := findCommand(name)
	return fmt.Sprintf(replyUsage, b.syntax(entry))
}

// formatCredits renders a balance in dollars.
func formatCredits(user state.User) string {
	if user.Unlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("$%.4f", user.Credits)
}
