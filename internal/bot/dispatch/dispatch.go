// Package dispatch routes each inbound message through the command grammar
// and produces exactly one reply, consulting the credential registry,
// conversation memory, quota gate and the external provider.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/eigo-sensei/server/internal/bot/credential"
	"github.com/eigo-sensei/server/internal/bot/memory"
	"github.com/eigo-sensei/server/internal/bot/model"
	errx "github.com/eigo-sensei/server/internal/core/error"
	logx "github.com/eigo-sensei/server/pkg/logger"
)

const recordUsageTimeout = 5 * time.Second

type Dispatcher struct {
	registry  *credential.Registry
	memory    *memory.Store
	gate      model.QuotaGate
	providers model.ProviderFactory

	modelEngine   string
	defaultAPIKey string

	// Per-user serialization; concurrent events for the same user would
	// otherwise interleave history mutations.
	locks sync.Map
}

func New(registry *credential.Registry, mem *memory.Store, gate model.QuotaGate, providers model.ProviderFactory, cfg model.BotConfig) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		memory:        mem,
		gate:          gate,
		providers:     providers,
		modelEngine:   cfg.ModelEngine,
		defaultAPIKey: cfg.DefaultAPIKey,
	}
}

func (d *Dispatcher) userLock(userID string) *sync.Mutex {
	v, _ := d.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Dispatch handles one inbound text message and always returns exactly one
// reply; every failure is mapped to a localized reply here.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, text string) model.Reply {
	mu := d.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	logx.Info().Str("user_id", userID).Str("text", text).Msg("inbound message")

	reply, err := d.handle(ctx, userID, Parse(text))
	if err != nil {
		return d.replyForError(userID, err)
	}
	return reply
}

func (d *Dispatcher) handle(ctx context.Context, userID string, cmd Command) (model.Reply, error) {
	switch cmd.Kind {
	case KindRegister:
		if err := d.registry.Register(ctx, userID, cmd.Arg); err != nil {
			return model.Reply{}, err
		}
		return model.TextReply(replyRegisterSuccess), nil

	case KindHelp:
		return model.TextReply(replyHelp), nil

	case KindSetSystem:
		d.memory.SetSystemPrompt(userID, cmd.Arg)
		return model.TextReply(replySystemPromptSet), nil

	case KindClear:
		d.memory.Clear(userID)
		return model.TextReply(replyHistoryCleared), nil

	case KindImage:
		return d.handleImage(ctx, userID, cmd.Arg)

	default:
		return d.handleChat(ctx, userID, cmd.Arg)
	}
}

func (d *Dispatcher) handleImage(ctx context.Context, userID, prompt string) (model.Reply, error) {
	apiKey, ok := d.registry.Resolve(userID)
	if !ok {
		return model.Reply{}, errx.ErrMissingCredential
	}

	d.memory.Append(userID, schema.UserMessage(prompt))

	url, err := d.providers(apiKey).GenerateImage(ctx, prompt)
	if err != nil {
		return model.Reply{}, err
	}

	d.memory.Append(userID, schema.AssistantMessage(url, nil))
	return model.ImageReply(url), nil
}

func (d *Dispatcher) handleChat(ctx context.Context, userID, text string) (model.Reply, error) {
	if d.gate.IsOverLimit(ctx, userID) {
		return model.TextReply(replyQuotaExceeded), nil
	}

	apiKey, ok := d.registry.Resolve(userID)
	if !ok {
		apiKey = d.defaultAPIKey
		d.registry.Adopt(userID, apiKey)
	}

	messages := d.memory.Compose(userID)
	messages = append(messages, schema.UserMessage(fmt.Sprintf(correctionTemplate, text)))

	content, err := d.providers(apiKey).ChatComplete(ctx, messages, d.modelEngine)
	if err != nil {
		return model.Reply{}, err
	}

	d.memory.Append(userID, schema.UserMessage(text))
	d.memory.Append(userID, schema.AssistantMessage(content, nil))

	go d.recordUsage(userID)

	return model.TextReply(content), nil
}

// recordUsage runs detached from the reply path; the outcome is observed
// only for logging.
func (d *Dispatcher) recordUsage(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordUsageTimeout)
	defer cancel()
	if !d.gate.RecordUsage(ctx, userID) {
		logx.Warn().Str("user_id", userID).Msg("usage not recorded")
	}
}

// replyForError is the single place errors become user-visible replies.
// Credential errors keep the session intact; anything else resets the user's
// conversation memory since its state may be inconsistent.
func (d *Dispatcher) replyForError(userID string, err error) model.Reply {
	switch {
	case errors.Is(err, errx.ErrInvalidCredential):
		return model.TextReply(replyInvalidToken)
	case errors.Is(err, errx.ErrMissingCredential):
		return model.TextReply(replyMissingToken)
	}

	d.memory.Clear(userID)
	logx.Error().Err(err).Str("user_id", userID).Msg("dispatch failed")

	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, incorrectAPIKeyPrefix):
		return model.TextReply(replyTokenRejected)
	case strings.HasPrefix(msg, modelOverloadedPrefix):
		return model.TextReply(replyOverloaded)
	}
	return model.TextReply(msg)
}
