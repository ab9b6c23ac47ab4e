package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	app_errors "gemchat/internal/errors"
	"gemchat/internal/llm"
	"gemchat/internal/metrics"
	"gemchat/internal/model"
	"gemchat/internal/observable"
	"gemchat/internal/repository"
)

const (
	// FallbackReply is stored when the completion backend answers without text.
	FallbackReply = "No reply received."

	// LoadErrorMessage is published when the message stream of the active
	// conversation fails.
	LoadErrorMessage = "Messages could not be loaded."
)

// ScopeFunc reports the store scope of the current user. ok is false when
// nobody is signed in and no anonymous scope is configured.
type ScopeFunc func() (scope string, ok bool)

// StaticScope always reports scope; an empty scope means none.
func StaticScope(scope string) ScopeFunc {
	return func() (string, bool) { return scope, scope != "" }
}

// IdentityScope scopes data by the signed-in user's UID, falling back to
// anonymous when signed out.
func IdentityScope(session *SessionStore, anonymous string) ScopeFunc {
	return func() (string, bool) {
		if identity := session.Identity(); identity != nil {
			return identity.UID, true
		}
		return anonymous, anonymous != ""
	}
}

type ChatControllerOption func(*ChatController)

func WithMetrics(m *metrics.Metrics) ChatControllerOption {
	return func(c *ChatController) { c.metrics = m }
}

// WithClock replaces the wall clock used to stamp messages.
func WithClock(now func() time.Time) ChatControllerOption {
	return func(c *ChatController) { c.clock = newStampClock(now) }
}

// WithIDGenerator replaces the conversation id generator.
func WithIDGenerator(newID func() string) ChatControllerOption {
	return func(c *ChatController) { c.newID = newID }
}

// ChatController owns the active conversation and publishes ChatUiState.
//
// Store listeners are tagged with a generation; a delivery from a listener that
// has since been replaced or cancelled is dropped.
type ChatController struct {
	repo      repository.Repository
	completer llm.Completer
	scope     ScopeFunc
	metrics   *metrics.Metrics
	clock     *stampClock
	newID     func() string

	state *observable.Value[model.ChatUiState]

	mu            sync.Mutex
	convSub       repository.Subscription
	convGen       uint64
	msgSub        repository.Subscription
	msgGen        uint64
	inFlight      int
	errorFromLoad bool // the published error came from the message stream
}

func NewChatController(repo repository.Repository, completer llm.Completer, scope ScopeFunc, opts ...ChatControllerOption) *ChatController {
	c := &ChatController{
		repo:      repo,
		completer: completer,
		scope:     scope,
		clock:     newStampClock(time.Now),
		newID:     uuid.NewString,
		state:     observable.NewValue(model.EmptyChatUiState()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ChatController) State() model.ChatUiState {
	return c.state.Get()
}

func (c *ChatController) Watch(ctx context.Context) <-chan model.ChatUiState {
	return c.state.Watch(ctx)
}

// Start observes the conversation list of the current scope and opens a new
// conversation.
func (c *ChatController) Start() {
	c.mu.Lock()
	c.observeConversationsLocked()
	c.mu.Unlock()

	c.StartNewConversation()
}

// StartNewConversation makes a fresh, empty conversation active. Nothing is
// written until its first message.
func (c *ChatController) StartNewConversation() string {
	id := c.newID()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorFromLoad = false
	c.state.Update(func(s model.ChatUiState) model.ChatUiState {
		s.ActiveConversationID = id
		s.Messages = []model.Message{}
		s.Error = ""
		return s
	})
	c.observeMessagesLocked(id)
	return id
}

// SwitchToConversation makes id the active conversation. The message list is
// emptied until the store delivers the conversation.
func (c *ChatController) SwitchToConversation(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: conversation id is required", app_errors.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorFromLoad = false
	c.state.Update(func(s model.ChatUiState) model.ChatUiState {
		s.ActiveConversationID = id
		s.Messages = []model.Message{}
		s.Error = ""
		return s
	})
	c.observeMessagesLocked(id)
	return nil
}

// SendMessage stores text as a user message, asks the completer for a reply and
// stores the reply. Blank text, or no active conversation, is a no-op. A failure
// stops the remaining steps, is published in the error slot and returned.
func (c *ChatController) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	conversationID := c.state.Get().ActiveConversationID
	if conversationID == "" {
		c.mu.Unlock()
		return nil
	}
	scope, ok := c.scope()
	if !ok {
		c.mu.Unlock()
		return app_errors.ErrUnauthenticated
	}
	c.inFlight++
	c.state.Update(func(s model.ChatUiState) model.ChatUiState {
		s.Loading = true
		return s
	})
	c.mu.Unlock()

	err := c.send(ctx, scope, conversationID, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	c.state.Update(func(s model.ChatUiState) model.ChatUiState {
		s.Loading = c.inFlight > 0
		if s.ActiveConversationID != conversationID {
			return s
		}
		switch {
		case err != nil:
			s.Error = err.Error()
			if s.Error == "" {
				s.Error = GenericErrorMessage
			}
			c.errorFromLoad = false
		case !c.errorFromLoad:
			s.Error = ""
		}
		return s
	})

	if err != nil {
		slog.Error("Send message failed", "conversation_id", conversationID, "error", err)
		c.metrics.RecordMessageSent("failure")
		return err
	}
	c.metrics.RecordMessageSent("success")
	return nil
}

func (c *ChatController) send(ctx context.Context, scope, conversationID, text string) error {
	userMsg := model.NewMessage(text, model.OriginUser, c.clock.Next())
	if err := c.repo.WriteMessage(ctx, scope, conversationID, &userMsg); err != nil {
		return err
	}

	started := time.Now()
	reply, err := c.completer.Complete(ctx, text)
	c.metrics.RecordCompletion(time.Since(started))
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	assistantMsg := model.NewMessage(reply, model.OriginAssistant, c.clock.Next())
	return c.repo.WriteMessage(ctx, scope, conversationID, &assistantMsg)
}

// Clear cancels every subscription and resets the published state.
func (c *ChatController) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.convSub != nil {
		c.convSub.Cancel()
		c.convSub = nil
	}
	if c.msgSub != nil {
		c.msgSub.Cancel()
		c.msgSub = nil
	}
	c.convGen++
	c.msgGen++
	c.errorFromLoad = false
	c.state.Set(model.EmptyChatUiState())
}

func (c *ChatController) observeConversationsLocked() {
	if c.convSub != nil {
		c.convSub.Cancel()
		c.convSub = nil
	}
	c.convGen++
	gen := c.convGen

	scope, ok := c.scope()
	if !ok {
		c.state.Update(func(s model.ChatUiState) model.ChatUiState {
			s.ConversationIDs = []string{}
			return s
		})
		return
	}
	c.convSub = c.repo.ListenConversations(scope, func(ids []string, err error) {
		c.onConversations(gen, ids, err)
	})
}

func (c *ChatController) onConversations(gen uint64, ids []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.convGen {
		return
	}

	if err != nil {
		// The list degrades to empty instead of surfacing an error.
		slog.Warn("Conversation list subscription failed", "error", err)
		c.metrics.RecordSubscriptionError("conversations")
		ids = nil
	}
	published := slices.Clone(ids)
	if published == nil {
		published = []string{}
	}
	c.state.Update(func(s model.ChatUiState) model.ChatUiState {
		s.ConversationIDs = published
		return s
	})
}

func (c *ChatController) observeMessagesLocked(conversationID string) {
	if c.msgSub != nil {
		c.msgSub.Cancel()
		c.msgSub = nil
	}
	c.msgGen++
	gen := c.msgGen

	scope, ok := c.scope()
	if !ok {
		return
	}
	c.msgSub = c.repo.ListenMessages(scope, conversationID, func(msgs []model.Message, err error) {
		c.onMessages(gen, conversationID, msgs, err)
	})
}

func (c *ChatController) onMessages(gen uint64, conversationID string, msgs []model.Message, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.msgGen {
		return
	}

	if err != nil {
		slog.Warn("Message subscription failed", "conversation_id", conversationID, "error", err)
		c.metrics.RecordSubscriptionError("messages")
		c.errorFromLoad = true
		c.state.Update(func(s model.ChatUiState) model.ChatUiState {
			s.Messages = []model.Message{}
			s.Error = LoadErrorMessage
			return s
		})
		return
	}

	sorted := model.SortMessages(msgs)
	clearLoadError := c.errorFromLoad
	c.errorFromLoad = false
	c.state.Update(func(s model.ChatUiState) model.ChatUiState {
		s.Messages = sorted
		if clearLoadError {
			s.Error = ""
		}
		return s
	})
}
