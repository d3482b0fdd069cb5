// Package controller sequences user intents against the conversation store
// and the answer provider.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/knowledge-chat/internal/answer"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/internal/store"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
	"github.com/capitalize-ai/knowledge-chat/pkg/metrics"
)

const defaultAnswerTimeout = 2 * time.Minute

// Controller is the only entry point the presentation layer uses.
//
// All store mutations and hook invocations happen under one mutex, so
// hooks observe changes in the order they were applied. Answer generation
// runs outside the mutex; any number of answers may be outstanding.
type Controller struct {
	store    *store.Store
	provider answer.Provider
	logger   *logger.Logger
	timeout  time.Duration

	mu       sync.Mutex
	hooks    []Hook
	inFlight int

	wg      sync.WaitGroup
	baseCtx context.Context
}

// Option configures a Controller.
type Option func(*Controller)

// WithHook registers a hook at construction time.
func WithHook(h Hook) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, h)
	}
}

// WithAnswerTimeout bounds a single provider call.
func WithAnswerTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a controller over st and provider.
func New(st *store.Store, provider answer.Provider, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:    st,
		provider: provider,
		logger:   log.Named("controller"),
		timeout:  defaultAnswerTimeout,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers h to run after every applied change. Hooks run while
// the controller is locked and must not call back into it.
func (c *Controller) OnChange(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// StartNewConversation creates a conversation, makes it active and returns
// its id.
func (c *Controller) StartNewConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.store.CreateConversation()
	metrics.ConversationsTotal.Inc()
	c.logger.Info("conversation created", zap.String("conversation_id", id))

	c.notify(model.EventConversationCreated, id, "")
	return id
}

// SelectConversation makes id active. The id is not checked against the
// store; selecting an unknown id leaves nothing displayable.
func (c *Controller) SelectConversation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.SetActive(id)
	c.notify(model.EventConversationSelected, id, "")
}

// SubmitMessage appends text as a user message to the active conversation
// and requests an answer in the background. It does nothing when no
// conversation is active.
//
// The reply is filed under the conversation that was active at submission,
// whatever is active when it arrives. Submissions are not queued: replies
// are appended in the order their answers complete.
func (c *Controller) SubmitMessage(text string) {
	c.mu.Lock()

	conv, ok := c.store.GetActive()
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("message dropped, no active conversation")
		return
	}
	id := conv.ID
	userMsg := model.NewUserMessage(text)

	if conv.CountRole(model.RoleUser) == 0 {
		if c.store.RenameConversation(id, DeriveTitle(text)) {
			c.notify(model.EventConversationRenamed, id, "")
		}
	}

	if c.store.AppendMessage(id, userMsg) {
		metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
		c.notify(model.EventMessageAppended, id, "")
	}

	history := append(conv.Messages, userMsg)

	c.inFlight++
	c.notify(model.EventLoadingChanged, id, "")
	c.wg.Add(1)
	c.mu.Unlock()

	go c.resolve(id, text, history)
}

func (c *Controller) resolve(conversationID, text string, history []model.Message) {
	defer c.wg.Done()

	log := c.logger.WithConversation(conversationID)

	ctx, cancel := context.WithTimeout(c.baseCtx, c.timeout)
	ans, err := c.generate(ctx, &answer.Request{
		ConversationID: conversationID,
		History:        history,
		Message:        text,
	})
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		log.Error("answer generation failed", zap.String("provider", c.provider.Name()), zap.Error(err))
		c.notify(model.EventAnswerFailed, conversationID, err.Error())
	} else if c.store.AppendMessage(conversationID, model.NewAssistantMessage(ans.Text, ans.Sources)) {
		metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
		c.notify(model.EventMessageAppended, conversationID, "")
	} else {
		log.Warn("answer dropped, conversation no longer exists")
	}

	c.inFlight--
	c.notify(model.EventLoadingChanged, conversationID, "")
}

func (c *Controller) generate(ctx context.Context, req *answer.Request) (ans *answer.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("answer provider panicked: %v", r)
		}
	}()

	ans, err = c.provider.GenerateAnswer(ctx, req)
	if err == nil && ans == nil {
		err = fmt.Errorf("answer provider %s returned no answer", c.provider.Name())
	}
	return ans, err
}

// State returns the presentation state.
func (c *Controller) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.change("", "", "").State()
}

// IsLoading reports whether any answer is outstanding.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// ActiveConversation returns the active conversation, if any.
func (c *Controller) ActiveConversation() (model.Conversation, bool) {
	return c.store.GetActive()
}

// Wait blocks until every outstanding answer has settled or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify must be called with c.mu held.
func (c *Controller) notify(typ model.EventType, conversationID, reason string) {
	if len(c.hooks) == 0 {
		return
	}
	ch := c.change(typ, conversationID, reason)
	for _, h := range c.hooks {
		h(ch)
	}
}

func (c *Controller) change(typ model.EventType, conversationID, reason string) Change {
	activeID, hasActive := c.store.ActiveID()
	return Change{
		Type:                 typ,
		ConversationID:       conversationID,
		Reason:               reason,
		Conversations:        c.store.Conversations(),
		ActiveConversationID: activeID,
		HasActive:            hasActive,
		IsLoading:            c.inFlight > 0,
	}
}
