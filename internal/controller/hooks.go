package controller

import (
	"time"

	"github.com/capitalize-ai/knowledge-chat/internal/model"
)

// Change describes one applied state change together with the state that
// resulted from it.
type Change struct {
	Type           model.EventType
	ConversationID string
	Reason         string

	Conversations        []model.Conversation
	ActiveConversationID string
	HasActive            bool
	IsLoading            bool
}

// State converts the change into presentation state.
func (ch Change) State() model.State {
	st := model.State{
		Conversations: ch.Conversations,
		IsLoading:     ch.IsLoading,
	}
	if st.Conversations == nil {
		st.Conversations = []model.Conversation{}
	}
	if ch.HasActive {
		id := ch.ActiveConversationID
		st.ActiveConversationID = &id
	}
	return st
}

// Hook observes applied changes.
type Hook func(Change)

// Saver receives conversation snapshots to persist.
type Saver interface {
	Save(convs []model.Conversation)
}

// PersistHook saves the conversation list after every store mutation.
// Loading transitions and answer failures do not touch the store and are
// skipped.
func PersistHook(s Saver) Hook {
	return func(ch Change) {
		switch ch.Type {
		case model.EventLoadingChanged, model.EventAnswerFailed:
			return
		}
		s.Save(ch.Conversations)
	}
}

// EventSink receives externally published events.
type EventSink interface {
	Publish(ev *model.ConversationEvent)
}

// EventHook forwards every change to sink as a ConversationEvent.
func EventHook(sink EventSink) Hook {
	return func(ch Change) {
		sink.Publish(&model.ConversationEvent{
			ConversationID: ch.ConversationID,
			Type:           ch.Type,
			Reason:         ch.Reason,
			Metadata: map[string]any{
				"is_loading":    ch.IsLoading,
				"conversations": len(ch.Conversations),
			},
			CreatedAt: time.Now(),
		})
	}
}
