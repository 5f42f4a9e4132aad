package voice

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/nimbusdesk/voice-core/core/llms"
)

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
	// TurnRoleSystem entries record pipeline failures in the transcript.
	// They are shown to the user but never sent back to the model.
	TurnRoleSystem TurnRole = "system"
)

// Turn is one entry of the conversation log. Text on an in-progress
// assistant turn grows as stream chunks arrive.
type Turn struct {
	ID           string
	Role         TurnRole
	Text         string
	CreatedAt    time.Time
	IsInProgress bool
}

// conversationLog is the append-only turn history. Turns are never removed
// or reordered; completion is the only mutation after append.
type conversationLog struct {
	mu    sync.RWMutex
	turns []Turn
}

func (l *conversationLog) append(role TurnRole, text string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
	l.turns = append(l.turns, turn)
	return turn.ID
}

func (l *conversationLog) appendInProgress(role TurnRole) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := Turn{
		ID:           uuid.NewString(),
		Role:         role,
		CreatedAt:    time.Now(),
		IsInProgress: true,
	}
	l.turns = append(l.turns, turn)
	return turn.ID
}

func (l *conversationLog) appendText(id string, delta string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.turns {
		if l.turns[i].ID == id && l.turns[i].IsInProgress {
			l.turns[i].Text += delta
			return
		}
	}
}

// complete finalizes an in-progress turn, optionally replacing its
// accumulated text. Completing an already-completed turn is a no-op, so the
// in-progress flag clears exactly once.
func (l *conversationLog) complete(id string, finalText *string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.turns {
		if l.turns[i].ID == id && l.turns[i].IsInProgress {
			if finalText != nil {
				l.turns[i].Text = *finalText
			}
			l.turns[i].IsInProgress = false
			return
		}
	}
}

// snapshot returns a deep copy of the log; callers can hold it across
// renders without racing appends.
func (l *conversationLog) snapshot() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	turns := []Turn{}
	copier.Copy(&turns, &l.turns)
	return turns
}

// messages converts the completed user and assistant turns into the prompt
// history. System entries are failure notices, not model context.
func (l *conversationLog) messages() []llms.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	messages := make([]llms.Message, 0, len(l.turns))
	for _, turn := range l.turns {
		if turn.IsInProgress || turn.Role == TurnRoleSystem {
			continue
		}

		role := llms.RoleUser
		if turn.Role == TurnRoleAssistant {
			role = llms.RoleAssistant
		}
		messages = append(messages, llms.Message{Role: role, Content: turn.Text})
	}
	return messages
}
