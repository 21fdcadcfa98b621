package conversation

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/shopper/internal/shopping"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a conversation. A user turn carries the submitted text,
// an assistant turn carries a search result; the accessors enforce this.
type Turn struct {
	id        string
	role      Role
	createdAt time.Time
	text      string
	result    shopping.SearchResult
}

// UserTurn creates a turn holding submitted text.
func UserTurn(text string) Turn {
	return Turn{id: uuid.NewString(), role: RoleUser, createdAt: time.Now().UTC(), text: text}
}

// AssistantTurn creates a turn holding a search result.
func AssistantTurn(result shopping.SearchResult) Turn {
	result.Products = slices.Clone(result.Products)
	if result.Products == nil {
		result.Products = []shopping.Product{}
	}
	return Turn{id: uuid.NewString(), role: RoleAssistant, createdAt: time.Now().UTC(), result: result}
}

func (t Turn) ID() string           { return t.id }
func (t Turn) Role() Role           { return t.role }
func (t Turn) CreatedAt() time.Time { return t.createdAt }

// Text returns the submitted text of a user turn.
func (t Turn) Text() (string, bool) {
	if t.role != RoleUser {
		return "", false
	}
	return t.text, true
}

// Result returns the search result of an assistant turn.
func (t Turn) Result() (shopping.SearchResult, bool) {
	if t.role != RoleAssistant {
		return shopping.SearchResult{}, false
	}
	r := t.result
	r.Products = slices.Clone(t.result.Products)
	return r, true
}

type turnJSON struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Content   any       `json:"content"`
}

// MarshalJSON encodes content as a string for user turns and as an object
// for assistant turns.
func (t Turn) MarshalJSON() ([]byte, error) {
	out := turnJSON{ID: t.id, Role: t.role, CreatedAt: t.createdAt}
	switch t.role {
	case RoleUser:
		out.Content = t.text
	default:
		out.Content = t.result
	}
	return json.Marshal(out)
}
