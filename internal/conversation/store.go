package conversation

import "slices"

// Conversation is an append-only, chronologically ordered list of turns.
// It is not safe for concurrent use; Session guards it.
type Conversation struct {
	turns []Turn
}

func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

// Turns returns a copy of all turns in order.
func (c *Conversation) Turns() []Turn {
	return slices.Clone(c.turns)
}

func (c *Conversation) Len() int { return len(c.turns) }

// Empty reports whether nothing has been submitted yet.
func (c *Conversation) Empty() bool { return len(c.turns) == 0 }
