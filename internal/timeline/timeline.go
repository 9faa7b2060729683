// Package timeline merges locally-sent, pushed and history-loaded messages
// for a single chat into one view ordered by server timestamp.
package timeline

import (
	"sort"
	"sync"

	"github.com/anonchat/cli/internal/clock"
	"github.com/anonchat/cli/internal/wire"
)

// Timeline is the message view for one chat. Messages from other chats are
// filtered out at ingestion; the surviving set is kept sorted ascending by
// timestamp with a stable sort, so same-timestamp messages retain arrival
// order.
type Timeline struct {
	mu       sync.Mutex
	chatID   string
	clk      clock.Clock
	messages []wire.Message
}

// New creates an empty timeline scoped to chatID.
func New(chatID string, clk clock.Clock) *Timeline {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Timeline{chatID: chatID, clk: clk}
}

// ChatID returns the chat this timeline is scoped to.
func (t *Timeline) ChatID() string {
	return t.chatID
}

// AppendLocal records a message the user just sent, stamped with the local
// clock so it shows up immediately without waiting for the server echo.
func (t *Timeline) AppendLocal(fromUID, nickname, text string) wire.Message {
	msg := wire.Message{
		FromUID:   fromUID,
		Nickname:  nickname,
		Text:      text,
		Timestamp: t.clk.Now().UnixMilli(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insert(msg)
	return msg
}

// Ingest adds a pushed message if it belongs to this chat. It reports
// whether the message was accepted.
func (t *Timeline) Ingest(chatID string, msg wire.Message) bool {
	if chatID != t.chatID {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insert(msg)
	return true
}

// AppendSystem adds a synthetic notice, such as a member joining or leaving,
// attributed to the system sender and ordered like any other message.
func (t *Timeline) AppendSystem(text string, timestamp int64) wire.Message {
	msg := wire.Message{
		FromUID:   wire.SystemSenderUID,
		Text:      text,
		Timestamp: timestamp,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insert(msg)
	return msg
}

// ReplaceHistory discards the current view and installs a freshly loaded
// history batch, sorted by timestamp.
func (t *Timeline) ReplaceHistory(batch []wire.Message) {
	fresh := make([]wire.Message, len(batch))
	copy(fresh, batch)
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Timestamp < fresh[j].Timestamp
	})
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = fresh
}

// Messages returns a copy of the current view, oldest first.
func (t *Timeline) Messages() []wire.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// insert appends then re-sorts. The stable sort keeps arrival order among
// equal timestamps, which is what makes local echo followed by the server
// copy render consistently. Caller holds t.mu.
func (t *Timeline) insert(msg wire.Message) {
	t.messages = append(t.messages, msg)
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].Timestamp < t.messages[j].Timestamp
	})
}
