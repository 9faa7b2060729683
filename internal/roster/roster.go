// Package roster applies server-pushed collection deltas to in-memory client
// state while keeping keys unique and insertion order stable.
package roster

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/anonchat/cli/internal/wire"
)

// collection is an insertion-ordered sequence with unique keys.
type collection[T any] struct {
	name string
	key  func(T) string

	items []T
	index map[string]struct{}
}

func newCollection[T any](name string, key func(T) string) collection[T] {
	return collection[T]{
		name:  name,
		key:   key,
		index: make(map[string]struct{}),
	}
}

// replace rebuilds the collection from a batch, dropping entries whose key
// was already seen earlier in the same batch.
func (c *collection[T]) replace(batch []T) {
	fresh := make([]T, 0, len(batch))
	index := make(map[string]struct{}, len(batch))
	for _, item := range batch {
		k := c.key(item)
		if _, dup := index[k]; dup {
			logrus.WithFields(logrus.Fields{
				"collection": c.name,
				"key":        k,
			}).Warn("duplicate key in batch, dropping entry")
			continue
		}
		index[k] = struct{}{}
		fresh = append(fresh, item)
	}
	c.items = fresh
	c.index = index
}

// add appends the item unless its key already exists. New items always land
// at the end; the collection is never re-sorted.
func (c *collection[T]) add(item T) bool {
	k := c.key(item)
	if _, exists := c.index[k]; exists {
		return false
	}
	c.index[k] = struct{}{}
	c.items = append(c.items, item)
	return true
}

// remove deletes the item with the given key. Absence is not an error.
func (c *collection[T]) remove(k string) bool {
	if _, exists := c.index[k]; !exists {
		return false
	}
	delete(c.index, k)
	for i, item := range c.items {
		if c.key(item) == k {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	return true
}

// snapshot returns a copy observers can hold without racing later mutations.
func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Roster holds the reconciled friend, chat and pending-friend-request
// collections. All methods are safe for concurrent use; snapshots expose
// either the state before or after a delta, never a partially-built one.
type Roster struct {
	mu      sync.Mutex
	friends collection[wire.Friend]
	chats   collection[wire.Chat]
	pending collection[wire.PendingFriend]
}

// New creates an empty Roster.
func New() *Roster {
	return &Roster{
		friends: newCollection("friends", func(f wire.Friend) string { return f.UID }),
		chats:   newCollection("chats", func(c wire.Chat) string { return c.ChatID }),
		pending: newCollection("pending", func(p wire.PendingFriend) string { return p.UID }),
	}
}

// ReplaceFriends swaps the friend list for a full-sync batch.
func (r *Roster) ReplaceFriends(batch []wire.Friend) []wire.Friend {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.friends.replace(batch)
	return r.friends.snapshot()
}

// AddFriend appends a friend unless the uid already exists.
func (r *Roster) AddFriend(f wire.Friend) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.friends.add(f)
}

// Friends returns the current friend list.
func (r *Roster) Friends() []wire.Friend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.friends.snapshot()
}

// ReplaceChats swaps the chat list for a full-sync batch.
func (r *Roster) ReplaceChats(batch []wire.Chat) []wire.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats.replace(batch)
	return r.chats.snapshot()
}

// AddChat appends a chat unless the chatId already exists.
func (r *Roster) AddChat(c wire.Chat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chats.add(c)
}

// HasChat reports whether a chat with the given id exists.
func (r *Roster) HasChat(chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.chats.index[chatID]
	return ok
}

// Chats returns the current chat list.
func (r *Roster) Chats() []wire.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chats.snapshot()
}

// AddPending records a received friend request unless one from the same uid
// is already pending.
func (r *Roster) AddPending(p wire.PendingFriend) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.add(p)
}

// RemovePending consumes a pending friend request. Absence is not an error.
func (r *Roster) RemovePending(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.remove(uid)
}

// Pending returns the current pending friend requests.
func (r *Roster) Pending() []wire.PendingFriend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.snapshot()
}

// DedupUsers drops duplicate uids from a user search result batch, keeping
// first occurrences. Search results are transient, so no long-lived
// collection is kept for them.
func DedupUsers(batch []wire.User) []wire.User {
	seen := make(map[string]struct{}, len(batch))
	out := make([]wire.User, 0, len(batch))
	for _, u := range batch {
		if _, dup := seen[u.UID]; dup {
			logrus.WithField("uid", u.UID).Warn("duplicate uid in search results, dropping entry")
			continue
		}
		seen[u.UID] = struct{}{}
		out = append(out, u)
	}
	return out
}

// DedupGroups drops duplicate groupIds from a group search result batch.
func DedupGroups(batch []wire.Group) []wire.Group {
	seen := make(map[string]struct{}, len(batch))
	out := make([]wire.Group, 0, len(batch))
	for _, g := range batch {
		if _, dup := seen[g.GroupID]; dup {
			logrus.WithField("group_id", g.GroupID).Warn("duplicate groupId in search results, dropping entry")
			continue
		}
		seen[g.GroupID] = struct{}{}
		out = append(out, g)
	}
	return out
}
