package client

import "github.com/anonchat/cli/internal/wire"

// Listener receives client events. Callbacks run on a dedicated goroutine in
// emission order; implementations must not call back into the Client from
// inside a callback synchronously expecting ordering with other callbacks.
// Slice arguments are snapshots the listener may keep.
type Listener interface {
	// OnConnected is called after the websocket connection is established,
	// including after an automatic reconnect.
	OnConnected()
	// OnDisconnected is called after the websocket disconnects.
	OnDisconnected(reason string)
	// OnReconnectGaveUp is called once the automatic reconnect budget is
	// exhausted. Only an explicit Connect resumes reconnection.
	OnReconnectGaveUp()

	// OnIdentityUpdated reports the local uid and nickname after a successful
	// register, login or nickname update.
	OnIdentityUpdated(uid, nickname string)

	// OnFriendsUpdated delivers the friend list after any change.
	OnFriendsUpdated(friends []wire.Friend)
	// OnChatsUpdated delivers the chat list after any change.
	OnChatsUpdated(chats []wire.Chat)
	// OnPendingRequestsUpdated delivers the pending friend requests after any
	// change.
	OnPendingRequestsUpdated(pending []wire.PendingFriend)

	// OnUserSearchResults delivers deduplicated user search results.
	OnUserSearchResults(users []wire.User)
	// OnGroupSearchResults delivers deduplicated group search results.
	OnGroupSearchResults(groups []wire.Group)

	// OnTimelineUpdated delivers the open chat's message view after any
	// change, oldest message first.
	OnTimelineUpdated(chatID string, messages []wire.Message)

	// OnGroupInvite reports a received invitation to join a group chat.
	// Answer it with AcceptGroupInvite or RejectGroupInvite, echoing groupID
	// and fromUID.
	OnGroupInvite(groupID, groupName, fromUID string)
	// OnJoinGroupRequest reports that a user asked to join a group the local
	// user can approve for.
	OnJoinGroupRequest(groupID, uid, nickname string)

	// OnRequestFailed reports a failed request: retries exhausted
	// (request.ErrRetriesExhausted) or a server rejection (ErrRejected).
	OnRequestFailed(operation string, err error)
}

// NoopListener implements Listener with empty methods. Embed it to implement
// only the callbacks a view cares about.
type NoopListener struct{}

func (NoopListener) OnConnected()                                  {}
func (NoopListener) OnDisconnected(string)                         {}
func (NoopListener) OnReconnectGaveUp()                            {}
func (NoopListener) OnIdentityUpdated(string, string)              {}
func (NoopListener) OnFriendsUpdated([]wire.Friend)                {}
func (NoopListener) OnChatsUpdated([]wire.Chat)                    {}
func (NoopListener) OnPendingRequestsUpdated([]wire.PendingFriend) {}
func (NoopListener) OnUserSearchResults([]wire.User)               {}
func (NoopListener) OnGroupSearchResults([]wire.Group)             {}
func (NoopListener) OnTimelineUpdated(string, []wire.Message)      {}
func (NoopListener) OnGroupInvite(string, string, string)          {}
func (NoopListener) OnJoinGroupRequest(string, string, string)     {}
func (NoopListener) OnRequestFailed(string, error)                 {}
