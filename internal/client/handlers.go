package client

import (
	"github.com/sirupsen/logrus"

	"github.com/anonchat/cli/internal/wire"
)

// subscribePushEvents wires the server-initiated events into the roster and
// the open-chat timeline. Handlers run on the session's delivery goroutine
// and immediately hop onto the core dispatcher.
func (c *Client) subscribePushEvents() {
	c.onCore(wire.EventFriendRequest, c.handleFriendRequest)
	c.onCore(wire.EventFriendRequestAccepted, c.handleFriendRequestAccepted)
	c.onCore(wire.EventFriendRequestRejected, c.handleFriendRequestRejected)
	c.onCore(wire.EventGroupChatCreated, c.handleGroupChatCreated)
	c.onCore(wire.EventJoinGroupApproved, c.handleGroupChatCreated)
	c.onCore(wire.EventChatMessage, c.handleChatMessage)
	c.onCore(wire.EventGroupMessage, c.handleChatMessage)
	c.onCore(wire.EventInviteToGroup, c.handleInviteToGroup)
	c.onCore(wire.EventJoinGroupRequest, c.handleJoinGroupRequest)
}

func (c *Client) onCore(event string, h func(payload map[string]interface{})) {
	c.session.Subscribe(event, func(payload map[string]interface{}) {
		_ = c.core.do(func() { h(payload) })
	})
}

func (c *Client) handleFriendRequest(payload map[string]interface{}) {
	uid := wire.OptString(payload, "fromUid", "")
	if uid == "" {
		logrus.Warn("friend request push without fromUid, dropping")
		return
	}
	added := c.roster.AddPending(wire.PendingFriend{
		UID:      uid,
		Nickname: wire.OptString(payload, "fromNickname", "Unknown"),
	})
	if !added {
		return
	}
	pending := c.roster.Pending()
	c.notify(func(l Listener) { l.OnPendingRequestsUpdated(pending) })
}

func (c *Client) handleFriendRequestAccepted(payload map[string]interface{}) {
	uid := wire.OptString(payload, "fromUid", "")
	if uid == "" {
		logrus.Warn("friend request accepted push without fromUid, dropping")
		return
	}
	if c.roster.AddFriend(wire.Friend{
		UID:      uid,
		Nickname: wire.OptString(payload, "fromNickname", "Unknown"),
	}) {
		friends := c.roster.Friends()
		c.notify(func(l Listener) { l.OnFriendsUpdated(friends) })
	}
	if chatID := wire.OptString(payload, "chatId", ""); chatID != "" {
		if c.roster.AddChat(wire.Chat{
			ChatID: chatID,
			Type:   wire.ChatTypePrivate,
			Name:   wire.OptString(payload, "fromNickname", "Unknown"),
		}) {
			chats := c.roster.Chats()
			c.notify(func(l Listener) { l.OnChatsUpdated(chats) })
		}
	}
	if c.roster.RemovePending(uid) {
		pending := c.roster.Pending()
		c.notify(func(l Listener) { l.OnPendingRequestsUpdated(pending) })
	}
}

func (c *Client) handleFriendRequestRejected(payload map[string]interface{}) {
	uid := wire.OptString(payload, "fromUid", "")
	if uid == "" {
		return
	}
	if c.roster.RemovePending(uid) {
		pending := c.roster.Pending()
		c.notify(func(l Listener) { l.OnPendingRequestsUpdated(pending) })
	}
}

// handleGroupChatCreated covers both groupChatCreated and joinGroupApproved:
// either way a group chat becomes visible to the local user.
func (c *Client) handleGroupChatCreated(payload map[string]interface{}) {
	chatID := wire.OptString(payload, "chatId", "")
	if chatID == "" {
		logrus.Warn("group chat push without chatId, dropping")
		return
	}
	added := c.roster.AddChat(wire.Chat{
		ChatID: chatID,
		Type:   wire.ChatTypeGroup,
		Name:   wire.OptString(payload, "name", "Unknown Group"),
	})
	if !added {
		return
	}
	chats := c.roster.Chats()
	c.notify(func(l Listener) { l.OnChatsUpdated(chats) })
}

// handleChatMessage covers chatMessage and groupMessage pushes. Messages for
// chats other than the open one are dropped here; they reappear through chat
// history when their chat is opened. Group pushes with type "system" carry no
// fromUid and merge into the timeline under the reserved system sender.
func (c *Client) handleChatMessage(payload map[string]interface{}) {
	if c.open == nil {
		return
	}
	chatID := wire.OptString(payload, "chatId", "")
	if wire.OptString(payload, "type", "user") == "system" {
		if chatID != c.open.ChatID() {
			return
		}
		c.open.AppendSystem(wire.OptString(payload, "message", ""), c.clk.Now().UnixMilli())
		messages := c.open.Messages()
		c.notify(func(l Listener) { l.OnTimelineUpdated(chatID, messages) })
		return
	}
	msg, ok := wire.ParseMessage(payload, c.clk.Now().UnixMilli())
	if !ok {
		logrus.WithField("chat_id", chatID).Warn("message push without fromUid, dropping")
		return
	}
	if !c.open.Ingest(chatID, msg) {
		return
	}
	messages := c.open.Messages()
	c.notify(func(l Listener) { l.OnTimelineUpdated(chatID, messages) })
}

func (c *Client) handleInviteToGroup(payload map[string]interface{}) {
	groupID := wire.OptString(payload, "groupId", "")
	if groupID == "" {
		return
	}
	groupName := wire.OptString(payload, "groupName", "Unknown Group")
	fromUID := wire.OptString(payload, "fromUid", "")
	c.notify(func(l Listener) { l.OnGroupInvite(groupID, groupName, fromUID) })
}

func (c *Client) handleJoinGroupRequest(payload map[string]interface{}) {
	groupID := wire.OptString(payload, "groupId", "")
	uid := wire.OptString(payload, "fromUid", "")
	if groupID == "" || uid == "" {
		return
	}
	nickname := wire.OptString(payload, "fromNickname", "Unknown")
	c.notify(func(l Listener) { l.OnJoinGroupRequest(groupID, uid, nickname) })
}
