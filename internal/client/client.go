// Package client is the high-level chat client: it wires the websocket
// session, the request correlator, the roster and the open-chat timeline
// together and exposes the operations a UI needs.
package client

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/anonchat/cli/internal/clock"
	"github.com/anonchat/cli/internal/config"
	"github.com/anonchat/cli/internal/request"
	"github.com/anonchat/cli/internal/roster"
	"github.com/anonchat/cli/internal/timeline"
	"github.com/anonchat/cli/internal/websocket"
	"github.com/anonchat/cli/internal/wire"
)

// ErrRejected marks a request the server answered with success=false. The
// wrapped message is the server's rejection reason.
var ErrRejected = errors.New("rejected by server")

// Client owns the transport, correlation and reconciliation layers.
//
// All state mutations run on a single core goroutine; listener callbacks run
// on a second goroutine so a slow listener never stalls the core. Exported
// methods are safe to call from any goroutine and return immediately, with
// outcomes surfacing through the Listener.
type Client struct {
	cfg        *config.Config
	session    *websocket.Session
	correlator *request.Correlator
	roster     *roster.Roster
	clk        clock.Clock

	core      *dispatcher
	callbacks *dispatcher

	// Fields below are owned by the core dispatcher goroutine.
	listener   Listener
	uid        string
	nickname   string
	open       *timeline.Timeline
	leftGroups map[string]bool
}

// Option adjusts a Client at construction time.
type Option func(*Client)

// WithClock replaces the wall clock used to stamp local message echoes.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

// WithDialer replaces the socket.io dialer, for tests.
func WithDialer(d websocket.Dialer) Option {
	return func(c *Client) {
		c.session = websocket.NewSession(websocket.SessionConfig{
			Dialer:               d,
			MaxReconnectAttempts: c.cfg.MaxReconnectAttempts,
			ReconnectBaseDelay:   c.cfg.ReconnectBaseDelay,
			Observer:             (*sessionObserver)(c),
		})
	}
}

// New creates a Client from cfg. Call Connect to bring the connection up.
func New(cfg *config.Config, listener Listener, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		roster:     roster.New(),
		clk:        clock.RealClock{},
		core:       newDispatcher(0),
		callbacks:  newDispatcher(0),
		listener:   listener,
		leftGroups: make(map[string]bool),
	}
	dialer := websocket.NewSocketIODialer(cfg.ServerURL, cfg.PreferWebsocket, wire.InboundEvents())
	c.session = websocket.NewSession(websocket.SessionConfig{
		Dialer:               dialer,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		Observer:             (*sessionObserver)(c),
	})
	for _, opt := range opts {
		opt(c)
	}
	c.correlator = request.New(request.Config{
		Transport:   c.session,
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxRequestRetries,
	})
	c.subscribePushEvents()
	return c
}

// sessionObserver adapts the Client to websocket.Observer without exporting
// the lifecycle methods on Client itself.
type sessionObserver Client

func (o *sessionObserver) OnConnected() {
	c := (*Client)(o)
	logrus.Info("connected")
	c.notify(func(l Listener) { l.OnConnected() })
}

func (o *sessionObserver) OnDisconnected(reason string) {
	c := (*Client)(o)
	logrus.WithField("reason", reason).Warn("disconnected")
	c.notify(func(l Listener) { l.OnDisconnected(reason) })
}

func (o *sessionObserver) OnReconnectGaveUp() {
	c := (*Client)(o)
	logrus.Error("reconnection gave up")
	c.notify(func(l Listener) { l.OnReconnectGaveUp() })
}

// Connect brings the connection up. After reconnection gave up, Connect
// restarts it with a fresh attempt budget.
func (c *Client) Connect() {
	c.session.Connect()
}

// Close tears the connection down and stops both dispatcher goroutines.
// Already queued work is drained first; the client cannot be reused after.
func (c *Client) Close() {
	c.session.Close()
	c.core.shutdown()
	c.callbacks.shutdown()
}

// Identity returns the local uid and nickname, empty until a register or
// login succeeded.
func (c *Client) Identity() (uid, nickname string) {
	v, err := c.core.call(func() (interface{}, error) {
		return [2]string{c.uid, c.nickname}, nil
	})
	if err != nil {
		return "", ""
	}
	id := v.([2]string)
	return id[0], id[1]
}

// Friends returns the current friend list.
func (c *Client) Friends() []wire.Friend { return c.roster.Friends() }

// Chats returns the current chat list.
func (c *Client) Chats() []wire.Chat { return c.roster.Chats() }

// PendingRequests returns the friend requests awaiting a decision.
func (c *Client) PendingRequests() []wire.PendingFriend { return c.roster.Pending() }

// notify hands a listener callback to the callbacks dispatcher.
func (c *Client) notify(fn func(Listener)) {
	l := c.listener
	if l == nil {
		return
	}
	_ = c.callbacks.do(func() { fn(l) })
}

// deviceInfo describes the local device to the server, mirroring what the
// mobile clients send.
func deviceInfo() map[string]interface{} {
	return map[string]interface{}{
		"platform": runtime.GOOS,
		"model":    "anonchat-cli",
	}
}

// request runs a correlated exchange and routes the outcome onto the core
// goroutine. onSuccess only runs for payloads with success != false; failures
// and exhausted retries go to the listener as OnRequestFailed.
func (c *Client) request(operation, requestEvent, responseEvent string, payload map[string]interface{}, onSuccess func(resp map[string]interface{})) {
	c.correlator.Request(requestEvent, responseEvent, payload, func(resp map[string]interface{}, err error) {
		_ = c.core.do(func() {
			if err != nil {
				c.notify(func(l Listener) { l.OnRequestFailed(operation, err) })
				return
			}
			if !wire.OptBool(resp, "success", true) {
				msg := wire.OptString(resp, "message", "unknown error")
				logrus.WithFields(logrus.Fields{
					"operation": operation,
					"message":   msg,
				}).Warn("request rejected")
				c.notify(func(l Listener) {
					l.OnRequestFailed(operation, fmt.Errorf("%w: %s", ErrRejected, msg))
				})
				return
			}
			if onSuccess != nil {
				onSuccess(resp)
			}
		})
	})
}

// Register creates a new anonymous identity with the given nickname.
func (c *Client) Register(nickname string) {
	c.request("register", wire.EventRegister, wire.EventRegisterResponse, map[string]interface{}{
		"nickname":   nickname,
		"deviceInfo": deviceInfo(),
	}, func(resp map[string]interface{}) {
		c.uid = wire.OptString(resp, "uid", "")
		c.nickname = wire.OptString(resp, "nickname", nickname)
		logrus.WithField("uid", c.uid).Info("registered")
		c.notify(func(l Listener) { l.OnIdentityUpdated(c.uid, c.nickname) })
	})
}

// Login resumes an existing identity by uid.
func (c *Client) Login(uid string) {
	c.request("login", wire.EventLogin, wire.EventLoginResponse, map[string]interface{}{
		"uid":        uid,
		"deviceInfo": deviceInfo(),
	}, func(resp map[string]interface{}) {
		c.uid = uid
		c.nickname = wire.OptString(resp, "nickname", "")
		logrus.WithField("uid", c.uid).Info("logged in")
		c.notify(func(l Listener) { l.OnIdentityUpdated(c.uid, c.nickname) })
	})
}

// UpdateNickname changes the local user's nickname. The local identity only
// updates once the server confirms.
func (c *Client) UpdateNickname(nickname string) {
	_ = c.core.do(func() {
		c.request("updateNickname", wire.EventUpdateNickname, wire.EventUpdateNicknameResponse, map[string]interface{}{
			"uid":      c.uid,
			"nickname": nickname,
		}, func(resp map[string]interface{}) {
			c.nickname = wire.OptString(resp, "nickname", nickname)
			c.notify(func(l Listener) { l.OnIdentityUpdated(c.uid, c.nickname) })
		})
	})
}

// SendFriendRequest asks the user with the given uid to become a friend.
func (c *Client) SendFriendRequest(uid string) {
	_ = c.core.do(func() {
		c.request("friendRequest", wire.EventFriendRequest, wire.EventFriendRequestResponse, map[string]interface{}{
			"fromUid": c.uid,
			"toUid":   uid,
		}, nil)
	})
}

// SendFriendRequestByNickname asks a user found by nickname to become a
// friend.
func (c *Client) SendFriendRequestByNickname(nickname string) {
	_ = c.core.do(func() {
		c.request("friendRequestByNickname", wire.EventFriendRequestByNickname, wire.EventFriendRequestResponse, map[string]interface{}{
			"fromUid":  c.uid,
			"nickname": nickname,
		}, nil)
	})
}

// AcceptFriendRequest accepts a pending friend request from uid. The friend
// and chat entries arrive through the friendRequestAccepted push.
func (c *Client) AcceptFriendRequest(uid string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventAcceptFriendRequest, map[string]interface{}{
			"fromUid": uid,
			"toUid":   c.uid,
		})
		if c.roster.RemovePending(uid) {
			pending := c.roster.Pending()
			c.notify(func(l Listener) { l.OnPendingRequestsUpdated(pending) })
		}
	})
}

// RejectFriendRequest declines a pending friend request from uid.
func (c *Client) RejectFriendRequest(uid string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventRejectFriendRequest, map[string]interface{}{
			"fromUid": uid,
			"toUid":   c.uid,
		})
		if c.roster.RemovePending(uid) {
			pending := c.roster.Pending()
			c.notify(func(l Listener) { l.OnPendingRequestsUpdated(pending) })
		}
	})
}

// SearchUsers looks up users by nickname fragment.
func (c *Client) SearchUsers(query string) {
	c.request("searchUsers", wire.EventSearchUsers, wire.EventSearchUsersResponse, map[string]interface{}{
		"query": query,
	}, func(resp map[string]interface{}) {
		users := roster.DedupUsers(wire.ParseUsers(wire.Array(resp, "users")))
		c.notify(func(l Listener) { l.OnUserSearchResults(users) })
	})
}

// LoadFriendList requests a full friend list sync.
func (c *Client) LoadFriendList() {
	c.request("getFriendList", wire.EventGetFriendList, wire.EventGetFriendListResponse, map[string]interface{}{},
		func(resp map[string]interface{}) {
			friends := c.roster.ReplaceFriends(wire.ParseFriends(wire.Array(resp, "friends")))
			c.notify(func(l Listener) { l.OnFriendsUpdated(friends) })
		})
}

// LoadChatList requests a full chat list sync.
func (c *Client) LoadChatList() {
	c.request("getChatList", wire.EventGetChatList, wire.EventGetChatListResponse, map[string]interface{}{},
		func(resp map[string]interface{}) {
			chats := c.roster.ReplaceChats(wire.ParseChats(wire.Array(resp, "chats")))
			c.notify(func(l Listener) { l.OnChatsUpdated(chats) })
		})
}

// StartFriendChat asks the server to open a private chat with a friend. The
// chat entry arrives through the chat list.
func (c *Client) StartFriendChat(friendUID string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventStartFriendChat, map[string]interface{}{
			"fromUid": c.uid,
			"toUid":   friendUID,
		})
	})
}

// CreateGroupChat creates a new group chat with the given name. An empty
// password makes the group joinable without one.
func (c *Client) CreateGroupChat(name, password string) {
	_ = c.core.do(func() {
		c.request("createGroupChat", wire.EventCreateGroupChat, wire.EventCreateGroupChatResponse, map[string]interface{}{
			"groupName":  name,
			"password":   password,
			"memberUids": []interface{}{c.uid},
		}, func(resp map[string]interface{}) {
			chatID := wire.OptString(resp, "chatId", "")
			if chatID == "" {
				// The chat entry arrives through the groupChatCreated push.
				return
			}
			added := c.roster.AddChat(wire.Chat{
				ChatID: chatID,
				Type:   wire.ChatTypeGroup,
				Name:   wire.OptString(resp, "name", name),
			})
			if added {
				chats := c.roster.Chats()
				c.notify(func(l Listener) { l.OnChatsUpdated(chats) })
			}
		})
	})
}

// SearchGroups looks up joinable groups by name fragment.
func (c *Client) SearchGroups(query string) {
	c.request("searchGroups", wire.EventSearchGroups, wire.EventSearchGroupsResponse, map[string]interface{}{
		"query": query,
	}, func(resp map[string]interface{}) {
		groups := roster.DedupGroups(wire.ParseGroups(wire.Array(resp, "groups")))
		c.notify(func(l Listener) { l.OnGroupSearchResults(groups) })
	})
}

// JoinGroup asks to join a group, supplying its password when it has one.
// Admission arrives later through the joinGroupApproved push.
func (c *Client) JoinGroup(groupID, password string) {
	_ = c.core.do(func() {
		c.request("joinGroupRequest", wire.EventJoinGroupRequest, wire.EventJoinGroupResponse, map[string]interface{}{
			"groupId":  groupID,
			"password": password,
			"fromUid":  c.uid,
		}, nil)
	})
}

// ApproveJoinGroup admits the user who asked to join a group.
func (c *Client) ApproveJoinGroup(groupID, uid string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventApproveJoinGroup, map[string]interface{}{
			"groupId": groupID,
			"fromUid": uid,
			"toUid":   c.uid,
		})
	})
}

// RejectJoinGroup declines a user's request to join a group.
func (c *Client) RejectJoinGroup(groupID, uid string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventRejectJoinGroup, map[string]interface{}{
			"groupId": groupID,
			"fromUid": uid,
			"toUid":   c.uid,
		})
	})
}

// InviteToGroup invites a friend into a group.
func (c *Client) InviteToGroup(groupID, uid string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventInviteToGroup, map[string]interface{}{
			"fromUid":    c.uid,
			"friendUids": []interface{}{uid},
			"groupId":    groupID,
		})
	})
}

// AcceptGroupInvite accepts a group invitation received from fromUID. The
// chat entry arrives through the chat list or a groupChatCreated push.
func (c *Client) AcceptGroupInvite(groupID, fromUID string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventAcceptGroupInvite, map[string]interface{}{
			"groupId": groupID,
			"fromUid": fromUID,
			"toUid":   c.uid,
		})
	})
}

// RejectGroupInvite declines a group invitation received from fromUID.
func (c *Client) RejectGroupInvite(groupID, fromUID string) {
	_ = c.core.do(func() {
		c.session.Send(wire.EventRejectGroupInvite, map[string]interface{}{
			"groupId": groupID,
			"fromUid": fromUID,
			"toUid":   c.uid,
		})
	})
}

// OpenChat makes chatID the open chat and requests its history. Messages for
// other chats are ignored while this chat is open.
func (c *Client) OpenChat(chatID string) {
	_ = c.core.do(func() {
		c.open = timeline.New(chatID, c.clk)
		delete(c.leftGroups, chatID)
	})
	c.request("getChatHistory", wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"chatId": chatID,
	}, func(resp map[string]interface{}) {
		if c.open == nil || c.open.ChatID() != chatID {
			return
		}
		c.open.ReplaceHistory(wire.ParseMessages(wire.Array(resp, "messages"), 0))
		messages := c.open.Messages()
		c.notify(func(l Listener) { l.OnTimelineUpdated(chatID, messages) })
	})
}

// CloseChat clears the open chat.
func (c *Client) CloseChat() {
	_ = c.core.do(func() {
		c.open = nil
	})
}

// SendMessage sends text to the open chat. The message appears in the
// timeline immediately, stamped with the local clock; the server's copy
// reaches other members with the authoritative timestamp.
func (c *Client) SendMessage(text string) {
	_ = c.core.do(func() {
		if c.open == nil {
			logrus.Warn("send message with no open chat, dropping")
			return
		}
		chatID := c.open.ChatID()
		event := wire.EventChatMessage
		for _, chat := range c.roster.Chats() {
			if chat.ChatID == chatID && chat.Type == wire.ChatTypeGroup {
				event = wire.EventGroupMessage
				break
			}
		}
		echo := c.open.AppendLocal(c.uid, c.nickname, text)
		messages := c.open.Messages()
		c.notify(func(l Listener) { l.OnTimelineUpdated(chatID, messages) })
		c.session.Send(event, map[string]interface{}{
			"chatId":    chatID,
			"fromUid":   c.uid,
			"message":   text,
			"timestamp": echo.Timestamp,
		})
	})
}

// LeaveGroup leaves the open group chat. The emission happens at most once
// per opened chat; repeated calls before reopening are no-ops.
func (c *Client) LeaveGroup(chatID string) {
	_ = c.core.do(func() {
		if c.leftGroups[chatID] {
			logrus.WithField("chat_id", chatID).Debug("leave already sent for this chat")
			return
		}
		c.leftGroups[chatID] = true
		c.session.Send(wire.EventLeaveGroup, map[string]interface{}{
			"groupId": chatID,
			"uid":     c.uid,
		})
		if c.open != nil && c.open.ChatID() == chatID {
			c.open = nil
		}
	})
}
