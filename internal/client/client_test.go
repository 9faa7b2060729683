package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anonchat/cli/internal/clock/clocktest"
	"github.com/anonchat/cli/internal/config"
	"github.com/anonchat/cli/internal/request"
	"github.com/anonchat/cli/internal/websocket"
	"github.com/anonchat/cli/internal/wire"
)

// The correlator uses the session as its transport; keep that assignment
// checked at compile time.
var _ request.Transport = (*websocket.Session)(nil)

const waitTimeout = 2 * time.Second

type emission struct {
	event   string
	payload map[string]interface{}
}

type fakeConn struct {
	emitted chan emission
}

func (c *fakeConn) Emit(event string, payload map[string]interface{}) error {
	c.emitted <- emission{event: event, payload: payload}
	return nil
}

func (c *fakeConn) Disconnect() {}

type fakeDialer struct {
	mu      sync.Mutex
	sink    websocket.EventSink
	emitted chan emission
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{emitted: make(chan emission, 64)}
}

func (d *fakeDialer) Dial(sink websocket.EventSink) (websocket.Conn, error) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
	return &fakeConn{emitted: d.emitted}, nil
}

func (d *fakeDialer) currentSink() websocket.EventSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

// push delivers a server event the way the socket layer would.
func (d *fakeDialer) push(event string, payload map[string]interface{}) {
	d.currentSink().HandleEvent(event, payload)
}

// respond answers the next emitted request, echoing its requestId.
func (d *fakeDialer) respond(t *testing.T, requestEvent, responseEvent string, payload map[string]interface{}) emission {
	t.Helper()
	em := d.nextEmission(t)
	require.Equal(t, requestEvent, em.event)
	resp := map[string]interface{}{}
	for k, v := range payload {
		resp[k] = v
	}
	resp["requestId"] = em.payload["requestId"]
	d.push(responseEvent, resp)
	return em
}

func (d *fakeDialer) nextEmission(t *testing.T) emission {
	t.Helper()
	select {
	case em := <-d.emitted:
		return em
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for emission")
		return emission{}
	}
}

func (d *fakeDialer) requireNoEmission(t *testing.T) {
	t.Helper()
	select {
	case em := <-d.emitted:
		t.Fatalf("unexpected emission %q", em.event)
	case <-time.After(50 * time.Millisecond):
	}
}

type timelineUpdate struct {
	chatID   string
	messages []wire.Message
}

type failure struct {
	operation string
	err       error
}

type recordingListener struct {
	connected chan struct{}
	identity  chan [2]string
	friends   chan []wire.Friend
	chats     chan []wire.Chat
	pending   chan []wire.PendingFriend
	users     chan []wire.User
	groups    chan []wire.Group
	timeline  chan timelineUpdate
	invites   chan [3]string
	joinReqs  chan [3]string
	failures  chan failure
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		connected: make(chan struct{}, 16),
		identity:  make(chan [2]string, 16),
		friends:   make(chan []wire.Friend, 16),
		chats:     make(chan []wire.Chat, 16),
		pending:   make(chan []wire.PendingFriend, 16),
		users:     make(chan []wire.User, 16),
		groups:    make(chan []wire.Group, 16),
		timeline:  make(chan timelineUpdate, 16),
		invites:   make(chan [3]string, 16),
		joinReqs:  make(chan [3]string, 16),
		failures:  make(chan failure, 16),
	}
}

func (r *recordingListener) OnConnected()            { r.connected <- struct{}{} }
func (r *recordingListener) OnDisconnected(string)   {}
func (r *recordingListener) OnReconnectGaveUp()      {}
func (r *recordingListener) OnIdentityUpdated(uid, nickname string) {
	r.identity <- [2]string{uid, nickname}
}
func (r *recordingListener) OnFriendsUpdated(friends []wire.Friend) { r.friends <- friends }
func (r *recordingListener) OnChatsUpdated(chats []wire.Chat)       { r.chats <- chats }
func (r *recordingListener) OnPendingRequestsUpdated(pending []wire.PendingFriend) {
	r.pending <- pending
}
func (r *recordingListener) OnUserSearchResults(users []wire.User)    { r.users <- users }
func (r *recordingListener) OnGroupSearchResults(groups []wire.Group) { r.groups <- groups }
func (r *recordingListener) OnTimelineUpdated(chatID string, messages []wire.Message) {
	r.timeline <- timelineUpdate{chatID: chatID, messages: messages}
}
func (r *recordingListener) OnGroupInvite(groupID, groupName, fromUID string) {
	r.invites <- [3]string{groupID, groupName, fromUID}
}
func (r *recordingListener) OnJoinGroupRequest(groupID, uid, nickname string) {
	r.joinReqs <- [3]string{groupID, uid, nickname}
}
func (r *recordingListener) OnRequestFailed(operation string, err error) {
	r.failures <- failure{operation: operation, err: err}
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func requireQuiet[T any](t *testing.T, ch chan T, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestClient(t *testing.T) (*Client, *fakeDialer, *recordingListener, *clocktest.FakeClock) {
	t.Helper()
	cfg := &config.Config{
		ServerURL:            "http://test.invalid",
		PreferWebsocket:      true,
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   time.Millisecond,
		RequestTimeout:       time.Second,
		MaxRequestRetries:    3,
		LogLevel:             "error",
	}
	dialer := newFakeDialer()
	listener := newRecordingListener()
	clk := clocktest.NewFakeClock(time.UnixMilli(1000))
	c := New(cfg, listener, WithDialer(dialer), WithClock(clk))
	t.Cleanup(c.Close)

	c.Connect()
	dialer.currentSink().HandleConnect()
	waitFor(t, listener.connected, "connected callback")
	return c, dialer, listener, clk
}

// signIn registers an identity so operations that stamp the local uid into
// their payloads have one.
func signIn(t *testing.T, c *Client, dialer *fakeDialer, listener *recordingListener, uid, nickname string) {
	t.Helper()
	c.Register(nickname)
	dialer.respond(t, wire.EventRegister, wire.EventRegisterResponse, map[string]interface{}{
		"success": true, "uid": uid, "nickname": nickname,
	})
	waitFor(t, listener.identity, "identity callback")
}

func TestRegisterStoresIdentity(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.Register("alice")

	em := dialer.respond(t, wire.EventRegister, wire.EventRegisterResponse, map[string]interface{}{
		"success":  true,
		"uid":      "u1",
		"nickname": "alice",
	})
	require.Equal(t, "alice", em.payload["nickname"])
	require.NotEmpty(t, em.payload["requestId"])
	require.Contains(t, em.payload, "deviceInfo")

	id := waitFor(t, listener.identity, "identity callback")
	require.Equal(t, [2]string{"u1", "alice"}, id)

	uid, nickname := c.Identity()
	require.Equal(t, "u1", uid)
	require.Equal(t, "alice", nickname)
}

func TestLoginRejectionSurfacesFailure(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.Login("no-such-uid")
	dialer.respond(t, wire.EventLogin, wire.EventLoginResponse, map[string]interface{}{
		"success": false,
		"message": "unknown uid",
	})

	f := waitFor(t, listener.failures, "failure callback")
	require.Equal(t, "login", f.operation)
	require.True(t, errors.Is(f.err, ErrRejected))
	require.Contains(t, f.err.Error(), "unknown uid")

	uid, _ := c.Identity()
	require.Empty(t, uid)
}

func TestLoadFriendListReplacesRoster(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.LoadFriendList()
	dialer.respond(t, wire.EventGetFriendList, wire.EventGetFriendListResponse, map[string]interface{}{
		"success": true,
		"friends": []interface{}{
			map[string]interface{}{"uid": "u1", "nickname": "alice"},
			map[string]interface{}{"uid": "u1", "nickname": "alice-dup"},
			map[string]interface{}{"uid": "u2", "nickname": "bob"},
		},
	})

	friends := waitFor(t, listener.friends, "friends callback")
	require.Equal(t, []wire.Friend{
		{UID: "u1", Nickname: "alice"},
		{UID: "u2", Nickname: "bob"},
	}, friends)
	require.Equal(t, friends, c.Friends())
}

func TestSearchUsersDeduplicates(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.SearchUsers("ali")
	dialer.respond(t, wire.EventSearchUsers, wire.EventSearchUsersResponse, map[string]interface{}{
		"success": true,
		"users": []interface{}{
			map[string]interface{}{"uid": "u1", "nickname": "alice"},
			map[string]interface{}{"uid": "u1", "nickname": "alice-again"},
		},
	})

	users := waitFor(t, listener.users, "users callback")
	require.Equal(t, []wire.User{{UID: "u1", Nickname: "alice"}}, users)
}

func TestFriendRequestPushAndAccept(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	dialer.push(wire.EventFriendRequest, map[string]interface{}{
		"fromUid": "u9", "fromNickname": "carol",
	})
	pending := waitFor(t, listener.pending, "pending callback")
	require.Equal(t, []wire.PendingFriend{{UID: "u9", Nickname: "carol"}}, pending)

	// Same uid again must not produce another update.
	dialer.push(wire.EventFriendRequest, map[string]interface{}{
		"fromUid": "u9", "fromNickname": "carol",
	})
	requireQuiet(t, listener.pending, "pending callback")

	c.AcceptFriendRequest("u9")
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventAcceptFriendRequest, em.event)
	require.Equal(t, "u9", em.payload["fromUid"])
	require.Equal(t, "u1", em.payload["toUid"])

	pending = waitFor(t, listener.pending, "pending callback after accept")
	require.Empty(t, pending)
}

func TestFriendRequestRejectedPushClearsPending(t *testing.T) {
	_, dialer, listener, _ := newTestClient(t)

	dialer.push(wire.EventFriendRequest, map[string]interface{}{
		"fromUid": "u9", "fromNickname": "carol",
	})
	waitFor(t, listener.pending, "pending callback")

	dialer.push(wire.EventFriendRequestRejected, map[string]interface{}{
		"fromUid": "u9",
	})
	pending := waitFor(t, listener.pending, "pending callback after reject")
	require.Empty(t, pending)
}

func TestFriendRequestAcceptedPushAddsFriendAndChat(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	dialer.push(wire.EventFriendRequestAccepted, map[string]interface{}{
		"fromUid": "u2", "fromNickname": "bob", "chatId": "c1",
	})

	friends := waitFor(t, listener.friends, "friends callback")
	require.Equal(t, []wire.Friend{{UID: "u2", Nickname: "bob"}}, friends)

	chats := waitFor(t, listener.chats, "chats callback")
	require.Equal(t, []wire.Chat{{ChatID: "c1", Type: wire.ChatTypePrivate, Name: "bob"}}, chats)
	require.True(t, c.roster.HasChat("c1"))
}

func TestOpenChatLoadsHistory(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.OpenChat("c1")
	em := dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success": true,
		"messages": []interface{}{
			map[string]interface{}{"fromUid": "u2", "nickname": "bob", "message": "later", "timestamp": float64(300)},
			map[string]interface{}{"fromUid": "u2", "nickname": "bob", "message": "earlier", "timestamp": float64(100)},
		},
	})
	require.Equal(t, "c1", em.payload["chatId"])

	update := waitFor(t, listener.timeline, "timeline callback")
	require.Equal(t, "c1", update.chatID)
	require.Len(t, update.messages, 2)
	require.Equal(t, "earlier", update.messages[0].Text)
	require.Equal(t, "later", update.messages[1].Text)
}

func TestSendMessageLocalEchoAndEmit(t *testing.T) {
	c, dialer, listener, clk := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")
	clk.Set(time.UnixMilli(5000))

	c.OpenChat("c1")
	dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success":  true,
		"messages": []interface{}{},
	})
	waitFor(t, listener.timeline, "history timeline callback")

	c.SendMessage("hello")

	update := waitFor(t, listener.timeline, "echo timeline callback")
	require.Len(t, update.messages, 1)
	require.Equal(t, "hello", update.messages[0].Text)
	require.Equal(t, int64(5000), update.messages[0].Timestamp)

	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventChatMessage, em.event)
	require.Equal(t, "c1", em.payload["chatId"])
	require.Equal(t, "u1", em.payload["fromUid"])
	require.Equal(t, "hello", em.payload["message"])
	require.Equal(t, int64(5000), em.payload["timestamp"])
}

func TestSendMessageUsesGroupEventForGroupChats(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.LoadChatList()
	dialer.respond(t, wire.EventGetChatList, wire.EventGetChatListResponse, map[string]interface{}{
		"success": true,
		"chats": []interface{}{
			map[string]interface{}{"chatId": "g1", "type": "group", "name": "gophers"},
		},
	})
	waitFor(t, listener.chats, "chats callback")

	c.OpenChat("g1")
	dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success":  true,
		"messages": []interface{}{},
	})
	waitFor(t, listener.timeline, "history timeline callback")

	c.SendMessage("hi all")

	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventGroupMessage, em.event)
}

func TestPushMessageForOtherChatIsIgnored(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)

	c.OpenChat("c1")
	dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success":  true,
		"messages": []interface{}{},
	})
	waitFor(t, listener.timeline, "history timeline callback")

	dialer.push(wire.EventChatMessage, map[string]interface{}{
		"chatId": "c2", "fromUid": "u2", "message": "wrong room", "timestamp": float64(10),
	})
	requireQuiet(t, listener.timeline, "timeline callback")

	dialer.push(wire.EventChatMessage, map[string]interface{}{
		"chatId": "c1", "fromUid": "u2", "message": "right room", "timestamp": float64(10),
	})
	update := waitFor(t, listener.timeline, "timeline callback")
	require.Equal(t, "right room", update.messages[0].Text)
}

func TestLeaveGroupEmitsOncePerOpenChat(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	c.OpenChat("g1")
	dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success":  true,
		"messages": []interface{}{},
	})
	waitFor(t, listener.timeline, "history timeline callback")

	c.LeaveGroup("g1")
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventLeaveGroup, em.event)
	require.Equal(t, "g1", em.payload["groupId"])
	require.Equal(t, "u1", em.payload["uid"])

	c.LeaveGroup("g1")
	dialer.requireNoEmission(t)

	// Reopening the chat arms the leave emission again.
	c.OpenChat("g1")
	dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success":  true,
		"messages": []interface{}{},
	})
	waitFor(t, listener.timeline, "history timeline callback")

	c.LeaveGroup("g1")
	em = dialer.nextEmission(t)
	require.Equal(t, wire.EventLeaveGroup, em.event)
}

func TestGroupInvitePushAndAcceptEcho(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	dialer.push(wire.EventInviteToGroup, map[string]interface{}{
		"groupId": "g1", "groupName": "gophers", "fromUid": "u2", "fromNickname": "bob",
	})

	invite := waitFor(t, listener.invites, "invite callback")
	require.Equal(t, [3]string{"g1", "gophers", "u2"}, invite)

	c.AcceptGroupInvite(invite[0], invite[2])
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventAcceptGroupInvite, em.event)
	require.Equal(t, "g1", em.payload["groupId"])
	require.Equal(t, "u2", em.payload["fromUid"])
	require.Equal(t, "u1", em.payload["toUid"])
}

func TestJoinGroupRequestPushSurfacesToListener(t *testing.T) {
	_, dialer, listener, _ := newTestClient(t)

	dialer.push(wire.EventJoinGroupRequest, map[string]interface{}{
		"groupId": "grp1", "fromUid": "u5", "fromNickname": "dave",
	})

	req := waitFor(t, listener.joinReqs, "join request callback")
	require.Equal(t, [3]string{"grp1", "u5", "dave"}, req)
}

func TestRetriesExhaustedSurfacesToListener(t *testing.T) {
	cfg := &config.Config{
		ServerURL:            "http://test.invalid",
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   time.Millisecond,
		RequestTimeout:       10 * time.Millisecond,
		MaxRequestRetries:    2,
		LogLevel:             "error",
	}
	dialer := newFakeDialer()
	listener := newRecordingListener()
	c := New(cfg, listener, WithDialer(dialer))
	t.Cleanup(c.Close)
	c.Connect()
	dialer.currentSink().HandleConnect()
	waitFor(t, listener.connected, "connected callback")

	c.SearchUsers("nobody answers")

	// Two emissions, then the chain fails.
	dialer.nextEmission(t)
	dialer.nextEmission(t)
	f := waitFor(t, listener.failures, "failure callback")
	require.Equal(t, "searchUsers", f.operation)
	require.True(t, errors.Is(f.err, request.ErrRetriesExhausted))
}

func TestUpdateNicknameAppliesLocally(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	c.UpdateNickname("alice2")
	em := dialer.respond(t, wire.EventUpdateNickname, wire.EventUpdateNicknameResponse, map[string]interface{}{
		"success": true, "nickname": "alice2",
	})
	require.Equal(t, "u1", em.payload["uid"])

	id := waitFor(t, listener.identity, "identity callback")
	require.Equal(t, [2]string{"u1", "alice2"}, id)
}

func TestSystemGroupMessageMergesIntoTimeline(t *testing.T) {
	c, dialer, listener, clk := newTestClient(t)

	c.OpenChat("g1")
	dialer.respond(t, wire.EventGetChatHistory, wire.EventGetChatHistoryResponse, map[string]interface{}{
		"success":  true,
		"messages": []interface{}{},
	})
	waitFor(t, listener.timeline, "history timeline callback")
	clk.Set(time.UnixMilli(7000))

	// System notices carry no fromUid, only a type marker and text.
	dialer.push(wire.EventGroupMessage, map[string]interface{}{
		"chatId": "g1", "type": "system", "message": "bob left the group",
	})

	update := waitFor(t, listener.timeline, "timeline callback")
	require.Len(t, update.messages, 1)
	require.Equal(t, wire.SystemSenderUID, update.messages[0].FromUID)
	require.Equal(t, "bob left the group", update.messages[0].Text)
	require.Equal(t, int64(7000), update.messages[0].Timestamp)

	// A system notice for another chat is dropped.
	dialer.push(wire.EventGroupMessage, map[string]interface{}{
		"chatId": "g2", "type": "system", "message": "elsewhere",
	})
	requireQuiet(t, listener.timeline, "timeline callback")
}

func TestFriendRequestSendsFromAndToUid(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	c.SendFriendRequest("u2")
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventFriendRequest, em.event)
	require.Equal(t, "u1", em.payload["fromUid"])
	require.Equal(t, "u2", em.payload["toUid"])
	require.NotContains(t, em.payload, "targetUid")
}

func TestCreateGroupChatSendsNamePasswordAndMembers(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	c.CreateGroupChat("gophers", "s3cret")
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventCreateGroupChat, em.event)
	require.Equal(t, "gophers", em.payload["groupName"])
	require.Equal(t, "s3cret", em.payload["password"])
	require.Equal(t, []interface{}{"u1"}, em.payload["memberUids"])
}

func TestJoinGroupSendsPassword(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	c.JoinGroup("grp1", "s3cret")
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventJoinGroupRequest, em.event)
	require.Equal(t, "grp1", em.payload["groupId"])
	require.Equal(t, "s3cret", em.payload["password"])
	require.Equal(t, "u1", em.payload["fromUid"])
}

func TestInviteToGroupSendsFriendUids(t *testing.T) {
	c, dialer, listener, _ := newTestClient(t)
	signIn(t, c, dialer, listener, "u1", "alice")

	c.InviteToGroup("grp1", "u2")
	em := dialer.nextEmission(t)
	require.Equal(t, wire.EventInviteToGroup, em.event)
	require.Equal(t, "grp1", em.payload["groupId"])
	require.Equal(t, "u1", em.payload["fromUid"])
	require.Equal(t, []interface{}{"u2"}, em.payload["friendUids"])
}

func TestCloseMakesIdentityUnavailable(t *testing.T) {
	cfg := &config.Config{
		ServerURL:            "http://test.invalid",
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   time.Millisecond,
		RequestTimeout:       time.Second,
		MaxRequestRetries:    3,
		LogLevel:             "error",
	}
	dialer := newFakeDialer()
	c := New(cfg, newRecordingListener(), WithDialer(dialer))
	c.Close()

	uid, nickname := c.Identity()
	require.Empty(t, uid)
	require.Empty(t, nickname)
}
