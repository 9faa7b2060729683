package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anonchat/cli/internal/notify"
	"github.com/anonchat/cli/internal/storage"
	"github.com/anonchat/cli/internal/wire"
)

// consoleListener renders client events to stdout. Callbacks already arrive
// serialized on the client's callback goroutine, so plain Printf is fine.
type consoleListener struct {
	homeDir  string
	notifier *notify.Pushover
}

// push forwards an event to Pushover when configured. Delivery is best
// effort and must not block the callback goroutine.
func (l *consoleListener) push(ev notify.Event) {
	if l.notifier == nil {
		return
	}
	go func() {
		if err := l.notifier.Notify(context.Background(), ev); err != nil {
			logrus.WithError(err).Warn("pushover notification failed")
		}
	}()
}

func (l *consoleListener) OnConnected() {
	fmt.Println("* connected")
}

func (l *consoleListener) OnDisconnected(reason string) {
	fmt.Printf("* disconnected (%s), reconnecting...\n", reason)
}

func (l *consoleListener) OnReconnectGaveUp() {
	fmt.Println("* reconnection gave up, use /reconnect to retry")
}

func (l *consoleListener) OnIdentityUpdated(uid, nickname string) {
	fmt.Printf("* signed in as %s (uid %s)\n", nickname, uid)
	if err := storage.SaveIdentity(l.homeDir, storage.Identity{UID: uid, Nickname: nickname}); err != nil {
		logrus.WithError(err).Warn("failed to persist identity")
	}
}

func (l *consoleListener) OnFriendsUpdated(friends []wire.Friend) {
	fmt.Printf("* friends (%d):\n", len(friends))
	for _, f := range friends {
		fmt.Printf("    %s (uid %s)\n", f.Nickname, f.UID)
	}
}

func (l *consoleListener) OnChatsUpdated(chats []wire.Chat) {
	fmt.Printf("* chats (%d):\n", len(chats))
	for _, c := range chats {
		line := fmt.Sprintf("    [%s] %s (%s)", c.ChatID, c.Name, c.Type)
		if c.LastMessage != "" {
			line += " - " + c.LastMessage
		}
		fmt.Println(line)
	}
}

func (l *consoleListener) OnPendingRequestsUpdated(pending []wire.PendingFriend) {
	fmt.Printf("* pending friend requests (%d):\n", len(pending))
	for _, p := range pending {
		fmt.Printf("    %s (uid %s), /accept or /reject\n", p.Nickname, p.UID)
		l.push(notify.Event{
			Title: "Friend request",
			Body:  fmt.Sprintf("%s wants to be your friend", p.Nickname),
			Key:   "friend:" + p.UID,
		})
	}
}

func (l *consoleListener) OnUserSearchResults(users []wire.User) {
	fmt.Printf("* users found (%d):\n", len(users))
	for _, u := range users {
		fmt.Printf("    %s (uid %s)\n", u.Nickname, u.UID)
	}
}

func (l *consoleListener) OnGroupSearchResults(groups []wire.Group) {
	fmt.Printf("* groups found (%d):\n", len(groups))
	for _, g := range groups {
		fmt.Printf("    %s (group %s, chat %s)\n", g.Name, g.GroupID, g.ChatID)
	}
}

func (l *consoleListener) OnTimelineUpdated(chatID string, messages []wire.Message) {
	fmt.Printf("* chat %s:\n", chatID)
	for _, m := range messages {
		ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
		if m.FromUID == wire.SystemSenderUID {
			fmt.Printf("    %s [%s]\n", ts, m.Text)
			continue
		}
		fmt.Printf("    %s <%s> %s\n", ts, m.Nickname, m.Text)
	}
}

func (l *consoleListener) OnGroupInvite(groupID, groupName, fromUID string) {
	fmt.Printf("* invited to group %q by %s, /acceptinvite %s %s to join\n", groupName, fromUID, groupID, fromUID)
	l.push(notify.Event{
		Title: "Group invite",
		Body:  fmt.Sprintf("You were invited to %s", groupName),
		Key:   "invite:" + groupID,
	})
}

func (l *consoleListener) OnJoinGroupRequest(groupID, uid, nickname string) {
	fmt.Printf("* %s (uid %s) asks to join group %s, /approve or /deny\n", nickname, uid, groupID)
	l.push(notify.Event{
		Title: "Join request",
		Body:  fmt.Sprintf("%s asks to join your group", nickname),
		Key:   "join:" + groupID + ":" + uid,
	})
}

func (l *consoleListener) OnRequestFailed(operation string, err error) {
	fmt.Printf("* %s failed: %v\n", operation, err)
}
