package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFriends_SkipsMalformedEntries(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"uid": "u1", "nickname": "Alice"},
		map[string]interface{}{"nickname": "no uid"},
		"not an object",
		map[string]interface{}{"uid": "u2"},
	}

	friends := ParseFriends(raw)

	require.Equal(t, []Friend{
		{UID: "u1", Nickname: "Alice"},
		{UID: "u2", Nickname: "Unknown"},
	}, friends)
}

func TestParseChats_LastMessageOptional(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"chatId":      "c1",
			"type":        "group",
			"name":        "Lobby",
			"lastMessage": map[string]interface{}{"message": "hi all"},
		},
		map[string]interface{}{"chatId": "c2"},
		map[string]interface{}{"name": "missing chatId"},
	}

	chats := ParseChats(raw)

	require.Equal(t, []Chat{
		{ChatID: "c1", Type: ChatTypeGroup, Name: "Lobby", LastMessage: "hi all"},
		{ChatID: "c2", Type: ChatTypePrivate, Name: "Unknown"},
	}, chats)
}

func TestParseGroups_RequiresBothIDs(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"chatId": "c1", "groupId": "g1", "name": "Go fans"},
		map[string]interface{}{"chatId": "c2"},
		map[string]interface{}{"groupId": "g3"},
	}

	groups := ParseGroups(raw)

	require.Equal(t, []Group{{ChatID: "c1", GroupID: "g1", Name: "Go fans"}}, groups)
}

func TestParseMessages_FallbackTimestamp(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"fromUid": "u1", "message": "hi", "timestamp": float64(42)},
		map[string]interface{}{"fromUid": "u2", "message": "no ts"},
		map[string]interface{}{"message": "no sender"},
	}

	messages := ParseMessages(raw, 99)

	require.Equal(t, []Message{
		{FromUID: "u1", Text: "hi", Nickname: "Unknown", Timestamp: 42},
		{FromUID: "u2", Text: "no ts", Nickname: "Unknown", Timestamp: 99},
	}, messages)
}

func TestOptInt64_NumericKinds(t *testing.T) {
	payload := map[string]interface{}{
		"float": float64(7),
		"int":   3,
		"int64": int64(9),
		"text":  "nope",
	}

	require.Equal(t, int64(7), OptInt64(payload, "float", 0))
	require.Equal(t, int64(3), OptInt64(payload, "int", 0))
	require.Equal(t, int64(9), OptInt64(payload, "int64", 0))
	require.Equal(t, int64(-1), OptInt64(payload, "text", -1))
	require.Equal(t, int64(-1), OptInt64(payload, "missing", -1))
}

func TestInboundEvents_CoversPushAndResponseNames(t *testing.T) {
	events := InboundEvents()
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		require.False(t, seen[ev], "duplicate inbound event %q", ev)
		seen[ev] = true
	}
	require.True(t, seen[EventFriendRequest])
	require.True(t, seen[EventChatMessage])
	require.True(t, seen[EventGetChatHistoryResponse])
}
