package wire

import (
	"github.com/sirupsen/logrus"
)

// OptString returns the string field or the fallback when absent or not a
// string.
func OptString(payload map[string]interface{}, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return fallback
}

// OptBool returns the bool field or the fallback.
func OptBool(payload map[string]interface{}, key string, fallback bool) bool {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return fallback
}

// OptInt64 returns the numeric field as int64 or the fallback. JSON decoding
// yields float64 for numbers; other integral types are accepted too.
func OptInt64(payload map[string]interface{}, key string, fallback int64) int64 {
	if payload == nil {
		return fallback
	}
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return fallback
	}
}

// Array returns the array field as a slice of raw elements, or nil.
func Array(payload map[string]interface{}, key string) []interface{} {
	if payload == nil {
		return nil
	}
	if v, ok := payload[key].([]interface{}); ok {
		return v
	}
	return nil
}

// Object returns the object field as a map, or nil.
func Object(payload map[string]interface{}, key string) map[string]interface{} {
	if payload == nil {
		return nil
	}
	if v, ok := payload[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// ParseFriends decodes a friends array, skipping malformed elements. A
// missing uid drops the single entry, never the batch.
func ParseFriends(raw []interface{}) []Friend {
	friends := make([]Friend, 0, len(raw))
	for i, el := range raw {
		item, ok := el.(map[string]interface{})
		if !ok {
			logrus.WithField("index", i).Warn("friend entry is not an object, skipping")
			continue
		}
		uid := OptString(item, "uid", "")
		if uid == "" {
			logrus.WithField("index", i).Warn("friend entry missing uid, skipping")
			continue
		}
		friends = append(friends, Friend{
			UID:      uid,
			Nickname: OptString(item, "nickname", "Unknown"),
		})
	}
	return friends
}

// ParseChats decodes a chat list array, skipping malformed elements.
func ParseChats(raw []interface{}) []Chat {
	chats := make([]Chat, 0, len(raw))
	for i, el := range raw {
		item, ok := el.(map[string]interface{})
		if !ok {
			logrus.WithField("index", i).Warn("chat entry is not an object, skipping")
			continue
		}
		chatID := OptString(item, "chatId", "")
		if chatID == "" {
			logrus.WithField("index", i).Warn("chat entry missing chatId, skipping")
			continue
		}
		chat := Chat{
			ChatID: chatID,
			Type:   OptString(item, "type", ChatTypePrivate),
			Name:   OptString(item, "name", "Unknown"),
		}
		if last := Object(item, "lastMessage"); last != nil {
			chat.LastMessage = OptString(last, "message", "")
		}
		chats = append(chats, chat)
	}
	return chats
}

// ParseUsers decodes a user search result array.
func ParseUsers(raw []interface{}) []User {
	users := make([]User, 0, len(raw))
	for i, el := range raw {
		item, ok := el.(map[string]interface{})
		if !ok {
			logrus.WithField("index", i).Warn("user entry is not an object, skipping")
			continue
		}
		uid := OptString(item, "uid", "")
		if uid == "" {
			logrus.WithField("index", i).Warn("user entry missing uid, skipping")
			continue
		}
		users = append(users, User{
			UID:      uid,
			Nickname: OptString(item, "nickname", "Unknown"),
		})
	}
	return users
}

// ParseGroups decodes a group search result array. Entries need both chatId
// and groupId.
func ParseGroups(raw []interface{}) []Group {
	groups := make([]Group, 0, len(raw))
	for i, el := range raw {
		item, ok := el.(map[string]interface{})
		if !ok {
			logrus.WithField("index", i).Warn("group entry is not an object, skipping")
			continue
		}
		chatID := OptString(item, "chatId", "")
		groupID := OptString(item, "groupId", "")
		if chatID == "" || groupID == "" {
			logrus.WithField("index", i).Warn("group entry missing chatId or groupId, skipping")
			continue
		}
		groups = append(groups, Group{
			ChatID:  chatID,
			GroupID: groupID,
			Name:    OptString(item, "name", "Unknown Group"),
		})
	}
	return groups
}

// ParseMessage decodes one message object. fallbackTs stamps messages whose
// payload lacks a timestamp.
func ParseMessage(item map[string]interface{}, fallbackTs int64) (Message, bool) {
	fromUID := OptString(item, "fromUid", "")
	if fromUID == "" {
		return Message{}, false
	}
	return Message{
		FromUID:   fromUID,
		Text:      OptString(item, "message", ""),
		Nickname:  OptString(item, "nickname", "Unknown"),
		Timestamp: OptInt64(item, "timestamp", fallbackTs),
	}, true
}

// ParseMessages decodes a message history array, skipping malformed elements.
func ParseMessages(raw []interface{}, fallbackTs int64) []Message {
	messages := make([]Message, 0, len(raw))
	for i, el := range raw {
		item, ok := el.(map[string]interface{})
		if !ok {
			logrus.WithField("index", i).Warn("message entry is not an object, skipping")
			continue
		}
		msg, ok := ParseMessage(item, fallbackTs)
		if !ok {
			logrus.WithField("index", i).Warn("message entry missing fromUid, skipping")
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}
