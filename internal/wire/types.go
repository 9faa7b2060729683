package wire

// ChatTypePrivate and ChatTypeGroup are the two chat kinds the server knows.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// SystemSenderUID is the reserved sender identity for server-generated
// notices (e.g. group membership changes). System messages are ordinary
// Messages and follow the same ordering rules.
const SystemSenderUID = "system"

// Friend is one entry of the friend list.
type Friend struct {
	UID      string
	Nickname string
}

// Chat is one entry of the chat list.
type Chat struct {
	ChatID      string
	Type        string
	Name        string
	LastMessage string
}

// PendingFriend is a received friend request awaiting an accept/reject
// decision.
type PendingFriend struct {
	UID      string
	Nickname string
}

// User is one user search result.
type User struct {
	UID      string
	Nickname string
}

// Group is one group search result.
type Group struct {
	ChatID  string
	GroupID string
	Name    string
}

// Message is one chat timeline entry. Immutable once constructed.
type Message struct {
	FromUID   string
	Text      string
	Nickname  string
	Timestamp int64 // milliseconds since epoch
}
