// Package wire defines the event names and payload records exchanged with
// the chat server, plus tolerant parsing for inbound payloads.
package wire

// Outbound event names.
const (
	EventRegister                = "register"
	EventLogin                   = "login"
	EventFriendRequest           = "friendRequest"
	EventFriendRequestByNickname = "friendRequestByNickname"
	EventAcceptFriendRequest     = "acceptFriendRequest"
	EventRejectFriendRequest     = "rejectFriendRequest"
	EventSearchUsers             = "searchUsers"
	EventGetFriendList           = "getFriendList"
	EventGetChatList             = "getChatList"
	EventStartFriendChat         = "startFriendChat"
	EventCreateGroupChat         = "createGroupChat"
	EventJoinGroupRequest        = "joinGroupRequest"
	EventApproveJoinGroup        = "approveJoinGroup"
	EventRejectJoinGroup         = "rejectJoinGroup"
	EventSearchGroups            = "searchGroups"
	EventInviteToGroup           = "inviteToGroup"
	EventAcceptGroupInvite       = "acceptGroupInvite"
	EventRejectGroupInvite       = "rejectGroupInvite"
	EventUpdateNickname          = "updateNickname"
	EventLeaveGroup              = "leaveGroup"
	EventChatMessage             = "chatMessage"
	EventGroupMessage            = "groupMessage"
	EventGetChatHistory          = "getChatHistory"
)

// Inbound event names.
const (
	EventRegisterResponse        = "registerResponse"
	EventLoginResponse           = "loginResponse"
	EventFriendRequestResponse   = "friendRequestResponse"
	EventFriendRequestAccepted   = "friendRequestAccepted"
	EventFriendRequestRejected   = "friendRequestRejected"
	EventSearchUsersResponse     = "searchUsersResponse"
	EventGetFriendListResponse   = "getFriendListResponse"
	EventGetChatListResponse     = "getChatListResponse"
	EventCreateGroupChatResponse = "createGroupChatResponse"
	EventGroupChatCreated        = "groupChatCreated"
	EventJoinGroupResponse       = "joinGroupResponse"
	EventJoinGroupApproved       = "joinGroupApproved"
	EventSearchGroupsResponse    = "searchGroupsResponse"
	EventUpdateNicknameResponse  = "updateNicknameResponse"
	EventGetChatHistoryResponse  = "getChatHistoryResponse"
)

// InboundEvents is the catalog of server-sent event names the transport must
// bridge. Socket.IO only delivers events with an explicit subscription, so
// the dialer registers every name up front.
func InboundEvents() []string {
	return []string{
		EventRegisterResponse,
		EventLoginResponse,
		EventFriendRequest,
		EventFriendRequestResponse,
		EventFriendRequestAccepted,
		EventFriendRequestRejected,
		EventSearchUsersResponse,
		EventGetFriendListResponse,
		EventGetChatListResponse,
		EventCreateGroupChatResponse,
		EventGroupChatCreated,
		EventJoinGroupRequest,
		EventJoinGroupResponse,
		EventJoinGroupApproved,
		EventSearchGroupsResponse,
		EventInviteToGroup,
		EventUpdateNicknameResponse,
		EventChatMessage,
		EventGroupMessage,
		EventGetChatHistoryResponse,
	}
}
