package domain

import "strconv"

const (
	FeedTopic     = "feed"
	PresenceTopic = "presence"
)

const (
	EventMessageCreated      = "message.created"
	EventMessageUpdated      = "message.updated"
	EventMessageDeleted      = "message.deleted"
	EventReactionUpdated     = "reaction.updated"
	EventTypingUpdated       = "typing.updated"
	EventMemberJoined        = "member.joined"
	EventMemberLeft          = "member.left"
	EventPostCreated         = "post.created"
	EventPostUpdated         = "post.updated"
	EventPostDeleted         = "post.deleted"
	EventPostLiked           = "post.liked"
	EventCommentCreated      = "comment.created"
	EventCommentDeleted      = "comment.deleted"
	EventNotificationCreated = "notification.created"
	EventPresenceUpdated     = "presence.updated"
	EventModuleUpdated       = "module.updated"
	EventAccessRevoked       = "access.revoked"
)

// AccessRevoked is the payload of EventAccessRevoked. Subscriptions held by
// UserID stop receiving Topic as soon as the event is delivered.
type AccessRevoked struct {
	UserID uint   `json:"user_id"`
	Topic  string `json:"topic"`
}

func ChannelTopic(channelID uint) string {
	return "channel:" + strconv.FormatUint(uint64(channelID), 10)
}

func UserTopic(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}
