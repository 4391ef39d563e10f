package domain

import (
	"context"
	"io"
	"time"
)

type UserRepository interface {
	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (User, error)
	UpdateUserProfile(ctx context.Context, value User) (User, error)
	SetUserStatus(ctx context.Context, userID uint, status string, at time.Time) error
	SearchUsers(ctx context.Context, query string, limit int) ([]User, error)
	ListNewestUsers(ctx context.Context, excludeIDs []uint, limit int) ([]User, error)

	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)

	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)
}

type SocialRepository interface {
	CreateFollow(ctx context.Context, followerID, followeeID uint) (Follow, bool, error)
	DeleteFollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint, limit int) ([]User, error)
	ListFollowing(ctx context.Context, userID uint, limit int) ([]User, error)
	CountFollowers(ctx context.Context, userID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	SuggestUsers(ctx context.Context, userID uint, maxDepth, limit int) ([]UserSuggestion, error)
}

type ChatRepository interface {
	CreateChannel(ctx context.Context, value Channel) (Channel, error)
	GetChannelByID(ctx context.Context, id uint) (Channel, error)
	GetChannelByName(ctx context.Context, name string) (Channel, error)
	ListChannelsForUser(ctx context.Context, userID uint, limit int) ([]Channel, error)
	AddMember(ctx context.Context, value ChannelMember) (ChannelMember, error)
	RemoveMember(ctx context.Context, channelID, userID uint) error
	GetMember(ctx context.Context, channelID, userID uint) (ChannelMember, error)
	ListMembers(ctx context.Context, channelID uint) ([]ChannelMember, error)
	UpdateLastRead(ctx context.Context, channelID, userID, messageID uint) error
	UnreadCounts(ctx context.Context, userID uint) ([]UnreadCount, error)

	CreateMessage(ctx context.Context, value Message) (Message, error)
	GetMessageByID(ctx context.Context, id uint) (Message, error)
	UpdateMessageBody(ctx context.Context, id uint, body string, editedAt time.Time) (Message, error)
	SoftDeleteMessage(ctx context.Context, id uint) (Message, error)
	ListMessages(ctx context.Context, channelID uint, page Page) ([]Message, error)
	SearchMessages(ctx context.Context, channelID uint, query string, limit int) ([]Message, error)

	ToggleReaction(ctx context.Context, messageID, userID uint, emoji string) (bool, error)
	ListReactions(ctx context.Context, messageIDs []uint) ([]MessageReaction, error)

	UpsertTyping(ctx context.Context, value TypingIndicator) error
	GetTyping(ctx context.Context, channelID, userID uint) (TypingIndicator, error)
	DeleteTyping(ctx context.Context, channelID, userID uint) error
	ListTyping(ctx context.Context, channelID uint, now time.Time) ([]TypingIndicator, error)
	DeleteExpiredTyping(ctx context.Context, now time.Time) (int64, error)
}

// PostQuery selects posts visible to ViewerID. An empty AuthorIDs means any author.
type PostQuery struct {
	ViewerID   uint
	AuthorIDs  []uint
	PublicOnly bool
	Text       string
	Page       Page
}

type FeedRepository interface {
	CreatePost(ctx context.Context, value Post) (Post, error)
	GetPostByID(ctx context.Context, id uint) (Post, error)
	UpdatePostBody(ctx context.Context, id uint, body string) (Post, error)
	DeletePost(ctx context.Context, id uint) error
	ListPosts(ctx context.Context, query PostQuery) ([]Post, error)
	CountPostsByAuthor(ctx context.Context, authorID uint) (int64, error)
	TogglePostLike(ctx context.Context, postID, userID uint) (LikeResult, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)

	CreateComment(ctx context.Context, value Comment) (Comment, error)
	GetCommentByID(ctx context.Context, id uint) (Comment, error)
	UpdateCommentBody(ctx context.Context, id uint, body string) (Comment, error)
	DeleteComment(ctx context.Context, id uint) error
	ListComments(ctx context.Context, postID uint, limit int) ([]Comment, error)
	ToggleCommentLike(ctx context.Context, commentID, userID uint) (LikeResult, error)
	LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) ([]uint, error)
}

type LayoutRepository interface {
	ListModuleStates(ctx context.Context, userID uint) ([]ModuleState, error)
	UpsertModuleState(ctx context.Context, value ModuleState) (ModuleState, error)
	UpdateModuleZ(ctx context.Context, userID uint, zByKey map[string]int) error
	DeleteModuleStates(ctx context.Context, userID uint) error

	UpsertPreferenceDef(ctx context.Context, value PreferenceDef) (PreferenceDef, error)
	ListPreferenceDefs(ctx context.Context) ([]PreferenceDef, error)
	GetPreferenceDefByKey(ctx context.Context, key string) (PreferenceDef, error)
	UpsertUserPreference(ctx context.Context, value UserPreference) (UserPreference, error)
	ListUserPreferences(ctx context.Context, userID uint) ([]UserPreference, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, value Notification) (Notification, error)
	ListNotifications(ctx context.Context, recipientID uint, unreadOnly bool, limit int) ([]Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, id, recipientID uint, at time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
	DeleteReadNotificationsBefore(ctx context.Context, before time.Time) (int64, error)
}

type FileRepository interface {
	CreateFile(ctx context.Context, value File) (File, error)
	GetFileByID(ctx context.Context, id uint) (File, error)
	DeleteFile(ctx context.Context, id uint) error
}

type ActivityRepository interface {
	CreateActivityLog(ctx context.Context, value ActivityLog) error
	ListActivityLogs(ctx context.Context, actorUserID *uint, limit int) ([]ActivityRecord, error)
}

type Repository interface {
	UserRepository
	SocialRepository
	ChatRepository
	FeedRepository
	LayoutRepository
	NotificationRepository
	FileRepository
	ActivityRepository
}

// BlobStore keeps uploaded file contents addressed by storage key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, maxBytes int64) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher fans out change events to realtime subscribers.
type EventPublisher interface {
	Publish(topic, eventType string, payload any)
}

// ExternalClaims are the verified claims of an identity-provider token.
type ExternalClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Username      string
	DisplayName   string
	AvatarURL     string
}

type TokenVerifier interface {
	Verify(token string) (ExternalClaims, error)
}
