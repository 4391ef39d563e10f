package domain

import "time"

const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

const (
	ChannelPublic  = "public"
	ChannelPrivate = "private"
	ChannelDirect  = "direct"
)

const (
	MemberOwner = "owner"
	MemberRole  = "member"
)

const (
	VisibilityPublic    = "public"
	VisibilityFollowers = "followers"
)

const (
	NotifyFollow      = "follow"
	NotifyPostLike    = "post_like"
	NotifyComment     = "comment"
	NotifyCommentLike = "comment_like"
	NotifyReaction    = "reaction"
	NotifyMention     = "mention"
	NotifyMessage     = "message"
)

type User struct {
	ID           uint       `json:"id"`
	ExternalID   *string    `json:"external_id,omitempty"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name"`
	AvatarURL    string     `json:"avatar_url"`
	Bio          string     `json:"bio"`
	PasswordHash string     `json:"-"`
	Status       string     `json:"status"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Profile struct {
	User           User  `json:"user"`
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
	PostCount      int64 `json:"post_count"`
	FollowedByMe   bool  `json:"followed_by_me"`
}

type UserSuggestion struct {
	User    User `json:"user"`
	Mutuals int  `json:"mutuals"`
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

type Role struct {
	ID        uint      `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Channel struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ChannelMember struct {
	ID                uint      `json:"id"`
	ChannelID         uint      `json:"channel_id"`
	UserID            uint      `json:"user_id"`
	Username          string    `json:"username,omitempty"`
	Role              string    `json:"role"`
	LastReadMessageID uint      `json:"last_read_message_id"`
	JoinedAt          time.Time `json:"joined_at"`
}

type UnreadCount struct {
	ChannelID uint  `json:"channel_id"`
	Unread    int64 `json:"unread"`
}

type Message struct {
	ID             uint              `json:"id"`
	ChannelID      uint              `json:"channel_id"`
	AuthorID       uint              `json:"author_id"`
	AuthorUsername string            `json:"author_username,omitempty"`
	Body           string            `json:"body"`
	ParentID       *uint             `json:"parent_id,omitempty"`
	FileID         *uint             `json:"file_id,omitempty"`
	Deleted        bool              `json:"deleted"`
	EditedAt       *time.Time        `json:"edited_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Reactions      []ReactionSummary `json:"reactions,omitempty"`
}

type MessageReaction struct {
	ID        uint
	MessageID uint
	UserID    uint
	Emoji     string
	CreatedAt time.Time
}

type ReactionSummary struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	ReactedByMe bool   `json:"reacted_by_me"`
}

type Post struct {
	ID             uint      `json:"id"`
	AuthorID       uint      `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Body           string    `json:"body"`
	FileID         *uint     `json:"file_id,omitempty"`
	Visibility     string    `json:"visibility"`
	LikeCount      int       `json:"like_count"`
	CommentCount   int       `json:"comment_count"`
	LikedByMe      bool      `json:"liked_by_me"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Comment struct {
	ID             uint      `json:"id"`
	PostID         uint      `json:"post_id"`
	AuthorID       uint      `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Body           string    `json:"body"`
	LikeCount      int       `json:"like_count"`
	LikedByMe      bool      `json:"liked_by_me"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type Follow struct {
	ID         uint      `json:"id"`
	FollowerID uint      `json:"follower_id"`
	FolloweeID uint      `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ModuleState struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	ModuleKey string    `json:"module_key"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Z         int       `json:"z"`
	Minimized bool      `json:"minimized"`
	Maximized bool      `json:"maximized"`
	Open      bool      `json:"open"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PreferenceDef struct {
	ID           uint      `json:"id"`
	Key          string    `json:"key"`
	ValueKind    string    `json:"value_kind"`
	DefaultValue string    `json:"default_value"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserPreference struct {
	ID        uint
	UserID    uint
	DefID     uint
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID            uint       `json:"id"`
	RecipientID   uint       `json:"recipient_id"`
	ActorID       uint       `json:"actor_id"`
	ActorUsername string     `json:"actor_username,omitempty"`
	Type          string     `json:"type"`
	TargetType    string     `json:"target_type"`
	TargetID      uint       `json:"target_id"`
	Message       string     `json:"message"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type File struct {
	ID          uint      `json:"id"`
	OwnerID     uint      `json:"owner_id"`
	StorageKey  string    `json:"storage_key"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

type TypingIndicator struct {
	ChannelID uint      `json:"channel_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ActivityLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

type ActivityRecord struct {
	ID            uint      `json:"id"`
	ActorUserID   *uint     `json:"actor_user_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Action        string    `json:"action"`
	TargetType    string    `json:"target_type"`
	TargetID      *uint     `json:"target_id,omitempty"`
	Metadata      string    `json:"metadata"`
	CreatedAt     time.Time `json:"created_at"`
}

// Page bounds a newest-first listing. BeforeID of zero starts at the newest row.
type Page struct {
	BeforeID uint
	Limit    int
}
