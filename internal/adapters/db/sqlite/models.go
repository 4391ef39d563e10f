package sqlite

import "time"

type UserModel struct {
	ID           uint    `gorm:"primaryKey"`
	ExternalID   *string `gorm:"uniqueIndex"`
	Email        string  `gorm:"not null;uniqueIndex"`
	Username     string  `gorm:"not null;uniqueIndex"`
	DisplayName  string  `gorm:"not null;default:''"`
	AvatarURL    string  `gorm:"not null;default:''"`
	Bio          string  `gorm:"not null;default:''"`
	PasswordHash string  `gorm:"not null;default:''"`
	Status       string  `gorm:"not null;default:'offline'"`
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type RoleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (RoleModel) TableName() string { return "roles" }

type PermissionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

type UserRoleModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index:idx_user_role,unique"`
	RoleID    uint `gorm:"not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RolePermissionModel struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;index:idx_role_perm,unique"`
	PermissionID uint `gorm:"not null;index:idx_role_perm,unique"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }

type FollowModel struct {
	ID         uint `gorm:"primaryKey"`
	FollowerID uint `gorm:"not null;index:idx_follow_pair,unique"`
	FolloweeID uint `gorm:"not null;index:idx_follow_pair,unique;index"`
	CreatedAt  time.Time
}

func (FollowModel) TableName() string { return "follows" }

type ChannelModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null;uniqueIndex"`
	Description string `gorm:"not null;default:''"`
	Kind        string `gorm:"not null;default:'public'"`
	CreatedBy   uint   `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ChannelModel) TableName() string { return "channels" }

type ChannelMemberModel struct {
	ID                uint   `gorm:"primaryKey"`
	ChannelID         uint   `gorm:"not null;index:idx_channel_member,unique"`
	UserID            uint   `gorm:"not null;index:idx_channel_member,unique;index"`
	Role              string `gorm:"not null;default:'member'"`
	LastReadMessageID uint   `gorm:"not null;default:0"`
	JoinedAt          time.Time
}

func (ChannelMemberModel) TableName() string { return "channel_members" }

type MessageModel struct {
	ID        uint   `gorm:"primaryKey"`
	ChannelID uint   `gorm:"not null;index"`
	AuthorID  uint   `gorm:"not null;index"`
	Body      string `gorm:"not null"`
	ParentID  *uint
	FileID    *uint
	Deleted   bool `gorm:"not null;default:false"`
	EditedAt  *time.Time
	CreatedAt time.Time
}

func (MessageModel) TableName() string { return "messages" }

type MessageReactionModel struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID uint   `gorm:"not null;index:idx_reaction,unique"`
	UserID    uint   `gorm:"not null;index:idx_reaction,unique"`
	Emoji     string `gorm:"not null;index:idx_reaction,unique"`
	CreatedAt time.Time
}

func (MessageReactionModel) TableName() string { return "message_reactions" }

type TypingIndicatorModel struct {
	ID        uint `gorm:"primaryKey"`
	ChannelID uint `gorm:"not null;index:idx_typing,unique"`
	UserID    uint `gorm:"not null;index:idx_typing,unique"`
	ExpiresAt time.Time
}

func (TypingIndicatorModel) TableName() string { return "typing_indicators" }

type PostModel struct {
	ID           uint   `gorm:"primaryKey"`
	AuthorID     uint   `gorm:"not null;index"`
	Body         string `gorm:"not null"`
	FileID       *uint
	Visibility   string `gorm:"not null;default:'public'"`
	LikeCount    int    `gorm:"not null;default:0"`
	CommentCount int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (PostModel) TableName() string { return "posts" }

type PostLikeModel struct {
	ID        uint `gorm:"primaryKey"`
	PostID    uint `gorm:"not null;index:idx_post_like,unique"`
	UserID    uint `gorm:"not null;index:idx_post_like,unique"`
	CreatedAt time.Time
}

func (PostLikeModel) TableName() string { return "post_likes" }

type CommentModel struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"not null;index"`
	AuthorID  uint   `gorm:"not null;index"`
	Body      string `gorm:"not null"`
	LikeCount int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CommentModel) TableName() string { return "comments" }

type CommentLikeModel struct {
	ID        uint `gorm:"primaryKey"`
	CommentID uint `gorm:"not null;index:idx_comment_like,unique"`
	UserID    uint `gorm:"not null;index:idx_comment_like,unique"`
	CreatedAt time.Time
}

func (CommentLikeModel) TableName() string { return "comment_likes" }

type ModuleStateModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index:idx_module_state,unique"`
	ModuleKey string `gorm:"not null;index:idx_module_state,unique"`
	X         int    `gorm:"not null;default:0"`
	Y         int    `gorm:"not null;default:0"`
	Width     int    `gorm:"not null;default:0"`
	Height    int    `gorm:"not null;default:0"`
	Z         int    `gorm:"not null;default:0"`
	Minimized bool   `gorm:"not null;default:false"`
	Maximized bool   `gorm:"not null;default:false"`
	Open      bool   `gorm:"not null"`
	UpdatedAt time.Time
}

func (ModuleStateModel) TableName() string { return "module_states" }

type PreferenceDefModel struct {
	ID           uint   `gorm:"primaryKey"`
	Key          string `gorm:"not null;uniqueIndex"`
	ValueKind    string `gorm:"not null;default:'string'"`
	DefaultValue string `gorm:"not null;default:''"`
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (PreferenceDefModel) TableName() string { return "preference_defs" }

type UserPreferenceModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index:idx_user_pref,unique"`
	DefID     uint   `gorm:"not null;index:idx_user_pref,unique"`
	Value     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserPreferenceModel) TableName() string { return "user_preferences" }

type NotificationModel struct {
	ID          uint   `gorm:"primaryKey"`
	RecipientID uint   `gorm:"not null;index"`
	ActorID     uint   `gorm:"not null"`
	Type        string `gorm:"not null"`
	TargetType  string `gorm:"not null"`
	TargetID    uint   `gorm:"not null"`
	Message     string `gorm:"not null;default:''"`
	ReadAt      *time.Time
	CreatedAt   time.Time
}

func (NotificationModel) TableName() string { return "notifications" }

type FileModel struct {
	ID          uint   `gorm:"primaryKey"`
	OwnerID     uint   `gorm:"not null;index"`
	StorageKey  string `gorm:"not null;uniqueIndex"`
	Name        string `gorm:"not null"`
	ContentType string `gorm:"not null"`
	Size        int64  `gorm:"not null"`
	CreatedAt   time.Time
}

func (FileModel) TableName() string { return "files" }

type ActivityLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null;index"`
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

func (ActivityLogModel) TableName() string { return "activity_logs" }
