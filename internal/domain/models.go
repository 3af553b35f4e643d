// Package domain defines the persistence models shared by every storage
// backend: users and their identity-provider records, conversations with
// their participants and messages, the suggested-question catalogue, and
// cache entries.
//
// Each type carries three sets of tags:
//   - json: the HTTP representation
//   - gorm: the relational schema (columns, indexes, relations)
//   - dynamodbav: the key-value attribute names
//
// Column and attribute names are identical so partial updates can address a
// field the same way on either backend. Timestamps are never filled in by the
// ORM; the storage layer stamps and normalizes them explicitly.
package domain

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is an authenticated person. Email is unique across the store when
// set; provider sign-ins may leave it empty, which is stored as NULL.
// PasswordHash is only set for accounts created with credentials.
type User struct {
	ID            string     `json:"id"                       gorm:"type:varchar(64);primaryKey"                          dynamodbav:"id"`
	Name          string     `json:"name"                     gorm:"type:varchar(255)"                                    dynamodbav:"name,omitempty"`
	Email         string     `json:"email"                    gorm:"type:varchar(320);uniqueIndex:ux_users_email;serializer:emptynull" dynamodbav:"email,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"                                                              dynamodbav:"email_verified,omitempty"`
	Image         string     `json:"image,omitempty"          gorm:"type:varchar(1024)"                                   dynamodbav:"image,omitempty"`
	PasswordHash  string     `json:"-"                        gorm:"type:varchar(255)"                                    dynamodbav:"password_hash,omitempty"`
	CreatedAt     time.Time  `json:"created_at"               gorm:"autoCreateTime:false"                                 dynamodbav:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"               gorm:"autoUpdateTime:false"                                 dynamodbav:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Profile is the public projection of a user embedded in conversation
// payloads.
func (u User) Profile() *UserProfile {
	return &UserProfile{ID: u.ID, Name: u.Name, Image: u.Image}
}

// UserProfile is the subset of a user shown to other participants.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Session binds an opaque token to a user until Expires. Expired sessions
// are rejected on read but not purged.
type Session struct {
	SessionToken string    `json:"-"          gorm:"type:varchar(128);primaryKey"                    dynamodbav:"session_token"`
	UserID       string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_sessions_user" dynamodbav:"user_id"`
	Expires      time.Time `json:"expires"    gorm:"not null"                                        dynamodbav:"expires"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime:false"                            dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime:false"                            dynamodbav:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Account links a user to an external identity provider. The pair
// (Provider, ProviderAccountID) is unique.
type Account struct {
	ID                string    `json:"id"                  gorm:"type:varchar(64);primaryKey"                                  dynamodbav:"id"`
	UserID            string    `json:"user_id"             gorm:"type:varchar(64);not null;index:idx_accounts_user"            dynamodbav:"user_id"`
	Type              string    `json:"type"                gorm:"type:varchar(32);not null"                                    dynamodbav:"type"`
	Provider          string    `json:"provider"            gorm:"type:varchar(64);not null;uniqueIndex:ux_accounts_provider,priority:1" dynamodbav:"provider"`
	ProviderAccountID string    `json:"provider_account_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_accounts_provider,priority:2" dynamodbav:"provider_account_id"`
	RefreshToken      string    `json:"-"                   gorm:"type:text"                                                    dynamodbav:"refresh_token,omitempty"`
	AccessToken       string    `json:"-"                   gorm:"type:text"                                                    dynamodbav:"access_token,omitempty"`
	ExpiresAt         int64     `json:"expires_at,omitempty"                                                                    dynamodbav:"expires_at,omitempty"`
	TokenType         string    `json:"token_type,omitempty" gorm:"type:varchar(32)"                                            dynamodbav:"token_type,omitempty"`
	Scope             string    `json:"scope,omitempty"     gorm:"type:varchar(512)"                                            dynamodbav:"scope,omitempty"`
	IDToken           string    `json:"-"                   gorm:"type:text"                                                    dynamodbav:"id_token,omitempty"`
	SessionState      string    `json:"-"                   gorm:"type:varchar(255)"                                            dynamodbav:"session_state,omitempty"`
	CreatedAt         time.Time `json:"created_at"          gorm:"autoCreateTime:false"                                         dynamodbav:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"          gorm:"autoUpdateTime:false"                                         dynamodbav:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// Conversation is a thread between one or more participants and the
// assistant. Participants and Messages are populated by the service layer;
// on the relational backend they are also declared relations so deleting a
// conversation cascades to both.
type Conversation struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"                             dynamodbav:"id"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null;default:'New Conversation'" dynamodbav:"title"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"                                 dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false;index"                           dynamodbav:"updated_at"`

	Participants []Participant `json:"participants"       gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" dynamodbav:"-"`
	Messages     []Message     `json:"messages"           gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" dynamodbav:"-"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Participant is the join record between a conversation and a user.
type Participant struct {
	ID             string    `json:"-"               gorm:"type:varchar(110);primaryKey"                                          dynamodbav:"id"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;uniqueIndex:ux_participants_conv_user,priority:1" dynamodbav:"conversation_id"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_participants_conv_user,priority:2;index:idx_participants_user" dynamodbav:"user_id"`
	CreatedAt      time.Time `json:"created_at"      gorm:"autoCreateTime:false"                                                  dynamodbav:"created_at"`

	User *UserProfile `json:"user,omitempty" gorm:"-" dynamodbav:"-"`
}

// TableName returns the database table name for Participant.
func (Participant) TableName() string { return "conversation_participants" }

// ParticipantID derives the stable identifier of a (conversation, user) pair
// so re-adding the same participant overwrites instead of duplicating.
func ParticipantID(conversationID, userID string) string {
	return conversationID + "#" + userID
}

// Message is a single immutable utterance within a conversation.
type Message struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"                                  dynamodbav:"id"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1" dynamodbav:"conversation_id"`
	Role           string    `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')" dynamodbav:"role"`
	Content        string    `json:"content"         gorm:"type:text;not null"                                        dynamodbav:"content"`
	CreatedAt      time.Time `json:"created_at"      gorm:"autoCreateTime:false;index:idx_conversation_msgs,priority:2" dynamodbav:"created_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Turn is one entry of the history handed to the response generator. It is
// not persisted.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Topic groups suggested questions. Topics come from the question
// catalogue and are not persisted.
type Topic struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Question is a suggested prompt belonging to a free-text topic.
type Question struct {
	ID           string    `json:"id"            gorm:"type:varchar(64);primaryKey"                 dynamodbav:"id"`
	Topic        string    `json:"topic"         gorm:"type:varchar(128);not null;index:idx_questions_topic" dynamodbav:"topic"`
	QuestionText string    `json:"question_text" gorm:"type:text;not null"                          dynamodbav:"question_text"`
	Difficulty   string    `json:"difficulty,omitempty" gorm:"type:varchar(32)"                     dynamodbav:"difficulty,omitempty"`
	CreatedAt    time.Time `json:"created_at"    gorm:"autoCreateTime:false"                        dynamodbav:"created_at"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// CacheEntry is an opaque value with an absolute expiry.
type CacheEntry struct {
	Key       string    `json:"key"        gorm:"column:key;type:varchar(128);primaryKey" dynamodbav:"key"`
	Value     string    `json:"value"      gorm:"type:text;not null"                      dynamodbav:"value"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"                          dynamodbav:"expires_at"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"                    dynamodbav:"created_at"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "cache_entries" }
