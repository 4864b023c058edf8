package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type User struct {
	ID               int        `gorm:"primary_key;autoIncrement" json:"id"`
	Username         string     `gorm:"unique;not null;index" json:"username"`
	Email            string     `gorm:"unique;not null" json:"email"`
	PasswordHash     string     `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Role             string     `gorm:"not null;default:'user'" json:"role"`
	Name             string     `json:"name"`
	Bio              string     `gorm:"type:text" json:"bio"`
	Avatar           string     `json:"avatar"`
	Website          string     `json:"website"`
	ResetToken       string     `gorm:"index" json:"-"` // token for password recovery
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Post struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	AuthorID      int        `gorm:"not null;index" json:"author_id"` // immutable after creation
	Title         string     `gorm:"not null" json:"title"`
	Slug          string     `gorm:"unique;not null;index" json:"slug"`
	Content       string     `gorm:"type:text" json:"content"`
	Excerpt       string     `json:"excerpt"`
	FeaturedImage string     `json:"featured_image"`
	Status        string     `gorm:"not null;default:'draft';index" json:"status"`
	Views         int64      `gorm:"not null;default:0" json:"views"`
	SEO           SEO        `gorm:"embedded;embeddedPrefix:seo_" json:"seo"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `gorm:"index" json:"published_at,omitempty"`
}

// IsPublished is derived from Status so the two can never disagree.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

type SEO struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	Keywords        string `json:"keywords"` // comma-separated
}

type Comment struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    int       `gorm:"not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PostLike rows carry a composite unique index so a user can like a
// post at most once and toggling is a single conditional insert/delete.
type PostLike struct {
	ID     uint `gorm:"primary_key" json:"id"`
	PostID uint `gorm:"not null;uniqueIndex:idx_post_likes_post_user" json:"post_id"`
	UserID int  `gorm:"not null;uniqueIndex:idx_post_likes_post_user;index" json:"user_id"`
}

type Favorite struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_favorites_user_post;index" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_favorites_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostCategory and PostTag hold one lower-cased name per row. Filtering
// is an exact match on the normalized name and the global filter lists
// come from DISTINCT queries over these tables.
type PostCategory struct {
	ID     uint   `gorm:"primary_key" json:"id"`
	PostID uint   `gorm:"not null;index" json:"post_id"`
	Name   string `gorm:"not null;index" json:"name"`
}

type PostTag struct {
	ID     uint   `gorm:"primary_key" json:"id"`
	PostID uint   `gorm:"not null;index" json:"post_id"`
	Name   string `gorm:"not null;index" json:"name"`
}
