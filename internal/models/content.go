package models

import "time"

// Ownable is implemented by resources that belong to a single user.
type Ownable interface {
	OwnerID() uint
}

// Allowed values for Book.AgeLimit.
var AgeLimits = []int{0, 6, 12, 18}

// Book is a catalogue entry owned by the user who created it.
type Book struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	AuthorID      uint      `gorm:"not null;index" json:"author_id"`
	Author        *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Writer        string    `gorm:"size:255" json:"writer"`
	Description   string    `gorm:"type:text" json:"description"`
	ISBN          *string   `gorm:"column:isbn;size:13;uniqueIndex" json:"isbn"`
	YearPublished int       `gorm:"not null" json:"year_published"`
	Pages         int       `gorm:"not null" json:"pages"`
	CoverImage    string    `gorm:"size:255" json:"cover_image"`
	Price         int64     `gorm:"not null" json:"price"`
	AgeLimit      int       `gorm:"not null" json:"age_limit"`
	Genres        []Genre   `gorm:"many2many:book_genres;constraint:OnDelete:CASCADE" json:"genres"`
	IsFree        bool      `gorm:"not null" json:"is_free"`
	IsPublic      bool      `gorm:"not null" json:"is_public"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (b *Book) OwnerID() uint { return b.AuthorID }

// Genre is a flat tag attached to books.
type Genre struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Title string `gorm:"size:100;uniqueIndex;not null" json:"title"`
}

// News is a post written by a user. Unpublished news is visible to its
// author and staff only.
type News struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Image       string    `gorm:"size:255" json:"image"`
	IsPublished bool      `gorm:"not null;index" json:"is_published"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (News) TableName() string { return "news" }

func (n *News) OwnerID() uint { return n.AuthorID }

// Item is an ownerless catalogue record.
type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
