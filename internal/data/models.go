package data

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// Page represents a single wiki page in the database.
type Page struct {
	ID              int64        `db:"id" json:"id"`
	Name            string       `db:"name" json:"name"`
	Content         string       `db:"content" json:"content"`
	LastModifiedUTC time.Time    `db:"last_modified_utc" json:"lastModifiedUtc"`
	Attachments     []Attachment `db:"-" json:"attachments"`
}

// With returns a copy of the page with name, content and timestamp replaced.
// The attachment list is copied so the result never shares backing storage
// with the receiver.
func (p Page) With(name, content string, modified time.Time) Page {
	p.Name = name
	p.Content = content
	p.LastModifiedUTC = modified
	p.Attachments = append(make([]Attachment, 0, len(p.Attachments)+1), p.Attachments...)
	return p
}

// Attachment is the metadata reference to an uploaded blob.
type Attachment struct {
	FileID          string    `db:"file_id" json:"fileId"`
	FileName        string    `db:"file_name" json:"fileName"`
	MimeType        string    `db:"mime_type" json:"mimeType"`
	LastModifiedUTC time.Time `db:"last_modified_utc" json:"lastModifiedUtc"`
}

// Blob describes stored binary content addressed by FileID.
type Blob struct {
	FileID     string    `db:"file_id"`
	FileName   string    `db:"file_name"`
	MimeType   string    `db:"mime_type"`
	Length     int64     `db:"length"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// User is a registered wiki account.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
