package store

import "time"

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Folder is read-only in this service; folder CRUD lives elsewhere.
// It exists here so document placement can be validated.
type Folder struct {
	ID        string
	Name      string
	OwnerID   string
	ParentID  *string
	CreatedAt time.Time
}

type Document struct {
	ID        string
	Title     string
	Content   string // serialized content tree, opaque outside export
	OwnerID   string
	FolderID  *string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Collaborator is a (document, user) role grant. The document owner is
// never recorded as a collaborator; ownership lives on the document row.
type Collaborator struct {
	DocumentID  string
	UserID      string
	DisplayName string
	Email       string
	Role        string
	CreatedAt   time.Time
}

// Version is an immutable snapshot of a document's content and title.
type Version struct {
	ID         string
	DocumentID string
	Title      string
	Content    string
	CreatedBy  string
	CreatedAt  time.Time
}

// DocumentPatch names exactly the fields an update may change. A nil
// field is left untouched; SetFolderID distinguishes "move to root"
// (true, nil FolderID) from "leave placement alone".
type DocumentPatch struct {
	Title       *string
	Content     *string
	FolderID    *string
	SetFolderID bool
}

func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && !p.SetFolderID
}
