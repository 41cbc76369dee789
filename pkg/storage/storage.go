package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a snippet id has no entry.
var ErrNotFound = errors.New("snippet not found")

// Snippet is a stored piece of text, the unit of data the demo service
// serves.
type Snippet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence interface for snippets.
type Store interface {
	CreateSnippet(ctx context.Context, s *Snippet) error
	GetSnippet(ctx context.Context, id string) (*Snippet, error)
	ListSnippets(ctx context.Context) ([]*Snippet, error)
	DeleteSnippet(ctx context.Context, id string) error
	Close() error
}
