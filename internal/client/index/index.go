// Package index declares the full-text search collaborator. The vault
// service pushes item changes to it best-effort; a failing indexer never
// fails the vault operation.
package index

import (
	"context"
	"strings"
)

const (
	TypeNote = "note"
	TypeURL  = "url"
)

// Document is one searchable item.
type Document struct {
	ID        string
	Title     string
	Content   string
	Type      string
	CreatedAt string
	UpdatedAt string
	Path      *string
	Tags      []string
}

type Indexer interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
}

// ItemType classifies content: links are indexed as urls, everything else
// as notes.
func ItemType(content string) string {
	c := strings.TrimSpace(content)
	if strings.HasPrefix(c, "http://") || strings.HasPrefix(c, "https://") {
		return TypeURL
	}
	return TypeNote
}

// Nop discards every call.
type Nop struct{}

func (Nop) Upsert(context.Context, Document) error { return nil }
func (Nop) Delete(context.Context, string) error   { return nil }
