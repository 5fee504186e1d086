// internal/types/interfaces.go
package types

import (
	"context"
)

type CategoryStore interface {
	Create(ctx context.Context, owner OwnerID, name string) (*Category, error)
	Rename(ctx context.Context, owner OwnerID, id CategoryID, newName string) error
	// Delete removes the category and every reference filed under it in a
	// single atomic step.
	Delete(ctx context.Context, owner OwnerID, id CategoryID) error
	Get(ctx context.Context, owner OwnerID, id CategoryID) (*Category, error)
	List(ctx context.Context, owner OwnerID) ([]*Category, error)
}

type ReferenceStore interface {
	Add(ctx context.Context, owner OwnerID, category CategoryID, chat ChatID, message MessageID, kind ContentKind) (*MessageReference, error)
	ListReferences(ctx context.Context, owner OwnerID, category CategoryID) ([]*MessageReference, error)
	DeleteReference(ctx context.Context, owner OwnerID, id ReferenceID) error
}

type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Tail(ctx context.Context, owner OwnerID, limit int) ([]*AuditEntry, error)
	Count(ctx context.Context, owner OwnerID) (int64, error)
}
