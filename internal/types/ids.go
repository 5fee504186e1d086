// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type OwnerID string
type CategoryID string
type ReferenceID string
type RunID string
type AuditID string

// ChatID and MessageID identify platform-hosted content. The core treats them
// as opaque; only the transport adapter can resolve them back to a message.
type ChatID int64
type MessageID int64

func NewCategoryID() CategoryID {
	return CategoryID(uuid.New().String())
}

func NewReferenceID() ReferenceID {
	return ReferenceID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewAuditID() AuditID {
	return AuditID(uuid.New().String())
}
