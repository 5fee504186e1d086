// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/stashbot/internal/types"

// Compile-time interface compliance checks.
var _ types.CategoryStore = (*Store)(nil)
var _ types.ReferenceStore = (*Store)(nil)
var _ types.AuditStore = (*AuditStore)(nil)
