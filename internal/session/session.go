// internal/session/session.go

// Package session holds per-owner conversational state. A session tracks
// which multi-step flow (create, rename, delete, browse, file) is in
// progress; it lives in process memory only and is always reset to Idle when
// a flow completes or is cancelled.
package session

import (
	"sync"
	"time"

	"github.com/user/stashbot/internal/types"
)

// State tags which flow an owner is in. The router switches exhaustively on
// this, so adding a state means updating every switch.
type State string

const (
	Idle                  State = "idle"
	AwaitingCreateName    State = "awaiting_create_name"
	AwaitingRenameName    State = "awaiting_rename_name"
	AwaitingDeleteConfirm State = "awaiting_delete_confirm"
	Browsing              State = "browsing"
	AwaitingFilingChoice  State = "awaiting_filing_choice"
)

// PendingRef is a forwardable message held while the owner picks a category.
// It is never persisted; abandoning the flow discards it.
type PendingRef struct {
	ChatID    types.ChatID
	MessageID types.MessageID
	Kind      types.ContentKind
}

// Session is one owner's conversational state. Only the fields relevant to
// the current State are meaningful.
type Session struct {
	Owner        types.OwnerID
	State        State
	RenameTarget types.CategoryID
	DeleteTarget types.CategoryID
	BrowseTarget types.CategoryID
	Pending      *PendingRef
	UpdatedAt    time.Time
}

// idle returns s reset to Idle with all flow payload cleared.
func (s *Session) idle() {
	s.State = Idle
	s.RenameTarget = ""
	s.DeleteTarget = ""
	s.BrowseTarget = ""
	s.Pending = nil
}

// Store keeps exactly one Session per owner, created lazily as Idle.
// It does not serialize event handling; the gateway's per-owner lanes do.
type Store struct {
	mu       sync.Mutex
	sessions map[types.OwnerID]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[types.OwnerID]*Session)}
}

// Get returns a copy of the owner's session, creating an Idle one if needed.
func (s *Store) Get(owner types.OwnerID) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[owner]
	if !ok {
		sess = &Session{Owner: owner, State: Idle, UpdatedAt: time.Now()}
		s.sessions[owner] = sess
	}
	return *sess
}

// Put replaces the owner's session with the given snapshot.
func (s *Store) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = time.Now()
	s.sessions[sess.Owner] = &sess
}

// Reset forces the owner's session back to Idle, discarding any pending
// reference. This is the universal escape hatch.
func (s *Store) Reset(owner types.OwnerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[owner]
	if !ok {
		sess = &Session{Owner: owner}
		s.sessions[owner] = sess
	}
	sess.idle()
	sess.UpdatedAt = time.Now()
}

// SweepStale resets every session stuck mid-flow for longer than ttl and
// returns how many were reset. Idle sessions are left alone.
func (s *Store) SweepStale(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	var swept int
	for _, sess := range s.sessions {
		if sess.State != Idle && sess.UpdatedAt.Before(cutoff) {
			sess.idle()
			sess.UpdatedAt = time.Now()
			swept++
		}
	}
	return swept
}
