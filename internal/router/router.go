// internal/router/router.go

// Package router maps each inbound event, combined with the owner's current
// session state, to exactly one state transition, store operation, and
// outbound response. Store errors are translated into fixed user-facing
// messages and never surfaced raw.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/stashbot/internal/gateway"
	"github.com/user/stashbot/internal/session"
	"github.com/user/stashbot/internal/state"
	"github.com/user/stashbot/internal/types"
)

// DefaultPageSize caps how many references are re-delivered per browse.
const DefaultPageSize = 20

// Fixed user-facing strings. No internal identifiers or error detail leaks
// through these.
const (
	msgWelcome        = "Hi! Forward me anything and I'll file it into your categories. Use the menu below to browse them."
	msgMainMenu       = "Main Menu:"
	msgAskCreateName  = "Enter a name for the new category:"
	msgAskRenameName  = "Enter the new name for this category:"
	msgAskText        = "Please send the name as plain text."
	msgDuplicate      = "A category with that name already exists. Try another name:"
	msgGone           = "That category no longer exists."
	msgUnavailable    = "Storage is temporarily unavailable. Please try again in a moment."
	msgDeleteCancel   = "Deletion cancelled."
	msgDeleted        = "🔥 Category and everything in it deleted."
	msgNothingPending = "Nothing is waiting to be filed. Forward me a message first."
	msgAskFiling      = "Where should I file this?"
	msgNoCategories   = "You have no categories yet. Create one first, then forward me the message again."
	msgIdleHelp       = "Forward me a message to file it, or pick a category below."
	msgRefDeleted     = "🗑 Removed from the category."
	msgRefGone        = "That item was already removed."
)

var msgInvalidName = fmt.Sprintf("Category names must be between 1 and %d characters. Try again:", state.MaxNameLength)

// Router is the conversational command router. It owns no durable state of
// its own; sessions live in the session store and rows live in the stores.
type Router struct {
	categories types.CategoryStore
	references types.ReferenceStore
	audit      types.AuditStore
	sessions   *session.Store
	retry      *gateway.RetryPolicy
	pageSize   int
}

// Option configures a Router.
type Option func(*Router)

// WithPageSize overrides how many references a browse re-delivers at most.
func WithPageSize(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(p *gateway.RetryPolicy) Option {
	return func(r *Router) { r.retry = p }
}

// New creates a Router over the given stores. The audit store may be nil.
func New(categories types.CategoryStore, references types.ReferenceStore, audit types.AuditStore, sessions *session.Store, opts ...Option) *Router {
	r := &Router{
		categories: categories,
		references: references,
		audit:      audit,
		sessions:   sessions,
		retry:      gateway.DefaultRetryPolicy(),
		pageSize:   DefaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process handles one run. It reads the latest session for the owner,
// dispatches on (state, event kind), persists the advanced session, and
// replies. It is the gateway queue's processor; per-owner serialization is
// guaranteed by the caller.
func (r *Router) Process(run *gateway.Run) error {
	ev := run.Event
	if ev == nil {
		return errors.New("run has no event")
	}
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	sess := r.sessions.Get(ev.Owner)
	out := r.dispatch(ctx, &sess, ev)
	r.sessions.Put(sess)

	if out != nil {
		if out.ChatID == 0 {
			out.ChatID = ev.ChatID
		}
		run.Reply(out)
	}
	return nil
}

// reset returns the session to Idle, discarding all flow payload.
func reset(sess *session.Session) {
	*sess = session.Session{Owner: sess.Owner, State: session.Idle}
}

func (r *Router) dispatch(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	// Top-level commands and the menu callback are the universal escape
	// hatch: they work from every state and never mutate the stores.
	if ev.Kind == types.EventCommand {
		return r.handleCommand(ctx, sess, ev)
	}
	if ev.Kind == types.EventCallback && ev.Callback == cbMenu {
		reset(sess)
		return r.menuReply(ctx, ev, msgMainMenu)
	}

	switch sess.State {
	case session.Idle:
		return r.inIdle(ctx, sess, ev)
	case session.AwaitingCreateName:
		return r.inCreateName(ctx, sess, ev)
	case session.AwaitingRenameName:
		return r.inRenameName(ctx, sess, ev)
	case session.AwaitingDeleteConfirm:
		return r.inDeleteConfirm(ctx, sess, ev)
	case session.Browsing:
		return r.inBrowsing(ctx, sess, ev)
	case session.AwaitingFilingChoice:
		return r.inFilingChoice(ctx, sess, ev)
	default:
		// Unknown state tag; recover rather than crash.
		slog.Warn("unknown session state", "owner", string(ev.Owner), "state", string(sess.State))
		reset(sess)
		return r.menuReply(ctx, ev, msgMainMenu)
	}
}

func (r *Router) handleCommand(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	switch ev.Command {
	case "start":
		reset(sess)
		return r.menuReply(ctx, ev, msgWelcome)
	case "menu", "cancel":
		reset(sess)
		return r.menuReply(ctx, ev, msgMainMenu)
	case "new":
		reset(sess)
		sess.State = session.AwaitingCreateName
		return &types.Outbound{Text: msgAskCreateName, Keyboard: cancelMenu()}
	case "help":
		reset(sess)
		return r.menuReply(ctx, ev, msgIdleHelp)
	default:
		if sess.State == session.AwaitingDeleteConfirm {
			// Anything but an explicit confirm cancels the delete.
			reset(sess)
			return r.menuReply(ctx, ev, msgDeleteCancel)
		}
		return &types.Outbound{Text: "Unknown command. Available: /start, /menu, /new, /cancel, /help"}
	}
}

// menuReply renders text plus the live main menu.
func (r *Router) menuReply(ctx context.Context, ev *types.InboundEvent, text string) *types.Outbound {
	kb, err := r.mainMenu(ctx, ev.Owner)
	if err != nil {
		return &types.Outbound{Text: msgUnavailable}
	}
	return &types.Outbound{Text: text, Keyboard: kb}
}

func (r *Router) inIdle(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	switch ev.Kind {
	case types.EventForward:
		return r.startFiling(ctx, sess, ev)
	case types.EventCallback:
		return r.navCallback(ctx, sess, ev)
	default:
		return r.menuReply(ctx, ev, msgIdleHelp)
	}
}

// navCallback handles the category-navigation callbacks shared by the Idle
// and Browsing states.
func (r *Router) navCallback(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	data := ev.Callback

	if data == cbNewCategory {
		reset(sess)
		sess.State = session.AwaitingCreateName
		return &types.Outbound{Text: msgAskCreateName, Keyboard: cancelMenu()}
	}
	if id, ok := categoryArg(data, cbViewPrefix); ok {
		return r.browse(ctx, sess, ev, id)
	}
	if id, ok := categoryArg(data, cbSettingsPrefix); ok {
		cat, err := r.getCategory(ctx, ev.Owner, id)
		if err != nil {
			return r.categoryLookupFailed(ctx, sess, ev, err)
		}
		return &types.Outbound{Text: "Control Panel — 📁 " + cat.Name, Keyboard: settingsMenu(id)}
	}
	if id, ok := categoryArg(data, cbRenamePrefix); ok {
		cat, err := r.getCategory(ctx, ev.Owner, id)
		if err != nil {
			return r.categoryLookupFailed(ctx, sess, ev, err)
		}
		reset(sess)
		sess.State = session.AwaitingRenameName
		sess.RenameTarget = id
		return &types.Outbound{Text: fmt.Sprintf("Renaming 📁 %s. %s", cat.Name, msgAskRenameName), Keyboard: cancelMenu()}
	}
	if id, ok := categoryArg(data, cbDeletePrefix); ok {
		cat, err := r.getCategory(ctx, ev.Owner, id)
		if err != nil {
			return r.categoryLookupFailed(ctx, sess, ev, err)
		}
		reset(sess)
		sess.State = session.AwaitingDeleteConfirm
		sess.DeleteTarget = id
		return &types.Outbound{
			Text:     fmt.Sprintf("Delete 📁 %s and everything filed in it? This cannot be undone.", cat.Name),
			Keyboard: confirmDeleteMenu(id),
		}
	}
	if id, ok := referenceArg(data); ok {
		return r.deleteReference(ctx, ev, id)
	}
	if _, ok := categoryArg(data, cbFilePrefix); ok {
		return r.menuReply(ctx, ev, msgNothingPending)
	}

	return r.menuReply(ctx, ev, msgIdleHelp)
}

// browse re-delivers the latest stored references of a category and moves
// the session into Browsing.
func (r *Router) browse(ctx context.Context, sess *session.Session, ev *types.InboundEvent, id types.CategoryID) *types.Outbound {
	cat, err := r.getCategory(ctx, ev.Owner, id)
	if err != nil {
		return r.categoryLookupFailed(ctx, sess, ev, err)
	}

	var refs []*types.MessageReference
	err = r.retry.Execute(func() error {
		var err error
		refs, err = r.references.ListReferences(ctx, ev.Owner, id)
		return err
	})
	if err != nil {
		return r.categoryLookupFailed(ctx, sess, ev, err)
	}

	reset(sess)
	sess.State = session.Browsing
	sess.BrowseTarget = id

	total := len(refs)
	if total > r.pageSize {
		refs = refs[total-r.pageSize:]
	}

	text := fmt.Sprintf("📁 %s — %d item(s). Forward me something to add it here.", cat.Name, total)
	if total == 0 {
		text = fmt.Sprintf("📁 %s is empty. Forward me something to add it here.", cat.Name)
	} else if total > len(refs) {
		text = fmt.Sprintf("📁 %s — showing the latest %d of %d items. Forward me something to add it here.", cat.Name, len(refs), total)
	}

	return &types.Outbound{Text: text, Keyboard: browseMenu(id), Redeliver: refs}
}

func (r *Router) inCreateName(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	if ev.Kind != types.EventText {
		return &types.Outbound{Text: msgAskText, Keyboard: cancelMenu()}
	}

	var cat *types.Category
	err := r.retry.Execute(func() error {
		var err error
		cat, err = r.categories.Create(ctx, ev.Owner, ev.Text)
		return err
	})
	switch {
	case err == nil:
		r.record(ctx, &types.AuditEntry{Owner: ev.Owner, Action: state.AuditCategoryCreated, CategoryID: cat.ID, Detail: cat.Name})
		reset(sess)
		return r.menuReply(ctx, ev, fmt.Sprintf("✅ Category %q created.", cat.Name))
	case errors.Is(err, types.ErrDuplicateName):
		return &types.Outbound{Text: msgDuplicate, Keyboard: cancelMenu()}
	case errors.Is(err, types.ErrInvalidInput):
		return &types.Outbound{Text: msgInvalidName, Keyboard: cancelMenu()}
	default:
		// Transient failure already retried once; session unchanged so the
		// user can simply resend the name.
		return &types.Outbound{Text: msgUnavailable, Keyboard: cancelMenu()}
	}
}

func (r *Router) inRenameName(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	if ev.Kind != types.EventText {
		return &types.Outbound{Text: msgAskText, Keyboard: cancelMenu()}
	}

	target := sess.RenameTarget
	err := r.retry.Execute(func() error {
		return r.categories.Rename(ctx, ev.Owner, target, ev.Text)
	})
	switch {
	case err == nil:
		r.record(ctx, &types.AuditEntry{Owner: ev.Owner, Action: state.AuditCategoryRenamed, CategoryID: target, Detail: ev.Text})
		reset(sess)
		return r.menuReply(ctx, ev, fmt.Sprintf("✅ Category renamed to %q.", ev.Text))
	case errors.Is(err, types.ErrDuplicateName):
		return &types.Outbound{Text: msgDuplicate, Keyboard: cancelMenu()}
	case errors.Is(err, types.ErrInvalidInput):
		return &types.Outbound{Text: msgInvalidName, Keyboard: cancelMenu()}
	case errors.Is(err, types.ErrNotFound):
		// Deleted out from under us; the flow cannot continue.
		reset(sess)
		return r.menuReply(ctx, ev, msgGone)
	default:
		return &types.Outbound{Text: msgUnavailable, Keyboard: cancelMenu()}
	}
}

func (r *Router) inDeleteConfirm(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	target := sess.DeleteTarget

	confirmed := false
	if ev.Kind == types.EventCallback {
		if id, ok := categoryArg(ev.Callback, cbConfirmPrefix); ok && id == target {
			confirmed = true
		}
	}
	if !confirmed {
		// Any input other than the explicit confirm cancels without deleting.
		reset(sess)
		return r.menuReply(ctx, ev, msgDeleteCancel)
	}

	err := r.retry.Execute(func() error {
		return r.categories.Delete(ctx, ev.Owner, target)
	})
	switch {
	case err == nil:
		r.record(ctx, &types.AuditEntry{Owner: ev.Owner, Action: state.AuditCategoryDeleted, CategoryID: target})
		reset(sess)
		return r.menuReply(ctx, ev, msgDeleted)
	case errors.Is(err, types.ErrNotFound):
		reset(sess)
		return r.menuReply(ctx, ev, msgGone)
	default:
		// Leave the confirmation pending; the user can tap confirm again.
		return &types.Outbound{Text: msgUnavailable, Keyboard: confirmDeleteMenu(target)}
	}
}

func (r *Router) inBrowsing(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	switch ev.Kind {
	case types.EventForward:
		// While browsing a category, forwarded content files straight into it.
		return r.fileInto(ctx, sess, ev, sess.BrowseTarget, &session.PendingRef{
			ChatID:    ev.ChatID,
			MessageID: ev.MessageID,
			Kind:      ev.Content,
		})
	case types.EventCallback:
		return r.navCallback(ctx, sess, ev)
	default:
		return &types.Outbound{Text: "Forward me something to file it here, or use the buttons.", Keyboard: browseMenu(sess.BrowseTarget)}
	}
}

// startFiling holds the forwardable message in the session and asks the user
// to pick a category. The pending reference is process-resident only.
func (r *Router) startFiling(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	kb, count, err := r.filingMenu(ctx, ev.Owner)
	if err != nil {
		return &types.Outbound{Text: msgUnavailable}
	}
	if count == 0 {
		reset(sess)
		return r.menuReply(ctx, ev, msgNoCategories)
	}

	reset(sess)
	sess.State = session.AwaitingFilingChoice
	sess.Pending = &session.PendingRef{
		ChatID:    ev.ChatID,
		MessageID: ev.MessageID,
		Kind:      ev.Content,
	}
	return &types.Outbound{Text: msgAskFiling, Keyboard: kb}
}

func (r *Router) inFilingChoice(ctx context.Context, sess *session.Session, ev *types.InboundEvent) *types.Outbound {
	switch ev.Kind {
	case types.EventForward:
		// A newer forward replaces the pending one.
		return r.startFiling(ctx, sess, ev)
	case types.EventCallback:
		if id, ok := categoryArg(ev.Callback, cbFilePrefix); ok {
			if sess.Pending == nil {
				reset(sess)
				return r.menuReply(ctx, ev, msgNothingPending)
			}
			return r.fileInto(ctx, sess, ev, id, sess.Pending)
		}
	}

	kb, _, err := r.filingMenu(ctx, ev.Owner)
	if err != nil {
		return &types.Outbound{Text: msgUnavailable}
	}
	return &types.Outbound{Text: msgAskFiling, Keyboard: kb}
}

// fileInto completes a filing: the reference row is created and the session
// returns to Idle. On transient failure the session (and pending reference)
// is left untouched so a retry resumes correctly.
func (r *Router) fileInto(ctx context.Context, sess *session.Session, ev *types.InboundEvent, id types.CategoryID, pending *session.PendingRef) *types.Outbound {
	cat, err := r.getCategory(ctx, ev.Owner, id)
	if err != nil {
		return r.categoryLookupFailed(ctx, sess, ev, err)
	}

	var ref *types.MessageReference
	err = r.retry.Execute(func() error {
		var err error
		ref, err = r.references.Add(ctx, ev.Owner, id, pending.ChatID, pending.MessageID, pending.Kind)
		return err
	})
	switch {
	case err == nil:
		r.record(ctx, &types.AuditEntry{Owner: ev.Owner, Action: state.AuditReferenceFiled, CategoryID: id, ReferenceID: ref.ID, Detail: string(ref.Kind)})
		reset(sess)
		return r.menuReply(ctx, ev, fmt.Sprintf("✅ Saved to 📁 %s.", cat.Name))
	case errors.Is(err, types.ErrNotFound):
		reset(sess)
		return r.menuReply(ctx, ev, msgGone)
	default:
		return &types.Outbound{Text: msgUnavailable}
	}
}

// deleteReference removes one filed item. Valid from Idle and Browsing; it
// does not advance the session.
func (r *Router) deleteReference(ctx context.Context, ev *types.InboundEvent, id types.ReferenceID) *types.Outbound {
	err := r.retry.Execute(func() error {
		return r.references.DeleteReference(ctx, ev.Owner, id)
	})
	switch {
	case err == nil:
		r.record(ctx, &types.AuditEntry{Owner: ev.Owner, Action: state.AuditReferenceDeleted, ReferenceID: id})
		return &types.Outbound{Text: msgRefDeleted}
	case errors.Is(err, types.ErrNotFound):
		return &types.Outbound{Text: msgRefGone}
	default:
		return &types.Outbound{Text: msgUnavailable}
	}
}

// getCategory re-validates a category against the store with retry. The
// session never trusts cached assumptions about what still exists.
func (r *Router) getCategory(ctx context.Context, owner types.OwnerID, id types.CategoryID) (*types.Category, error) {
	var cat *types.Category
	err := r.retry.Execute(func() error {
		var err error
		cat, err = r.categories.Get(ctx, owner, id)
		return err
	})
	return cat, err
}

// categoryLookupFailed translates a failed category lookup: missing rows
// reset the flow, transient failures leave the session unchanged.
func (r *Router) categoryLookupFailed(ctx context.Context, sess *session.Session, ev *types.InboundEvent, err error) *types.Outbound {
	if errors.Is(err, types.ErrNotFound) {
		reset(sess)
		return r.menuReply(ctx, ev, msgGone)
	}
	return &types.Outbound{Text: msgUnavailable}
}

// record appends an audit entry, best-effort. Audit failures are logged and
// never shown to the user.
func (r *Router) record(ctx context.Context, entry *types.AuditEntry) {
	if r.audit == nil {
		return
	}
	entry.ID = types.NewAuditID()
	entry.At = time.Now()
	if err := r.audit.Append(ctx, entry); err != nil {
		slog.Warn("audit append failed", "owner", string(entry.Owner), "action", entry.Action, "error", err)
	}
}
