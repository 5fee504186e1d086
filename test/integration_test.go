//go:build integration

package test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/stashbot/internal/gateway"
	"github.com/user/stashbot/internal/router"
	"github.com/user/stashbot/internal/session"
	"github.com/user/stashbot/internal/state"
	"github.com/user/stashbot/internal/types"
)

type harness struct {
	store *state.Store
	audit *state.AuditStore
	gw    *gateway.Gateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	store := state.NewStore(filepath.Join(dir, "stash.json"))
	audit := state.NewAuditStore(dir)
	sessions := session.NewStore()
	rt := router.New(store, store, audit, sessions)

	gw := gateway.New(2)
	gw.Queue.SetProcessor(rt.Process)
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)

	return &harness{store: store, audit: audit, gw: gw}
}

// send pushes one event through the gateway and waits for its reply.
func (h *harness) send(t *testing.T, ev *types.InboundEvent) *types.Outbound {
	t.Helper()
	replies := make(chan *types.Outbound, 1)
	err := h.gw.HandleInbound(context.Background(), ev, gateway.WithOnReply(func(out *types.Outbound) {
		replies <- out
	}))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case out := <-replies:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reply")
		return nil
	}
}

// firstButton returns the callback data of the first button on the keyboard.
func firstButton(t *testing.T, out *types.Outbound) string {
	t.Helper()
	if out.Keyboard == nil || len(out.Keyboard.Rows) == 0 || len(out.Keyboard.Rows[0]) == 0 {
		t.Fatal("expected a keyboard with at least one button")
	}
	return out.Keyboard.Rows[0][0].Data
}

func TestEndToEndFiling(t *testing.T) {
	h := newHarness(t)
	owner := types.OwnerID("user1")
	ctx := context.Background()

	// Create a category through the conversation.
	h.send(t, &types.InboundEvent{Owner: owner, ChatID: 10, Kind: types.EventCommand, Command: "new"})
	h.send(t, &types.InboundEvent{Owner: owner, ChatID: 10, Kind: types.EventText, Text: "Receipts"})

	cats, err := h.store.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].Name != "Receipts" {
		t.Fatalf("expected one category Receipts, got %v", cats)
	}

	// Forward a photo and pick the category from the offered keyboard.
	prompt := h.send(t, &types.InboundEvent{
		Owner:     owner,
		ChatID:    10,
		Kind:      types.EventForward,
		MessageID: 777,
		Content:   types.ContentPhoto,
	})
	h.send(t, &types.InboundEvent{
		Owner:    owner,
		ChatID:   10,
		Kind:     types.EventCallback,
		Callback: firstButton(t, prompt),
	})

	refs, err := h.store.ListReferences(ctx, owner, cats[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 filed reference, got %d", len(refs))
	}
	if refs[0].ChatID != 10 || refs[0].MessageID != 777 || refs[0].Kind != types.ContentPhoto {
		t.Errorf("stored reference does not match the forward: %+v", refs[0])
	}

	// Browsing re-delivers the filed reference.
	out := h.send(t, &types.InboundEvent{
		Owner:    owner,
		ChatID:   10,
		Kind:     types.EventCallback,
		Callback: "cat:view:" + string(cats[0].ID),
	})
	if len(out.Redeliver) != 1 || out.Redeliver[0].ID != refs[0].ID {
		t.Errorf("expected the filed reference re-delivered, got %v", out.Redeliver)
	}

	// Both store mutations were audited.
	count, err := h.audit.Count(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 audit entries (create, file), got %d", count)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Two owners run the create flow concurrently with the same name.
	for _, owner := range []types.OwnerID{"alice", "bob"} {
		h.send(t, &types.InboundEvent{Owner: owner, ChatID: 1, Kind: types.EventCommand, Command: "new"})
		h.send(t, &types.InboundEvent{Owner: owner, ChatID: 1, Kind: types.EventText, Text: "Inbox"})
	}

	for _, owner := range []types.OwnerID{"alice", "bob"} {
		cats, err := h.store.List(ctx, owner)
		if err != nil {
			t.Fatal(err)
		}
		if len(cats) != 1 || cats[0].Name != "Inbox" {
			t.Errorf("%s: expected own Inbox category, got %v", owner, cats)
		}
	}
}

func TestCascadeDeleteEndToEnd(t *testing.T) {
	h := newHarness(t)
	owner := types.OwnerID("user1")
	ctx := context.Background()

	cat, err := h.store.Create(ctx, owner, "Scratch")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Add(ctx, owner, cat.ID, 1, 2, types.ContentVideo); err != nil {
		t.Fatal(err)
	}

	h.send(t, &types.InboundEvent{
		Owner:    owner,
		ChatID:   1,
		Kind:     types.EventCallback,
		Callback: "cat:delete:" + string(cat.ID),
	})
	out := h.send(t, &types.InboundEvent{
		Owner:    owner,
		ChatID:   1,
		Kind:     types.EventCallback,
		Callback: "cat:confirmdel:" + string(cat.ID),
	})
	if out == nil {
		t.Fatal("expected a reply")
	}

	cats, err := h.store.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 0 {
		t.Errorf("expected category deleted, got %v", cats)
	}
}
