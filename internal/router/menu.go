// internal/router/menu.go
package router

import (
	"context"

	"github.com/user/stashbot/internal/types"
)

// mainMenu builds the persistent top-level keyboard: one button per category
// plus a "new category" action. Built from a live store read every time.
func (r *Router) mainMenu(ctx context.Context, owner types.OwnerID) (*types.Keyboard, error) {
	var cats []*types.Category
	err := r.retry.Execute(func() error {
		var err error
		cats, err = r.categories.List(ctx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}

	kb := &types.Keyboard{}
	row := make([]types.Button, 0, 2)
	for _, cat := range cats {
		row = append(row, types.Button{Label: "📁 " + cat.Name, Data: viewCallback(cat.ID)})
		if len(row) == 2 {
			kb.Rows = append(kb.Rows, row)
			row = make([]types.Button, 0, 2)
		}
	}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}
	kb.Rows = append(kb.Rows, []types.Button{{Label: "➕ New Category", Data: cbNewCategory}})
	return kb, nil
}

// filingMenu lists the owner's categories as filing targets for a pending
// forwardable message.
func (r *Router) filingMenu(ctx context.Context, owner types.OwnerID) (*types.Keyboard, int, error) {
	var cats []*types.Category
	err := r.retry.Execute(func() error {
		var err error
		cats, err = r.categories.List(ctx, owner)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	kb := &types.Keyboard{}
	for _, cat := range cats {
		kb.Rows = append(kb.Rows, []types.Button{{Label: "📁 " + cat.Name, Data: fileCallback(cat.ID)}})
	}
	kb.Rows = append(kb.Rows, []types.Button{{Label: "❌ Cancel", Data: cbMenu}})
	return kb, len(cats), nil
}

func settingsMenu(id types.CategoryID) *types.Keyboard {
	return &types.Keyboard{Rows: [][]types.Button{
		{{Label: "✏️ Rename", Data: renameCallback(id)}},
		{{Label: "🔥 Delete", Data: deleteCallback(id)}},
		{{Label: "⬅️ Back", Data: cbMenu}},
	}}
}

func confirmDeleteMenu(id types.CategoryID) *types.Keyboard {
	return &types.Keyboard{Rows: [][]types.Button{
		{{Label: "🔥 Yes, delete it", Data: confirmCallback(id)}},
		{{Label: "❌ Cancel", Data: cbMenu}},
	}}
}

func cancelMenu() *types.Keyboard {
	return &types.Keyboard{Rows: [][]types.Button{
		{{Label: "❌ Cancel", Data: cbMenu}},
	}}
}

func browseMenu(id types.CategoryID) *types.Keyboard {
	return &types.Keyboard{Rows: [][]types.Button{
		{{Label: "⚙️ Category Settings", Data: settingsCallback(id)}},
		{{Label: "⬅️ Main Menu", Data: cbMenu}},
	}}
}
