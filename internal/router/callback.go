// internal/router/callback.go
package router

import (
	"strings"

	"github.com/user/stashbot/internal/types"
)

// Callback data is an opaque "ns:verb[:id]" string round-tripped through the
// transport's keyboard buttons.
const (
	cbMenu           = "nav:menu"
	cbNewCategory    = "nav:new"
	cbViewPrefix     = "cat:view:"
	cbSettingsPrefix = "cat:settings:"
	cbRenamePrefix   = "cat:rename:"
	cbDeletePrefix   = "cat:delete:"
	cbConfirmPrefix  = "cat:confirmdel:"
	cbFilePrefix     = "cat:file:"
	cbRefDelPrefix   = "ref:del:"
)

func viewCallback(id types.CategoryID) string     { return cbViewPrefix + string(id) }
func settingsCallback(id types.CategoryID) string { return cbSettingsPrefix + string(id) }
func renameCallback(id types.CategoryID) string   { return cbRenamePrefix + string(id) }
func deleteCallback(id types.CategoryID) string   { return cbDeletePrefix + string(id) }
func confirmCallback(id types.CategoryID) string  { return cbConfirmPrefix + string(id) }
func fileCallback(id types.CategoryID) string     { return cbFilePrefix + string(id) }

// RefDeleteCallback is the callback attached to each re-delivered item.
// Exported so the transport adapter can build per-item delete buttons.
func RefDeleteCallback(id types.ReferenceID) string { return cbRefDelPrefix + string(id) }

// categoryArg extracts the category id from a prefixed callback, or "" if the
// callback doesn't carry that prefix.
func categoryArg(data, prefix string) (types.CategoryID, bool) {
	if !strings.HasPrefix(data, prefix) {
		return "", false
	}
	return types.CategoryID(strings.TrimPrefix(data, prefix)), true
}

func referenceArg(data string) (types.ReferenceID, bool) {
	if !strings.HasPrefix(data, cbRefDelPrefix) {
		return "", false
	}
	return types.ReferenceID(strings.TrimPrefix(data, cbRefDelPrefix)), true
}
