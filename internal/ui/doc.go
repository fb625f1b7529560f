// Package ui implements the interactive change set review using bubbletea's Elm architecture.
//
// The review moves through three views:
//  1. [LoadingView] : streams engine progress while a preview is computed
//  2. [ReviewView] : lists every change with a toggle; all changes start approved
//  3. [ConfirmView] : asks before handing the approved ids back to the caller
//
// The [Model] never applies anything itself. [Review] returns the approved change ids and the
// caller passes them to the engine, so the TUI only decides which changes to keep.
//
// Keyboard navigation uses vim-style bindings (j/k, space, a/x, enter, esc, y/n, q) with contextual
// help displayed via charmbracelet/bubbles/help.
package ui
