// Package uihost defines the capability the connection state machine uses
// to reach the host application's UI thread, per spec.md §9's redesign
// note: the original couples I/O callbacks directly to a UI framework's
// single-thread invariant; this package expresses that coupling as a
// narrow capability instead, so the core never imports a GUI library.
package uihost

import "context"

// AuthOutcome is the result of a modal dialog shown to the user, e.g. the
// "a new client wants to pair" confirmation.
type AuthOutcome struct {
	Approved bool
}

// DialogParams describes a modal dialog to present on the UI thread.
type DialogParams struct {
	Title             string
	Message           string
	VisualPassword    string
	ClientDisplayName string
}

// Host is the capability the core depends on for anything that must run on
// the host application's UI thread: posting a function (e.g. a config-bag
// save, per spec.md §5's "the host's config writer is not thread-safe"),
// and showing a modal dialog without blocking the caller's own task.
type Host interface {
	// Post schedules fn to run on the UI thread and returns immediately.
	Post(fn func())

	// PostModalDialog schedules a modal dialog on the UI thread and
	// returns a channel delivering the user's outcome once the dialog is
	// dismissed. The channel is closed after the single outcome is sent.
	PostModalDialog(ctx context.Context, params DialogParams) <-chan AuthOutcome
}
