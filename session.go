// Package shiftsync is the offline-first request core of the workforce
// scheduling client: a durable store of shift-take, exchange and approval
// requests, an action queue that survives network loss, and a reconciler
// that merges server state back in on reconnect.
//
// The host application owns rendering, navigation and authentication; it
// embeds this package by opening a Session at sign-in and closing it at
// sign-out.
package shiftsync

import (
	"context"

	"shiftsync/bootstrap"
	"shiftsync/internal/infra/connectivity"
	"shiftsync/internal/usecase/commands"
	"shiftsync/internal/usecase/queries"
	syncuc "shiftsync/internal/usecase/sync"

	"go.uber.org/fx"
)

// Session is the explicit handle replacing any client-wide singletons: every
// component hangs off it and dies with it.
type Session struct {
	app *fx.App

	Actions    commands.ActionCommands
	Bulk       commands.BulkProcessor
	Queries    queries.RequestQueries
	Monitor    *connectivity.Monitor
	Reconciler *syncuc.Reconciler
}

// NewSession wires the full component graph. Extra fx options let the host
// application override pieces (a custom Notifier, a fake gateway in tests).
func NewSession(opts ...fx.Option) *Session {
	s := &Session{}

	options := []fx.Option{
		bootstrap.Module,
		fx.Populate(&s.Actions, &s.Bulk, &s.Queries, &s.Monitor, &s.Reconciler),
		fx.NopLogger,
	}
	options = append(options, opts...)

	s.app = fx.New(options...)
	return s
}

// Start opens the store, launches the connectivity monitor and the sync
// runner. Returns the app construction error if wiring failed.
func (s *Session) Start(ctx context.Context) error {
	return s.app.Start(ctx)
}

// Stop flushes nothing on purpose: the queue is durable, so unsent actions
// simply wait for the next session.
func (s *Session) Stop(ctx context.Context) error {
	return s.app.Stop(ctx)
}
