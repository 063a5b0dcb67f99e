// Package store implements the data access layer for the per-VM control agent.
//
// Storage is two sqlite3 files per agent instance, in the VM folder, holding
// the state that must survive a restart: one file for registered triggers
// and watcher subscriptions, the other for the per-action permission table.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                         │
//	├─────────────────────────┬───────────────────┬──────────────────┤
//	│     TriggerStore        │   WatcherStore     │ PermissionStore  │
//	│         ▼               │        ▼           │       ▼          │
//	│      triggers           │     watchers       │   permissions    │
//	└─────────────────────────┴───────────────────┴──────────────────┘
//
// # Data Sources
//
// Tables created by local migrations (internal/store/migrations.go):
//
//	┌────────────────┬─────────────────────────────────────────────┐
//	│  Table         │  Purpose                                    │
//	├────────────────┼─────────────────────────────────────────────┤
//	│  triggers      │  Persisted trigger conditions, replayed     │
//	│                │  into memory at load time                   │
//	│  watchers      │  Persisted watcher subscriptions, resolved  │
//	│                │  against the handler registry at load time  │
//	│  permissions   │  Per-(subject, action) boolean grants        │
//	└────────────────┴─────────────────────────────────────────────┘
//
// # QueryInterceptor
//
// All database operations are wrapped with a QueryInterceptor that provides
// debug logging for every statement and its arguments before execution. This
// gives visibility into persisted-state changes without threading a logger
// through every store method.
//
// Logged operations:
//   - QueryRowContext
//   - QueryContext
//   - ExecContext
//
// # Design Patterns
//
// Query Building:
//   - TriggerStore.LoadAll and WatcherStore.LoadAll build their SELECT
//     statements with squirrel; writes and permission lookups use the named
//     SQL constants in queries.go.
//
// Replay-on-load:
//   - TriggerStore.LoadAll and WatcherStore.LoadAll are called once during
//     agent startup (after bus authentication, per the agent's lifecycle) to
//     repopulate the in-memory trigger/watcher registries. Watcher rows whose
//     stored handler name no longer resolves against the registry are logged
//     and skipped rather than causing startup to fail.
//
// Separation of Concerns:
//   - Stores only persist and retrieve rows; resolving a watcher name to a
//     handler function, and evaluating a trigger condition, are the
//     responsibility of internal/agent, not this package.
package store
