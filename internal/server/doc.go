// Package server provides vmagent's local diagnostics HTTP server.
//
// The server uses the Gin web framework in release mode and serves plain
// HTTP on :<HTTPPort>. It has a single mode: there is no TLS and no
// static-file serving.
//
// # Routes
//
//	GET /status    → {"uuid", "jid", "has_domain", "is_migrating"}
//	GET /triggers  → {"triggers": [...]}, a snapshot of the in-memory trigger table
//	GET /metrics   → Prometheus exposition of the registry given to NewServer
//
// All routes are read-only.
//
// # Middleware
//
// Logger Middleware (ginzap.Ginzap):
//   - Logs each request through zap with the "http" logger name
//   - RFC3339 timestamps in UTC
//
// Recovery Middleware (ginzap.RecoveryWithZap):
//   - Recovers from panics in handlers
//   - Logs panic details with stack trace
//   - Returns 500 Internal Server Error
//
// # Server Lifecycle
//
//	srv := server.NewServer(cfg.Server, agent, registry)
//
//	// Blocks until ctx is cancelled or the listener fails
//	err := srv.Start(ctx)
//
// When ctx is cancelled, Start calls Stop and returns its result. Stop
// performs a graceful shutdown, waiting for in-flight requests to complete.
package server
