// Package goLogin provides a multi-step login engine with password
// verification, risk-based challenge escalation, TOTP and backup-code MFA,
// email one-time codes, new-device verification and Redis-backed auth
// transactions.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goLogin is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces (UserProvider, SessionService,
// OneTimeCodeService, ...) and value types. Transaction persistence and
// codec details live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Store users, passwords or sessions itself. Those live behind the
//     collaborator interfaces supplied to the Builder.
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Recompute a transaction's risk snapshot after creation. The decision
//     captured at StartLogin is the one replayed at completion.
//
// # Flow contract
//
// StartLogin either completes the login or opens exactly one challenge on a
// TTL-bounded transaction. CompleteChallenge and EnrollConfirm consume the
// transaction atomically: of two concurrent completions, exactly one
// obtains a session.
package goLogin
