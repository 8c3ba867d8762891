// Package session provides the per-conversation state container used by the
// PII interceptor and the in-memory store that owns session lifecycle
// (lazy creation, idle purge).
package session
