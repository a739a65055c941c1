// Package stores provides persistence layer implementations for OpenLaunch.
// It includes SQLite-based storage with WAL mode, connection pooling, and
// CRUD operations for workflow runs, transition records, and events.
package stores
