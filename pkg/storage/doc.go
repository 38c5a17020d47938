// Package storage persists sites, squads, metric column layouts and
// processing logs in PostgreSQL, and owns the versioned schema migrations.
package storage
