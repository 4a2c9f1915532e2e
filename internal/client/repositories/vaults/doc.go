// Package vaults provides persistence for vault rows.
//
// The SQLite implementation works over a dbx.DBTX, so the same repository
// type serves plain calls on *sql.DB and multi-row work inside a *sql.Tx.
// Reads that return a single vault include tombstones; callers decide
// whether a deleted vault is visible. Timestamps are written verbatim as
// supplied by the caller.
package vaults
