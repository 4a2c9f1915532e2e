// Package cli provides the interactive vaultctl command-line client.
//
// The App drives the vault store, the sync engine, the settings store and
// the purge manager from a small REPL. Vault keys unlocked during the
// session are kept in memory only and reused by export and sync on close.
//
// Typical flow: create or open a vault, add and edit items, then export to
// the shared sync folder; on another device, import merges the changes.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
