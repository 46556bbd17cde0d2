// Package client assembles a working client instance from a config.Config.
//
// # Overview
//
// New opens the local SQLite database, picks the network transport named
// by the config (REST, gRPC or in-process), restores the persisted session
// and, when a sync schedule is configured, starts auto-sync. Data stores are
// handed out by DataStore, Collection and Async; a store asked for twice
// with the same collection and type is the same value.
//
// # Lifecycle
//
// Close stops auto-sync, waits for async operations, closes the transport
// (unless it was supplied with WithNetworkManager) and the database.
package client
