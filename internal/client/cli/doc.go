// Package cli provides the interactive command-line client.
//
// It opens a client.Client from the loaded configuration and runs a REPL
// over it. Commands work on the "current" data store, selected with use;
// by default that is the SYNC store of the "items" collection.
//
// Key features:
//   - signup / login / logout / whoami
//   - save, get, find, count and delete on the current store
//   - push, pull, sync, purge, clear and pending for SYNC stores
//   - upload and download of files
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// A background watcher pings the backend and flips the prompt between
// online and offline.
package cli
