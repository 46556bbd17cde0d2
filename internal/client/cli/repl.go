package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type command func(ctx context.Context, args []string) error

// execIface defines the command surface the REPL needs. The real App type
// satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Signup(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Whoami(ctx context.Context, args []string) error

	Use(ctx context.Context, args []string) error
	Save(ctx context.Context, args []string) error
	Get(ctx context.Context, args []string) error
	Find(ctx context.Context, args []string) error
	Count(ctx context.Context, args []string) error
	Group(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error

	Push(ctx context.Context, args []string) error
	Pull(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Purge(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error
	Pending(ctx context.Context, args []string) error

	Upload(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
}

func commands(a execIface) map[string]command {
	return map[string]command{
		"signup":   a.Signup,
		"login":    a.Login,
		"logout":   a.Logout,
		"whoami":   a.Whoami,
		"use":      a.Use,
		"save":     a.Save,
		"get":      a.Get,
		"find":     a.Find,
		"ls":       a.Find,
		"count":    a.Count,
		"group":    a.Group,
		"delete":   a.Delete,
		"rm":       a.Delete,
		"push":     a.Push,
		"pull":     a.Pull,
		"sync":     a.Sync,
		"purge":    a.Purge,
		"clear":    a.Clear,
		"pending":  a.Pending,
		"upload":   a.Upload,
		"download": a.Download,
	}
}

// runREPL starts a read-eval-print loop over a.
//
// It reads a line from the scanner, takes the first token as the command and
// the rest as its arguments. The loop exits on scanner EOF or when the user
// types "exit" or "quit".
//
//	help                       show available commands
//	signup | login             create an account or authenticate
//	logout | whoami            end or show the session
//	use <collection> [type]    switch the current store (network, sync, cache)
//	save [json]                save an entity; without json, read it from input
//	get <id>                   fetch by id
//	find | ls [filter [sort]]  query with a Mongo-style filter
//	count [filter]             count matching entities
//	group <reduce> [key] [q]   aggregate, e.g. group sum:pages genre {"year":1999}
//	delete | rm <id>...        delete by id
//	push | pull | sync         move changes between the store and the backend
//	purge | clear | pending    discard local changes, local data, or list them
//	upload <path> [mime]       store a file
//	download <id> <path>       fetch a file
//
// Errors returned by commands are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	table := commands(a)
	for {
		printlnFn(fmt.Sprintf("kvs %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: use, save, get, find, count, group, delete, push, pull, sync, purge, clear, pending, upload, download, whoami, logout, exit")
			} else {
				printlnFn("Available commands: signup, login, use, save, get, find, count, group, delete, push, pull, sync, purge, clear, pending, exit")
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		run, ok := table[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		err := run(cctx, args)
		cancel()
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
