// Command boardctl is a terminal client for the message board server.
//
//	boardctl [-server URL] [-state FILE] <command> [args]
//
// Commands: register, login, logout, whoami, threads, read, new-thread, post.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Skotchmaster/message_board/internal/client/api"
	"github.com/Skotchmaster/message_board/internal/client/session"
	"github.com/Skotchmaster/message_board/internal/client/storage"
	"github.com/Skotchmaster/message_board/internal/config"
	"github.com/Skotchmaster/message_board/internal/logging"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "boardctl.db"
	}
	return filepath.Join(dir, "boardctl", "session.db")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("boardctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", config.EnvDefault("BOARD_SERVER", "http://localhost:8080"), "server base URL")
	state := fs.String("state", config.EnvDefault("BOARD_STATE", defaultStatePath()), "session state file")
	logLevel := fs.String("log-level", "error", "client log level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: boardctl [flags] register|login|logout|whoami|threads|read|new-thread|post")
		return 2
	}

	if dir := filepath.Dir(*state); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	store, err := storage.OpenSQLite(ctx, *state)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer store.Close()

	client := api.NewClient(*server)
	sess := session.New(client, store, session.WithLogger(logging.NewWithWriter(stderr, *logLevel)))
	defer sess.Close()

	cli := &CLI{api: client, sess: sess, in: stdin, out: stdout}
	if err := cli.Dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
