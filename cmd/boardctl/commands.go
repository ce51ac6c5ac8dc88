package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/Skotchmaster/message_board/internal/client/api"
	"github.com/Skotchmaster/message_board/internal/client/session"
)

var errNotLoggedIn = errors.New("not logged in")

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

type CLI struct {
	api  *api.Client
	sess *session.Session
	in   io.Reader
	out  io.Writer

	reader *bufio.Reader
}

func (c *CLI) Dispatch(ctx context.Context, cmd string, args []string) error {
	if err := c.sess.RestoreSession(ctx); err != nil {
		fmt.Fprintln(c.out, "warning: could not verify saved session:", err)
	}

	switch cmd {
	case "register":
		return c.register(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "logout":
		if err := c.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "logged out")
		return nil
	case "whoami":
		u, ok := c.sess.CurrentUser()
		if !ok {
			return errNotLoggedIn
		}
		fmt.Fprintf(c.out, "%s <%s> (id %d), session expires %s\n",
			u.Username, u.Email, u.ID, c.sess.Expiry().Local().Format("2006-01-02 15:04"))
		return nil
	case "threads":
		return c.threads(ctx)
	case "read":
		return c.read(ctx, args)
	case "new-thread":
		return c.newThread(ctx, args)
	case "post":
		return c.post(ctx, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *CLI) line(prompt string) (string, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.in)
	}
	fmt.Fprint(c.out, prompt+": ")
	s, err := c.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// password reads without echo when stdin is a terminal.
func (c *CLI) password() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.out, "password: ")
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		return string(b), err
	}
	return c.line("password")
}

func (c *CLI) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *username == "" {
		if *username, err = c.line("username"); err != nil {
			return err
		}
	}
	if *email == "" {
		if *email, err = c.line("email"); err != nil {
			return err
		}
	}
	pw, err := c.password()
	if err != nil {
		return err
	}

	if err := c.sess.Register(ctx, *username, *email, pw); err != nil {
		if errors.Is(err, session.ErrLoginRequired) {
			fmt.Fprintln(c.out, err)
			return nil
		}
		return err
	}
	fmt.Fprintf(c.out, "registered and logged in as %s\n", *username)
	return nil
}

func (c *CLI) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *username == "" {
		if *username, err = c.line("username"); err != nil {
			return err
		}
	}
	pw, err := c.password()
	if err != nil {
		return err
	}
	if err := c.sess.Login(ctx, *username, pw); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in as %s\n", *username)
	return nil
}

func (c *CLI) threads(ctx context.Context) error {
	threads, err := c.api.ListThreads(ctx)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Fprintln(c.out, "no threads yet")
	}
	for _, t := range threads {
		fmt.Fprintf(c.out, "#%d  %s  (by user %d)\n", t.ID, t.Title, t.AuthorID)
	}
	return nil
}

func (c *CLI) read(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: read <thread-id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	msgs, err := c.api.ListMessages(ctx, id)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Fprintf(c.out, "[%d] user %d, %s\n  %s\n", m.ID, m.AuthorID, m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Content)
	}
	return nil
}

func (c *CLI) newThread(ctx context.Context, args []string) error {
	if !c.sess.IsAuthenticated() {
		return errNotLoggedIn
	}
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return errors.New("usage: new-thread <title>")
	}
	t, err := c.api.CreateThread(ctx, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created thread #%d\n", t.ID)
	return nil
}

func (c *CLI) post(ctx context.Context, args []string) error {
	if !c.sess.IsAuthenticated() {
		return errNotLoggedIn
	}
	if len(args) < 2 {
		return errors.New("usage: post <thread-id> <message>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, err := c.api.CreateMessage(ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "posted message #%d\n", m.ID)
	return nil
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(v), nil
}
