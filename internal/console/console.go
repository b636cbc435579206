// Package console is the interactive terminal front end over the user
// registry. It is line oriented so it works the same over a TTY, a pipe or
// a scripted test reader.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/wardbook/internal/domain/user"
	"github.com/ehr/wardbook/internal/platform/ident"
	"github.com/ehr/wardbook/pkg/pagination"
)

// errQuit unwinds every screen back to Run.
var errQuit = errors.New("quit")

type Console struct {
	reg      *user.Registry
	sess     *user.Session
	in       *bufio.Scanner
	out      io.Writer
	logger   zerolog.Logger
	pageSize int
	secret   func() (string, error)
	now      func() time.Time
}

// Option configures a Console.
type Option func(*Console)

// WithPageSize sets the number of rows per list page.
func WithPageSize(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithSecretReader replaces the line reader used for password prompts.
func WithSecretReader(fn func() (string, error)) Option {
	return func(c *Console) { c.secret = fn }
}

// WithClock sets the clock used to derive ages from identity card numbers.
func WithClock(fn func() time.Time) Option {
	return func(c *Console) { c.now = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Console) { c.logger = l }
}

func New(reg *user.Registry, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		reg:      reg,
		sess:     user.NewSession(),
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   zerolog.Nop(),
		pageSize: pagination.DefaultSize,
		now:      ident.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run alternates between the login screen and the main menu until the
// operator quits or input ends.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if _, ok := c.sess.CurrentUser(); ok {
			err = c.mainMenu(ctx)
		} else {
			err = c.login(ctx)
		}
		switch {
		case err == nil:
		case errors.Is(err, errQuit), errors.Is(err, io.EOF):
			c.println("Goodbye.")
			return nil
		default:
			c.logger.Error().Err(err).Msg("console stopped")
			return err
		}
	}
}

// -- Input and output --

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(c.in.Text(), "\r"), nil
}

func (c *Console) prompt(label string) (string, error) {
	c.printf("%s: ", label)
	line, err := c.readLine()
	return strings.TrimSpace(line), err
}

func (c *Console) promptSecret(label string) (string, error) {
	c.printf("%s: ", label)
	if c.secret == nil {
		return c.readLine()
	}
	s, err := c.secret()
	c.println("")
	return s, err
}

// promptValid re-asks until check accepts the answer.
func (c *Console) promptValid(label string, check func(string) error) (string, error) {
	for {
		v, err := c.prompt(label)
		if err != nil {
			return "", err
		}
		if err := check(v); err != nil {
			c.printf("  %s\n", describe(err))
			continue
		}
		return v, nil
	}
}

func required(v string) error {
	if v == "" {
		return fmt.Errorf("%w: value required", user.ErrInvalidValue)
	}
	return nil
}

// confirm reads a yes/no answer; anything but y or yes is no.
func (c *Console) confirm(label string) (bool, error) {
	v, err := c.prompt(label + " [y/N]")
	if err != nil {
		return false, err
	}
	v = strings.ToLower(v)
	return v == "y" || v == "yes", nil
}

// describe turns registry errors into operator-facing text.
func describe(err error) string {
	switch {
	case errors.Is(err, user.ErrStorageIO):
		return "Could not write to the record store; the change is kept in memory only."
	case errors.Is(err, user.ErrNotFound):
		return "Record not found."
	case errors.Is(err, user.ErrInvalidField):
		return "That field cannot be updated."
	case errors.Is(err, user.ErrValueParse):
		return "That value is not a valid number."
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && errors.Is(err, user.ErrInvalidValue) {
		msg = msg[i+2:]
	}
	return "Invalid value (" + msg + ")."
}

// -- Login --

func (c *Console) login(ctx context.Context) error {
	c.println("")
	c.println("== Wardbook login ==")
	name, err := c.prompt("Username (blank to quit)")
	if err != nil {
		return err
	}
	if name == "" {
		return errQuit
	}
	pw, err := c.promptSecret("Password")
	if err != nil {
		return err
	}
	if !c.reg.ValidateUser(ctx, c.sess, name, pw) {
		c.println("Invalid username or password.")
		return nil
	}
	u, _ := c.sess.CurrentUser()
	c.printf("Welcome, %s.\n", u.Base().FullName)
	return nil
}
