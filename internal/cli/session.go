package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/web2/internal/dom"
	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/users"
	"github.com/roach88/web2/internal/view"
)

// ErrQuit is returned by Session.Exec for the quit command.
var ErrQuit = errors.New("quit")

// Session is a UserEdit view mounted in its own document, driven one
// command at a time. All document and view work runs on the loop, the
// same goroutine the model's continuations are posted to.
//
// Thread-safety: Exec and Close must be called from one goroutine, and
// never from a loop task.
type Session struct {
	ctx   context.Context
	loop  *loop.Loop
	model *users.Model
	doc   *dom.Document
	view  *view.View[users.User]
	edit  *users.UserEdit
	out   io.Writer
}

// NewSession mounts a UserEdit for m into a fresh document body. m must
// post its continuations to l, and l must be running.
func NewSession(ctx context.Context, l *loop.Loop, m *users.Model, out io.Writer, opts ...users.FormOption) (*Session, error) {
	s := &Session{ctx: ctx, loop: l, model: m, doc: dom.NewDocument(), out: out}
	opts = append([]users.FormOption{users.WithContext(ctx)}, opts...)

	var mountErr error
	err := l.Do(ctx, func() {
		s.view, s.edit, mountErr = users.Mount(s.doc, s.doc.Body(), m, opts...)
	})
	if err != nil {
		return nil, err
	}
	if mountErr != nil {
		return nil, mountErr
	}
	return s, nil
}

// Exec runs one command line. It returns ErrQuit for quit and exit.
func (s *Session) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprint(s.out, sessionHelp)
		return nil
	case "show":
		fmt.Fprintln(s.out, s.HTML())
		return nil
	case "attrs":
		fmt.Fprintln(s.out, s.model.Attrs())
		return nil
	case "click":
		if len(args) != 1 {
			return errors.New("usage: click <selector>")
		}
		return s.Click(args[0])
	case "type":
		if len(args) < 1 {
			return errors.New("usage: type <selector> <value>")
		}
		return s.Type(args[0], strings.Join(args[1:], " "))
	case "set":
		if len(args) < 2 {
			return errors.New("usage: set name|age <value>")
		}
		return s.Set(args[0], strings.Join(args[1:], " "))
	case "save":
		return s.wait(s.model.Save(s.ctx))
	case "fetch":
		return s.wait(s.model.Fetch(s.ctx))
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

const sessionHelp = `commands:
  show                    print the rendered body
  attrs                   print the user record
  click <selector>        dispatch a click on the first match
  type <selector> <text>  set the value of the first match
  set name|age <value>    set a user attribute
  save                    save the user
  fetch                   reload the user
  quit                    leave
`

// Click dispatches a click on the first element matching selector and
// waits for any save the click started.
func (s *Session) Click(selector string) error {
	var (
		started *loop.Pending
		err     error
	)
	doErr := s.loop.Do(s.ctx, func() {
		target := s.find(selector, &err)
		if target == nil {
			return
		}
		before := s.edit.Form().LastSave()
		s.doc.Dispatch(target, "click")
		if after := s.edit.Form().LastSave(); after != before {
			started = after
		}
	})
	if doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}
	if started != nil {
		return s.wait(started)
	}
	return nil
}

// Type sets the value attribute of the first element matching selector.
func (s *Session) Type(selector, value string) error {
	var err error
	doErr := s.loop.Do(s.ctx, func() {
		if target := s.find(selector, &err); target != nil {
			s.doc.SetValue(target, value)
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Set changes one user attribute.
func (s *Session) Set(field, value string) error {
	var patch users.User
	switch field {
	case "name":
		patch.Name = &value
	case "age":
		age, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid age %q", value)
		}
		patch.Age = &age
	default:
		return fmt.Errorf("unknown attribute %q", field)
	}
	return s.loop.Do(s.ctx, func() { s.model.Set(patch) })
}

// HTML returns the rendered body content.
func (s *Session) HTML() string {
	var markup string
	if err := s.loop.Do(s.ctx, func() { markup = dom.InnerHTML(s.doc.Body()) }); err != nil {
		return ""
	}
	return markup
}

// Renders returns how many times the top-level view has rendered.
func (s *Session) Renders() int {
	return s.view.Renders()
}

// User returns the current user record.
func (s *Session) User() users.User {
	return s.model.Attrs()
}

// Close closes the view. The loop is left to its owner.
func (s *Session) Close() {
	_ = s.loop.Do(s.ctx, s.view.Close)
}

// find runs on the loop.
func (s *Session) find(selector string, err *error) *html.Node {
	n, qerr := s.doc.QuerySelector(selector)
	switch {
	case qerr != nil:
		*err = qerr
	case n == nil:
		*err = fmt.Errorf("no element matches %q", selector)
	}
	return n
}

func (s *Session) wait(p *loop.Pending) error {
	return p.Wait(s.ctx)
}
