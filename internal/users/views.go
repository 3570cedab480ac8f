package users

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/roach88/web2/internal/dom"
	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/view"
)

// Region names used by UserEdit.
const (
	RegionShow = "userShow"
	RegionForm = "userForm"
)

var (
	showTemplate = template.Must(template.New("show").Parse(`<div>` +
		`<h1>User Detail</h1>` +
		`<div>User Name: {{.Name}}</div>` +
		`<div>User Age: {{.Age}}</div>` +
		`</div>`))

	formTemplate = template.Must(template.New("form").Parse(`<div>` +
		`<input placeholder="{{.Name}}"/>` +
		`<button class="set-name">Change Name</button>` +
		`<button class="set-age">Set Random Age</button>` +
		`<button class="save-model">Save User</button>` +
		`</div>`))

	editTemplate = template.Must(template.New("edit").Parse(`<div class="user-edit">` +
		`<div class="user-show"></div>` +
		`<div class="user-form"></div>` +
		`</div>`))
)

type userData struct {
	Name string
	Age  string
}

func dataFor(u User) userData {
	d := userData{Name: u.GetName()}
	if u.Age != nil {
		d.Age = strconv.Itoa(*u.Age)
	}
	return d
}

// execute runs a static template. A failure is a programming error; the
// view reports the panic as a template error.
func execute(t *template.Template, u User) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, dataFor(u)); err != nil {
		panic(err)
	}
	return buf.String()
}

// UserShow displays the user's name and age.
type UserShow struct{}

func (UserShow) Template(u User) string {
	return execute(showTemplate, u)
}

// UserForm edits the user: rename from the input, randomize the age, save.
type UserForm struct {
	model  *Model
	ctx    context.Context
	age    func() int
	logger *slog.Logger

	mu   sync.Mutex
	last *loop.Pending
}

// FormOption configures a UserForm.
type FormOption func(*UserForm)

// WithContext sets the context used for saves. Default: context.Background().
func WithContext(ctx context.Context) FormOption {
	return func(f *UserForm) { f.ctx = ctx }
}

// WithRandomAge replaces the age generator. Default: uniform in [0, 100).
func WithRandomAge(gen func() int) FormOption {
	return func(f *UserForm) { f.age = gen }
}

// WithFormLogger sets the logger. Default: slog.Default().
func WithFormLogger(l *slog.Logger) FormOption {
	return func(f *UserForm) { f.logger = l }
}

// NewUserForm returns a form editing m.
func NewUserForm(m *Model, opts ...FormOption) *UserForm {
	f := &UserForm{
		model:  m,
		ctx:    context.Background(),
		age:    func() int { return rand.IntN(100) },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *UserForm) Template(u User) string {
	return execute(formTemplate, u)
}

func (f *UserForm) Events() map[string]dom.Handler {
	return map[string]dom.Handler{
		"click:.set-name":   f.onSetName,
		"click:.set-age":    f.onSetAge,
		"click:.save-model": f.onSave,
	}
}

func (f *UserForm) onSetName(e dom.Event) {
	in := f.input(e.Target)
	if in == nil {
		return
	}
	name := dom.Attr(in, "value")
	f.model.Set(User{Name: &name})
}

func (f *UserForm) onSetAge(dom.Event) {
	age := f.age()
	f.model.Set(User{Age: &age})
}

func (f *UserForm) onSave(dom.Event) {
	p := f.model.Save(f.ctx)
	f.mu.Lock()
	f.last = p
	f.mu.Unlock()
	f.logger.Debug("user save requested")
}

// LastSave returns the pending operation started by the latest "Save User"
// click, or nil.
func (f *UserForm) LastSave() *loop.Pending {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// input finds the form's text input next to the clicked button.
func (f *UserForm) input(target *html.Node) *html.Node {
	m, err := dom.Compile("input")
	if err != nil || target == nil || target.Parent == nil {
		return nil
	}
	return dom.Query(target.Parent, m)
}

// UserEdit composes UserShow and UserForm into its two regions.
type UserEdit struct {
	form   *UserForm
	logger *slog.Logger
}

// NewUserEdit returns the composite view renderable for m.
func NewUserEdit(m *Model, opts ...FormOption) *UserEdit {
	form := NewUserForm(m, opts...)
	return &UserEdit{form: form, logger: form.logger}
}

// Form returns the form renderable mounted in the userForm region.
func (e *UserEdit) Form() *UserForm { return e.form }

func (e *UserEdit) Template(u User) string {
	return execute(editTemplate, u)
}

func (e *UserEdit) Regions() map[string]string {
	return map[string]string{
		RegionShow: ".user-show",
		RegionForm: ".user-form",
	}
}

func (e *UserEdit) OnRender(v *view.View[User]) {
	if _, err := v.Mount(RegionShow, UserShow{}); err != nil {
		e.logger.Warn("mount failed", "region", RegionShow, "error", err)
	}
	if _, err := v.Mount(RegionForm, e.form); err != nil {
		e.logger.Warn("mount failed", "region", RegionForm, "error", err)
	}
}

// Mount renders a UserEdit for m into mount.
func Mount(doc *dom.Document, mount *html.Node, m *Model, opts ...FormOption) (*view.View[User], *UserEdit, error) {
	edit := NewUserEdit(m, opts...)
	v, err := view.New[User](doc, mount, m, edit)
	if err != nil {
		return nil, nil, err
	}
	return v, edit, nil
}
