// Package users is the example domain built on the framework: the User
// record, its model and collection factories, and the views that show and
// edit a user.
package users

import (
	"strconv"
	"strings"

	"github.com/roach88/web2/internal/collection"
	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/remote"
)

// DefaultRootURL is where json-server serves users by default.
const DefaultRootURL = "http://localhost:3000/users"

// User is the persisted record. Nil fields are unset.
type User struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
	Age  *int    `json:"age,omitempty"`
}

// Identifier implements remote.HasIdentifier.
func (u User) Identifier() (int64, bool) {
	if u.ID == nil {
		return 0, false
	}
	return *u.ID, true
}

// GetName returns the name, or "" when unset.
func (u User) GetName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// GetAge returns the age, or 0 when unset.
func (u User) GetAge() int {
	if u.Age == nil {
		return 0
	}
	return *u.Age
}

func (u User) String() string {
	var parts []string
	if u.ID != nil {
		parts = append(parts, "id="+strconv.FormatInt(*u.ID, 10))
	}
	if u.Name != nil {
		parts = append(parts, "name="+strconv.Quote(*u.Name))
	}
	if u.Age != nil {
		parts = append(parts, "age="+strconv.Itoa(*u.Age))
	}
	return "User{" + strings.Join(parts, " ") + "}"
}

// Model is a User bound to its resource.
type Model = model.Model[User]

// Collection is an ordered set of user models.
type Collection = collection.Collection[*Model, User]

// New builds a user model synced against rootURL with a default client.
func New(rec User, rootURL string, opts ...model.Option) *Model {
	return NewWithClient(rec, rootURL, nil, opts...)
}

// NewWithClient is New with an explicit client. A nil client gets
// remote.NewClient().
func NewWithClient(rec User, rootURL string, client *remote.Client, opts ...model.Option) *Model {
	if client == nil {
		client = remote.NewClient()
	}
	sync := remote.NewSync[User](strings.TrimRight(rootURL, "/"), client)
	return model.New(rec, sync, opts...)
}

// NewCollection returns an empty collection of users at rootURL. Each
// fetched element becomes a model built by New.
func NewCollection(rootURL string, opts ...collection.Option) *Collection {
	return NewCollectionWithClient(rootURL, nil, nil, opts...)
}

// NewCollectionWithClient is NewCollection with an explicit client shared
// by the collection and its models, and options applied to each model.
func NewCollectionWithClient(rootURL string, client *remote.Client, modelOpts []model.Option, opts ...collection.Option) *Collection {
	if client == nil {
		client = remote.NewClient()
	}
	rootURL = strings.TrimRight(rootURL, "/")
	return collection.New(rootURL, client, func(rec User) *Model {
		return NewWithClient(rec, rootURL, client, modelOpts...)
	}, opts...)
}
