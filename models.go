package oidc

import (
	"crypto/subtle"
	"time"

	"github.com/256dpi/oauth2/v2"
	"github.com/256dpi/xo"
	"github.com/asaskevich/govalidator"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/store"
)

// The collections used by the provider.
const (
	AdminColl        = "admin"
	EndUserColl      = "end_user"
	ClientColl       = "client"
	ResourceColl     = "resource"
	GrantColl        = "grant"
	AccessTokenColl  = "access_token"
	IDTokenColl      = "id_token"
	RefreshTokenColl = "refresh_token"
)

// Admin is a management account that may edit all registered entities.
type Admin struct {
	store.Base   `bson:",inline"`
	Name         string    `json:"name" bson:"name"`
	PasswordHash []byte    `json:"-" bson:"password"`
	Password     string    `json:"password,omitempty" bson:"-"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks the model invariants.
func (a *Admin) Validate() error {
	// check name
	if a.Name == "" {
		return xo.SF("missing name")
	}

	return nil
}

// HashPassword will hash the plain password and clear it afterwards.
func (a *Admin) HashPassword() error {
	// hash password
	hash, err := keys.Hash(a.Password)
	if err != nil {
		return err
	}

	// set hash
	a.PasswordHash = hash
	a.Password = ""

	return nil
}

// ValidPassword verifies the provided plain password against the stored hash.
func (a *Admin) ValidPassword(password string) bool {
	return keys.Compare(a.PasswordHash, password) == nil
}

// AcceptedClient records the scope an end user has granted to a client. The
// recorded scope only ever grows as additional scopes get accepted.
type AcceptedClient struct {
	ClientID store.ID     `json:"client_id" bson:"client_id"`
	Scope    oauth2.Scope `json:"scope" bson:"scope"`
}

// EndUser is a registered resource owner.
type EndUser struct {
	store.Base      `bson:",inline"`
	Name            string           `json:"name" bson:"name"`
	PasswordHash    []byte           `json:"-" bson:"password"`
	Password        string           `json:"password,omitempty" bson:"-"`
	Email           string           `json:"email" bson:"email"`
	GivenName       string           `json:"given_name,omitempty" bson:"given_name,omitempty"`
	FamilyName      string           `json:"family_name,omitempty" bson:"family_name,omitempty"`
	MiddleName      string           `json:"middle_name,omitempty" bson:"middle_name,omitempty"`
	Nickname        string           `json:"nickname,omitempty" bson:"nickname,omitempty"`
	Profile         string           `json:"profile,omitempty" bson:"profile,omitempty"`
	Picture         string           `json:"picture,omitempty" bson:"picture,omitempty"`
	Website         string           `json:"website,omitempty" bson:"website,omitempty"`
	Gender          string           `json:"gender,omitempty" bson:"gender,omitempty"`
	Birthdate       store.Date       `json:"birthdate" bson:"birthdate"`
	Zoneinfo        string           `json:"zoneinfo,omitempty" bson:"zoneinfo,omitempty"`
	Locale          string           `json:"locale,omitempty" bson:"locale,omitempty"`
	PhoneNumber     string           `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	EmailVerified   bool             `json:"email_verified" bson:"email_verified"`
	PhoneVerified   bool             `json:"phone_number_verified" bson:"phone_number_verified"`
	AcceptedClients []AcceptedClient `json:"accepted_clients" bson:"accepted_clients"`
	AuthenticatedAt time.Time        `json:"authenticated_at" bson:"authenticated_at"`
	CreatedAt       time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" bson:"updated_at"`
}

// Validate checks the model invariants.
func (u *EndUser) Validate() error {
	// check name
	if u.Name == "" {
		return xo.SF("missing name")
	}

	// check email
	if !govalidator.IsEmail(u.Email) {
		return xo.SF("invalid email")
	}

	// check website
	if u.Website != "" && !govalidator.IsURL(u.Website) {
		return xo.SF("invalid website")
	}

	return nil
}

// HashPassword will hash the plain password and clear it afterwards.
func (u *EndUser) HashPassword() error {
	// hash password
	hash, err := keys.Hash(u.Password)
	if err != nil {
		return err
	}

	// set hash
	u.PasswordHash = hash
	u.Password = ""

	return nil
}

// ValidPassword verifies the provided plain password against the stored hash.
func (u *EndUser) ValidPassword(password string) bool {
	return keys.Compare(u.PasswordHash, password) == nil
}

// HasAccepted returns whether the end user has granted at least the provided
// scope to the provided client.
func (u *EndUser) HasAccepted(clientID store.ID, scope oauth2.Scope) bool {
	// find matching acceptance
	for _, ac := range u.AcceptedClients {
		if ac.ClientID == clientID {
			return ac.Scope.Includes(scope)
		}
	}

	return false
}

// AcceptClient records the provided scope as granted to the provided client.
// Existing grants are merged by scope union.
func (u *EndUser) AcceptClient(clientID store.ID, scope oauth2.Scope) {
	// merge existing acceptance
	for i, ac := range u.AcceptedClients {
		if ac.ClientID == clientID {
			for _, name := range scope {
				if !ac.Scope.Includes(oauth2.Scope{name}) {
					ac.Scope = append(ac.Scope, name)
				}
			}
			u.AcceptedClients[i] = ac
			return
		}
	}

	// add new acceptance
	u.AcceptedClients = append(u.AcceptedClients, AcceptedClient{
		ClientID: clientID,
		Scope:    scope,
	})
}

// ClientType enumerates the registered client application types.
type ClientType string

// The available client types.
const (
	ConfidentialClient ClientType = "confidential"
	PublicClient       ClientType = "public"
)

// Client is a registered OAuth2 client application. A client is bound to
// exactly one resource that defines its scope namespace.
type Client struct {
	store.Base   `bson:",inline"`
	Name         string     `json:"name" bson:"name"`
	PasswordHash []byte     `json:"-" bson:"password"`
	Password     string     `json:"password,omitempty" bson:"-"`
	Website      string     `json:"website,omitempty" bson:"website"`
	Type         ClientType `json:"client_type" bson:"client_type"`
	Secret       string     `json:"client_secret" bson:"client_secret"`
	RedirectURIs []string   `json:"redirect_uris" bson:"redirect_uris"`
	ResourceID   store.ID   `json:"resource_id" bson:"resource_id"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at"`
}

// Validate checks the model invariants.
func (c *Client) Validate() error {
	// check name
	if c.Name == "" {
		return xo.SF("missing name")
	}

	// check type
	if c.Type != ConfidentialClient && c.Type != PublicClient {
		return xo.SF("invalid client type")
	}

	// check resource
	if c.ResourceID.IsZero() {
		return xo.SF("missing resource")
	}

	// check redirect uris
	if len(c.RedirectURIs) == 0 {
		return xo.SF("missing redirect uris")
	}
	for _, uri := range c.RedirectURIs {
		if !govalidator.IsURL(uri) {
			return xo.SF("invalid redirect uri")
		}
	}

	// check website
	if c.Website != "" && !govalidator.IsURL(c.Website) {
		return xo.SF("invalid website")
	}

	return nil
}

// HashPassword will hash the plain password and clear it afterwards.
func (c *Client) HashPassword() error {
	// hash password
	hash, err := keys.Hash(c.Password)
	if err != nil {
		return err
	}

	// set hash
	c.PasswordHash = hash
	c.Password = ""

	return nil
}

// ValidPassword verifies the provided plain password against the stored hash.
func (c *Client) ValidPassword(password string) bool {
	return keys.Compare(c.PasswordHash, password) == nil
}

// ValidSecret verifies the provided client secret in constant time.
func (c *Client) ValidSecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

// ValidRedirectURI returns whether the provided redirect URI exactly matches
// one of the registered redirect URIs.
func (c *Client) ValidRedirectURI(uri string) bool {
	// check registered uris
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}

	return false
}

// Scope is a named permission defined by a resource.
type Scope struct {
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

// Resource is a registered resource server. A resource owns the universe of
// valid scopes for the clients that reference it.
type Resource struct {
	store.Base   `bson:",inline"`
	Name         string    `json:"name" bson:"name"`
	PasswordHash []byte    `json:"-" bson:"password"`
	Password     string    `json:"password,omitempty" bson:"-"`
	Website      string    `json:"website,omitempty" bson:"website"`
	Secret       string    `json:"resource_secret" bson:"resource_secret"`
	Scope        []Scope   `json:"scope" bson:"scope"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks the model invariants.
func (r *Resource) Validate() error {
	// check name
	if r.Name == "" {
		return xo.SF("missing name")
	}

	// check website
	if r.Website != "" && !govalidator.IsURL(r.Website) {
		return xo.SF("invalid website")
	}

	// check scopes
	for _, scope := range r.Scope {
		if scope.Name == "" {
			return xo.SF("missing scope name")
		}
	}

	return nil
}

// HashPassword will hash the plain password and clear it afterwards.
func (r *Resource) HashPassword() error {
	// hash password
	hash, err := keys.Hash(r.Password)
	if err != nil {
		return err
	}

	// set hash
	r.PasswordHash = hash
	r.Password = ""

	return nil
}

// ValidPassword verifies the provided plain password against the stored hash.
func (r *Resource) ValidPassword(password string) bool {
	return keys.Compare(r.PasswordHash, password) == nil
}

// FilterScope reduces the provided scope to the scope names defined by the
// resource. The order of the requested scope is preserved.
func (r *Resource) FilterScope(scope oauth2.Scope) oauth2.Scope {
	// collect known names
	var filtered oauth2.Scope
	for _, name := range scope {
		for _, defined := range r.Scope {
			if defined.Name == name {
				filtered = append(filtered, name)
				break
			}
		}
	}

	return filtered
}

// DescribeScope returns the scope definitions matching the provided names.
func (r *Resource) DescribeScope(scope oauth2.Scope) []Scope {
	// collect matching definitions
	described := make([]Scope, 0, len(scope))
	for _, defined := range r.Scope {
		for _, name := range scope {
			if defined.Name == name {
				described = append(described, defined)
				break
			}
		}
	}

	return described
}

// Collections returns the names of all collections used by the provider.
func Collections() []string {
	return []string{
		AdminColl, EndUserColl, ClientColl, ResourceColl,
		GrantColl, AccessTokenColl, IDTokenColl, RefreshTokenColl,
	}
}

// EnsureIndexes will ensure that the indexes required by the provider exist.
func EnsureIndexes(s *store.Store) error {
	// ensure unique names for all registered entities
	for _, coll := range []string{AdminColl, EndUserColl, ClientColl, ResourceColl} {
		err := s.EnsureIndexes(coll, store.Index{
			Keys:   bson.D{{Key: "name", Value: 1}},
			Unique: true,
			Filter: bson.M{"deleted": false},
		})
		if err != nil {
			return err
		}
	}

	// ensure unique grant codes
	err := s.EnsureIndexes(GrantColl, store.Index{
		Keys:   bson.D{{Key: "code", Value: 1}},
		Unique: true,
	})
	if err != nil {
		return err
	}

	// ensure unique access tokens
	err = s.EnsureIndexes(AccessTokenColl, store.Index{
		Keys:   bson.D{{Key: "token", Value: 1}},
		Unique: true,
	})
	if err != nil {
		return err
	}

	// ensure unique refresh tokens
	err = s.EnsureIndexes(RefreshTokenColl, store.Index{
		Keys:   bson.D{{Key: "token", Value: 1}},
		Unique: true,
	})
	if err != nil {
		return err
	}

	return nil
}
