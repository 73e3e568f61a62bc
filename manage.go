package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/256dpi/oauth2/v2"
	"github.com/256dpi/oauth2/v2/bearer"
	"github.com/256dpi/xo"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/session"
	"github.com/256dpi/oidc/store"
)

// Manager implements the management API for the registered entities. It
// serves registration, login, inspection, update and removal endpoints for
// admins, end users, clients and resources as well as a health endpoint.
type Manager struct {
	store    *store.Store
	sessions session.Store
	reporter func(error)
}

// NewManager constructs a manager from a store and session store. The
// reporter is invoked with unexpected internal errors and may be nil.
func NewManager(store *store.Store, sessions session.Store, reporter func(error)) *Manager {
	return &Manager{
		store:    store,
		sessions: sessions,
		reporter: reporter,
	}
}

// Initialize ensures the default admin account. The account is only created
// if no other admin exists yet.
func Initialize(s *store.Store, adminPassword string) error {
	// create context
	ctx := context.Background()

	// count existing admins
	count, err := s.C(AdminColl).Count(ctx, bson.M{"deleted": false})
	if err != nil {
		return err
	} else if count > 0 {
		return nil
	}

	// prepare default admin
	now := time.Now()
	admin := &Admin{
		Base:      store.B(),
		Name:      "admin",
		Password:  adminPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// hash password
	err = admin.HashPassword()
	if err != nil {
		return err
	}

	return s.C(AdminColl).Insert(ctx, admin)
}

// Endpoint returns a handler that serves the management endpoints under the
// provided prefix.
func (m *Manager) Endpoint(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// trim and split path
		s := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"), "/")

		// run handler and recover panics
		err := xo.Catch(func() error {
			return m.dispatch(w, r, s)
		})
		if err != nil {
			handleError(w, err, m.reporter)
		}
	})
}

func (m *Manager) dispatch(w http.ResponseWriter, r *http.Request, s []string) error {
	// check path
	if len(s) == 0 || s[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}

	// handle health checks
	if s[0] == "health" {
		if r.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return nil
		}
		return m.health(w, r)
	}

	// handle entities
	switch s[0] {
	case "admins":
		return m.admins(w, r, s[1:])
	case "end_users":
		return m.endUsers(w, r, s[1:])
	case "clients":
		return m.clients(w, r, s[1:])
	case "resources":
		return m.resources(w, r, s[1:])
	}

	w.WriteHeader(http.StatusNotFound)
	return nil
}

func (m *Manager) health(w http.ResponseWriter, r *http.Request) error {
	// ping database
	err := m.store.Client().Ping(r.Context(), nil)
	if err != nil {
		return TemporarilyUnavailable("database unavailable")
	}

	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

/* shared plumbing */

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	SID        string `json:"sid"`
	AdminID    string `json:"admin_id,omitempty"`
	EndUserID  string `json:"end_user_id,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
}

type listResponse struct {
	List interface{} `json:"list"`
}

type entitySummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type clientSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Website    string    `json:"website,omitempty"`
	ResourceID string    `json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type adminDetail struct {
	ID string `json:"id"`
	*Admin
}

type endUserDetail struct {
	ID string `json:"id"`
	*EndUser
}

type clientDetail struct {
	ID string `json:"id"`
	*Client
}

type resourceDetail struct {
	ID string `json:"id"`
	*Resource
}

// authenticate resolves the entity id stored in the request session under
// the provided field.
func (m *Manager) authenticate(ctx context.Context, r *http.Request, field string) (store.ID, error) {
	// get session id
	sid, err := bearer.ParseToken(r)
	if err != nil {
		return store.Z(), RequireLogin("missing session")
	}

	// look up session
	value, err := m.sessions.Get(ctx, sid, field)
	if errors.Is(err, session.ErrNoSession) {
		return store.Z(), RequireLogin("missing session")
	} else if err != nil {
		return store.Z(), TemporarilyUnavailable("session store unavailable")
	}

	// parse entity id
	id, err := store.FromHex(value)
	if err != nil {
		return store.Z(), RequireLogin("invalid session")
	}

	return id, nil
}

// isAdmin returns whether the request carries a valid admin session.
func (m *Manager) isAdmin(ctx context.Context, r *http.Request) bool {
	// authenticate admin session
	id, err := m.authenticate(ctx, r, session.AdminField)
	if err != nil {
		return false
	}

	// verify admin
	var admin Admin
	found, err := m.store.C(AdminColl).FindOne(ctx, &admin, bson.M{
		"_id":     id,
		"deleted": false,
	})

	return err == nil && found
}

// authorize ensures the request is made by the identified entity itself or
// by an admin.
func (m *Manager) authorize(ctx context.Context, r *http.Request, field string, id store.ID) error {
	// allow matching sessions
	selfID, err := m.authenticate(ctx, r, field)
	if err == nil && selfID == id {
		return nil
	}

	// allow admins
	if m.isAdmin(ctx, r) {
		return nil
	}

	// propagate authentication errors
	if err != nil {
		return err
	}

	return AccessDenied("insufficient permissions")
}

// login verifies the provided credentials and creates a session under the
// provided field.
func (m *Manager) login(ctx context.Context, r *http.Request, coll, field string) (store.ID, string, error) {
	// decode request
	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return store.Z(), "", oauth2.InvalidRequest("malformed request body")
	}

	// load entity
	var entity struct {
		store.Base   `bson:",inline"`
		PasswordHash []byte `bson:"password"`
	}
	found, err := m.store.C(coll).FindOne(ctx, &entity, bson.M{
		"name":    req.Name,
		"deleted": false,
	})
	if err != nil {
		return store.Z(), "", err
	} else if !found {
		return store.Z(), "", LoginFailed("") // never expose reason!
	}

	// verify password
	if keys.Compare(entity.PasswordHash, req.Password) != nil {
		return store.Z(), "", LoginFailed("") // never expose reason!
	}

	// create session
	sid := keys.MustRandString(64)
	err = m.sessions.Set(ctx, sid, field, entity.ID().Hex())
	if err != nil {
		return store.Z(), "", TemporarilyUnavailable("session store unavailable")
	}

	return entity.ID(), sid, nil
}

// logout removes the session under the provided field.
func (m *Manager) logout(ctx context.Context, w http.ResponseWriter, r *http.Request, field string) error {
	// get session id
	sid, err := bearer.ParseToken(r)
	if err != nil {
		return RequireLogin("missing session")
	}

	// remove session
	err = m.sessions.Del(ctx, sid, field)
	if err != nil {
		return TemporarilyUnavailable("session store unavailable")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

/* admins */

func (m *Manager) admins(w http.ResponseWriter, r *http.Request, s []string) error {
	// get context
	ctx := r.Context()

	// handle collection operations
	if len(s) == 0 || s[0] == "" {
		switch r.Method {
		case "GET":
			return m.listAdmins(ctx, w)
		case "POST":
			return m.registerAdmin(ctx, w, r)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	// handle session operations
	if len(s) == 1 && (s[0] == "login" || s[0] == "logout") {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return nil
		}
		if s[0] == "login" {
			return m.loginAdmin(ctx, w, r)
		}
		return m.logout(ctx, w, r, session.AdminField)
	}

	// handle document operations
	if len(s) == 1 {
		switch r.Method {
		case "GET":
			return m.showAdmin(ctx, w, r, s[0])
		case "PUT":
			return m.updateAdmin(ctx, w, r, s[0])
		case "DELETE":
			return m.deleteAdmin(ctx, w, r, s[0])
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	w.WriteHeader(http.StatusNotFound)
	return nil
}

func (m *Manager) loginAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// perform login
	id, sid, err := m.login(ctx, r, AdminColl, session.AdminField)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, loginResponse{SID: sid, AdminID: id.Hex()})
}

func (m *Manager) listAdmins(ctx context.Context, w http.ResponseWriter) error {
	// load admins
	var admins []Admin
	err := m.store.C(AdminColl).FindAll(ctx, &admins, bson.M{"deleted": false})
	if err != nil {
		return err
	}

	// render summaries
	list := make([]entitySummary, 0, len(admins))
	for _, admin := range admins {
		list = append(list, entitySummary{
			ID:        admin.ID().Hex(),
			Name:      admin.Name,
			CreatedAt: admin.CreatedAt,
			UpdatedAt: admin.UpdatedAt,
		})
	}

	return writeJSON(w, http.StatusOK, listResponse{List: list})
}

func (m *Manager) registerAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// only admins may register admins
	if !m.isAdmin(ctx, r) {
		return AccessDenied("insufficient permissions")
	}

	// decode request
	var admin Admin
	err := json.NewDecoder(r.Body).Decode(&admin)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// reset managed fields
	now := time.Now()
	admin.Base = store.B()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	// check password
	if admin.Password == "" {
		return oauth2.InvalidRequest("missing password")
	}

	// validate
	err = admin.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// hash password
	err = admin.HashPassword()
	if err != nil {
		return err
	}

	// insert admin
	err = m.store.C(AdminColl).Insert(ctx, &admin)
	if errors.Is(err, store.ErrDuplicate) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, adminDetail{admin.ID().Hex(), &admin})
}

func (m *Manager) showAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	adminID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("admin not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.AdminField, adminID)
	if err != nil {
		return err
	}

	// load admin
	var admin Admin
	found, err := m.store.C(AdminColl).FindOne(ctx, &admin, bson.M{
		"_id":     adminID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("admin not found")
	}

	return writeJSON(w, http.StatusOK, adminDetail{admin.ID().Hex(), &admin})
}

type adminUpdate struct {
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
	Name            *string `json:"name"`
}

func (m *Manager) updateAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	adminID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("admin not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.AdminField, adminID)
	if err != nil {
		return err
	}

	// load admin
	var admin Admin
	found, err := m.store.C(AdminColl).FindOne(ctx, &admin, bson.M{
		"_id":     adminID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("admin not found")
	}

	// decode request
	var req adminUpdate
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// apply changes
	if req.Name != nil {
		admin.Name = *req.Name
	}

	// change password if requested
	if req.NewPassword != "" {
		if !admin.ValidPassword(req.CurrentPassword) {
			return WrongPassword("wrong current password")
		}
		admin.Password = req.NewPassword
		err = admin.HashPassword()
		if err != nil {
			return err
		}
	}

	// validate
	err = admin.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// save admin
	admin.UpdatedAt = time.Now()
	found, err = m.store.C(AdminColl).Replace(ctx, admin.ID(), &admin)
	if errors.Is(err, store.ErrConflict) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	} else if !found {
		return ConflictDetected("admin has been removed")
	}

	return writeJSON(w, http.StatusOK, adminDetail{admin.ID().Hex(), &admin})
}

func (m *Manager) deleteAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	adminID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("admin not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.AdminField, adminID)
	if err != nil {
		return err
	}

	// delete admin
	found, err := m.store.C(AdminColl).SoftDelete(ctx, adminID)
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("admin not found")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

/* end users */

func (m *Manager) endUsers(w http.ResponseWriter, r *http.Request, s []string) error {
	// get context
	ctx := r.Context()

	// handle collection operations
	if len(s) == 0 || s[0] == "" {
		switch r.Method {
		case "GET":
			return m.listEndUsers(ctx, w)
		case "POST":
			return m.registerEndUser(ctx, w, r)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	// handle session operations
	if len(s) == 1 && (s[0] == "login" || s[0] == "logout") {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return nil
		}
		if s[0] == "login" {
			return m.loginEndUser(ctx, w, r)
		}
		return m.logout(ctx, w, r, session.EndUserField)
	}

	// handle document operations
	if len(s) == 1 {
		switch r.Method {
		case "GET":
			return m.showEndUser(ctx, w, r, s[0])
		case "PUT":
			return m.updateEndUser(ctx, w, r, s[0])
		case "DELETE":
			return m.deleteEndUser(ctx, w, r, s[0])
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	w.WriteHeader(http.StatusNotFound)
	return nil
}

func (m *Manager) loginEndUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// perform login
	id, sid, err := m.login(ctx, r, EndUserColl, session.EndUserField)
	if err != nil {
		return err
	}

	// track authentication time
	_, err = m.store.C(EndUserColl).Update(ctx, id, bson.M{
		"$set": bson.M{"authenticated_at": time.Now()},
	})
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, loginResponse{SID: sid, EndUserID: id.Hex()})
}

func (m *Manager) listEndUsers(ctx context.Context, w http.ResponseWriter) error {
	// load end users
	var users []EndUser
	err := m.store.C(EndUserColl).FindAll(ctx, &users, bson.M{"deleted": false})
	if err != nil {
		return err
	}

	// render summaries
	list := make([]entitySummary, 0, len(users))
	for _, user := range users {
		list = append(list, entitySummary{
			ID:        user.ID().Hex(),
			Name:      user.Name,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		})
	}

	return writeJSON(w, http.StatusOK, listResponse{List: list})
}

func (m *Manager) registerEndUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// decode request
	var user EndUser
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// reset managed fields
	now := time.Now()
	user.Base = store.B()
	user.EmailVerified = false
	user.PhoneVerified = false
	user.AcceptedClients = nil
	user.AuthenticatedAt = time.Time{}
	user.CreatedAt = now
	user.UpdatedAt = now

	// check password
	if user.Password == "" {
		return oauth2.InvalidRequest("missing password")
	}

	// validate
	err = user.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// hash password
	err = user.HashPassword()
	if err != nil {
		return err
	}

	// insert end user
	err = m.store.C(EndUserColl).Insert(ctx, &user)
	if errors.Is(err, store.ErrDuplicate) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, endUserDetail{user.ID().Hex(), &user})
}

func (m *Manager) showEndUser(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	userID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("end user not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.EndUserField, userID)
	if err != nil {
		return err
	}

	// load end user
	var user EndUser
	found, err := m.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"_id":     userID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("end user not found")
	}

	return writeJSON(w, http.StatusOK, endUserDetail{user.ID().Hex(), &user})
}

type endUserUpdate struct {
	CurrentPassword string      `json:"current_password"`
	NewPassword     string      `json:"new_password"`
	Name            *string     `json:"name"`
	Email           *string     `json:"email"`
	GivenName       *string     `json:"given_name"`
	FamilyName      *string     `json:"family_name"`
	MiddleName      *string     `json:"middle_name"`
	Nickname        *string     `json:"nickname"`
	Profile         *string     `json:"profile"`
	Picture         *string     `json:"picture"`
	Website         *string     `json:"website"`
	Gender          *string     `json:"gender"`
	Birthdate       *store.Date `json:"birthdate"`
	Zoneinfo        *string     `json:"zoneinfo"`
	Locale          *string     `json:"locale"`
	PhoneNumber     *string     `json:"phone_number"`
}

func (m *Manager) updateEndUser(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	userID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("end user not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.EndUserField, userID)
	if err != nil {
		return err
	}

	// load end user
	var user EndUser
	found, err := m.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"_id":     userID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("end user not found")
	}

	// decode request
	var req endUserUpdate
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// apply changes
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil && *req.Email != user.Email {
		user.Email = *req.Email
		user.EmailVerified = false
	}
	if req.GivenName != nil {
		user.GivenName = *req.GivenName
	}
	if req.FamilyName != nil {
		user.FamilyName = *req.FamilyName
	}
	if req.MiddleName != nil {
		user.MiddleName = *req.MiddleName
	}
	if req.Nickname != nil {
		user.Nickname = *req.Nickname
	}
	if req.Profile != nil {
		user.Profile = *req.Profile
	}
	if req.Picture != nil {
		user.Picture = *req.Picture
	}
	if req.Website != nil {
		user.Website = *req.Website
	}
	if req.Gender != nil {
		user.Gender = *req.Gender
	}
	if req.Birthdate != nil {
		user.Birthdate = *req.Birthdate
	}
	if req.Zoneinfo != nil {
		user.Zoneinfo = *req.Zoneinfo
	}
	if req.Locale != nil {
		user.Locale = *req.Locale
	}
	if req.PhoneNumber != nil && *req.PhoneNumber != user.PhoneNumber {
		user.PhoneNumber = *req.PhoneNumber
		user.PhoneVerified = false
	}

	// change password if requested
	if req.NewPassword != "" {
		if !user.ValidPassword(req.CurrentPassword) {
			return WrongPassword("wrong current password")
		}
		user.Password = req.NewPassword
		err = user.HashPassword()
		if err != nil {
			return err
		}
	}

	// validate
	err = user.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// save end user
	user.UpdatedAt = time.Now()
	found, err = m.store.C(EndUserColl).Replace(ctx, user.ID(), &user)
	if errors.Is(err, store.ErrConflict) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	} else if !found {
		return ConflictDetected("end user has been removed")
	}

	return writeJSON(w, http.StatusOK, endUserDetail{user.ID().Hex(), &user})
}

func (m *Manager) deleteEndUser(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	userID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("end user not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.EndUserField, userID)
	if err != nil {
		return err
	}

	// delete end user
	found, err := m.store.C(EndUserColl).SoftDelete(ctx, userID)
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("end user not found")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

/* clients */

func (m *Manager) clients(w http.ResponseWriter, r *http.Request, s []string) error {
	// get context
	ctx := r.Context()

	// handle collection operations
	if len(s) == 0 || s[0] == "" {
		switch r.Method {
		case "GET":
			return m.listClients(ctx, w)
		case "POST":
			return m.registerClient(ctx, w, r)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	// handle session operations
	if len(s) == 1 && (s[0] == "login" || s[0] == "logout") {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return nil
		}
		if s[0] == "login" {
			return m.loginClient(ctx, w, r)
		}
		return m.logout(ctx, w, r, session.ClientField)
	}

	// handle document operations
	if len(s) == 1 {
		switch r.Method {
		case "GET":
			return m.showClient(ctx, w, r, s[0])
		case "PUT":
			return m.updateClient(ctx, w, r, s[0])
		case "DELETE":
			return m.deleteClient(ctx, w, r, s[0])
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	w.WriteHeader(http.StatusNotFound)
	return nil
}

func (m *Manager) loginClient(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// perform login
	id, sid, err := m.login(ctx, r, ClientColl, session.ClientField)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, loginResponse{SID: sid, ClientID: id.Hex()})
}

func (m *Manager) listClients(ctx context.Context, w http.ResponseWriter) error {
	// load clients
	var clients []Client
	err := m.store.C(ClientColl).FindAll(ctx, &clients, bson.M{"deleted": false})
	if err != nil {
		return err
	}

	// render summaries
	list := make([]clientSummary, 0, len(clients))
	for _, client := range clients {
		list = append(list, clientSummary{
			ID:         client.ID().Hex(),
			Name:       client.Name,
			Website:    client.Website,
			ResourceID: client.ResourceID.Hex(),
			CreatedAt:  client.CreatedAt,
			UpdatedAt:  client.UpdatedAt,
		})
	}

	return writeJSON(w, http.StatusOK, listResponse{List: list})
}

func (m *Manager) registerClient(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// decode request
	var client Client
	err := json.NewDecoder(r.Body).Decode(&client)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// reset managed fields and generate secret
	now := time.Now()
	client.Base = store.B()
	client.Secret = keys.MustRandString(64)
	client.CreatedAt = now
	client.UpdatedAt = now

	// default to a confidential client
	if client.Type == "" {
		client.Type = ConfidentialClient
	}

	// check password
	if client.Password == "" {
		return oauth2.InvalidRequest("missing password")
	}

	// validate
	err = client.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// verify resource
	count, err := m.store.C(ResourceColl).Count(ctx, bson.M{
		"_id":     client.ResourceID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if count == 0 {
		return EntityNotFound("resource not found")
	}

	// hash password
	err = client.HashPassword()
	if err != nil {
		return err
	}

	// insert client
	err = m.store.C(ClientColl).Insert(ctx, &client)
	if errors.Is(err, store.ErrDuplicate) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, clientDetail{client.ID().Hex(), &client})
}

func (m *Manager) showClient(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	clientID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("client not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.ClientField, clientID)
	if err != nil {
		return err
	}

	// load client
	var client Client
	found, err := m.store.C(ClientColl).FindOne(ctx, &client, bson.M{
		"_id":     clientID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("client not found")
	}

	return writeJSON(w, http.StatusOK, clientDetail{client.ID().Hex(), &client})
}

type clientUpdate struct {
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
	Name            *string   `json:"name"`
	Website         *string   `json:"website"`
	RedirectURIs    *[]string `json:"redirect_uris"`
}

func (m *Manager) updateClient(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	clientID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("client not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.ClientField, clientID)
	if err != nil {
		return err
	}

	// load client
	var client Client
	found, err := m.store.C(ClientColl).FindOne(ctx, &client, bson.M{
		"_id":     clientID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("client not found")
	}

	// decode request
	var req clientUpdate
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// apply changes
	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Website != nil {
		client.Website = *req.Website
	}
	if req.RedirectURIs != nil {
		client.RedirectURIs = *req.RedirectURIs
	}

	// change password if requested
	if req.NewPassword != "" {
		if !client.ValidPassword(req.CurrentPassword) {
			return WrongPassword("wrong current password")
		}
		client.Password = req.NewPassword
		err = client.HashPassword()
		if err != nil {
			return err
		}
	}

	// validate
	err = client.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// save client
	client.UpdatedAt = time.Now()
	found, err = m.store.C(ClientColl).Replace(ctx, client.ID(), &client)
	if errors.Is(err, store.ErrConflict) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	} else if !found {
		return ConflictDetected("client has been removed")
	}

	return writeJSON(w, http.StatusOK, clientDetail{client.ID().Hex(), &client})
}

func (m *Manager) deleteClient(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	clientID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("client not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.ClientField, clientID)
	if err != nil {
		return err
	}

	// delete client
	found, err := m.store.C(ClientColl).SoftDelete(ctx, clientID)
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("client not found")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

/* resources */

func (m *Manager) resources(w http.ResponseWriter, r *http.Request, s []string) error {
	// get context
	ctx := r.Context()

	// handle collection operations
	if len(s) == 0 || s[0] == "" {
		switch r.Method {
		case "GET":
			return m.listResources(ctx, w)
		case "POST":
			return m.registerResource(ctx, w, r)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	// handle session operations
	if len(s) == 1 && (s[0] == "login" || s[0] == "logout") {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return nil
		}
		if s[0] == "login" {
			return m.loginResource(ctx, w, r)
		}
		return m.logout(ctx, w, r, session.ResourceField)
	}

	// handle document operations
	if len(s) == 1 {
		switch r.Method {
		case "GET":
			return m.showResource(ctx, w, r, s[0])
		case "PUT":
			return m.updateResource(ctx, w, r, s[0])
		case "DELETE":
			return m.deleteResource(ctx, w, r, s[0])
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	w.WriteHeader(http.StatusNotFound)
	return nil
}

func (m *Manager) loginResource(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// perform login
	id, sid, err := m.login(ctx, r, ResourceColl, session.ResourceField)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, loginResponse{SID: sid, ResourceID: id.Hex()})
}

func (m *Manager) listResources(ctx context.Context, w http.ResponseWriter) error {
	// load resources
	var resources []Resource
	err := m.store.C(ResourceColl).FindAll(ctx, &resources, bson.M{"deleted": false})
	if err != nil {
		return err
	}

	// render summaries
	list := make([]entitySummary, 0, len(resources))
	for _, resource := range resources {
		list = append(list, entitySummary{
			ID:        resource.ID().Hex(),
			Name:      resource.Name,
			CreatedAt: resource.CreatedAt,
			UpdatedAt: resource.UpdatedAt,
		})
	}

	return writeJSON(w, http.StatusOK, listResponse{List: list})
}

func (m *Manager) registerResource(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// decode request
	var resource Resource
	err := json.NewDecoder(r.Body).Decode(&resource)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// reset managed fields and generate secret
	now := time.Now()
	resource.Base = store.B()
	resource.Secret = keys.MustRandString(64)
	resource.CreatedAt = now
	resource.UpdatedAt = now

	// check password
	if resource.Password == "" {
		return oauth2.InvalidRequest("missing password")
	}

	// validate
	err = resource.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// hash password
	err = resource.HashPassword()
	if err != nil {
		return err
	}

	// insert resource
	err = m.store.C(ResourceColl).Insert(ctx, &resource)
	if errors.Is(err, store.ErrDuplicate) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, resourceDetail{resource.ID().Hex(), &resource})
}

func (m *Manager) showResource(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	resourceID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("resource not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.ResourceField, resourceID)
	if err != nil {
		return err
	}

	// load resource
	var resource Resource
	found, err := m.store.C(ResourceColl).FindOne(ctx, &resource, bson.M{
		"_id":     resourceID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("resource not found")
	}

	return writeJSON(w, http.StatusOK, resourceDetail{resource.ID().Hex(), &resource})
}

type resourceUpdate struct {
	CurrentPassword string   `json:"current_password"`
	NewPassword     string   `json:"new_password"`
	Name            *string  `json:"name"`
	Website         *string  `json:"website"`
	Scope           *[]Scope `json:"scope"`
}

func (m *Manager) updateResource(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	resourceID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("resource not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.ResourceField, resourceID)
	if err != nil {
		return err
	}

	// load resource
	var resource Resource
	found, err := m.store.C(ResourceColl).FindOne(ctx, &resource, bson.M{
		"_id":     resourceID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("resource not found")
	}

	// decode request
	var req resourceUpdate
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// apply changes
	if req.Name != nil {
		resource.Name = *req.Name
	}
	if req.Website != nil {
		resource.Website = *req.Website
	}
	if req.Scope != nil {
		resource.Scope = *req.Scope
	}

	// change password if requested
	if req.NewPassword != "" {
		if !resource.ValidPassword(req.CurrentPassword) {
			return WrongPassword("wrong current password")
		}
		resource.Password = req.NewPassword
		err = resource.HashPassword()
		if err != nil {
			return err
		}
	}

	// validate
	err = resource.Validate()
	if err != nil {
		return oauth2.InvalidRequest(err.Error())
	}

	// save resource
	resource.UpdatedAt = time.Now()
	found, err = m.store.C(ResourceColl).Replace(ctx, resource.ID(), &resource)
	if errors.Is(err, store.ErrConflict) {
		return DuplicatedEntity("name already taken")
	} else if err != nil {
		return err
	} else if !found {
		return ConflictDetected("resource has been removed")
	}

	return writeJSON(w, http.StatusOK, resourceDetail{resource.ID().Hex(), &resource})
}

func (m *Manager) deleteResource(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	// parse id
	resourceID, err := store.FromHex(id)
	if err != nil {
		return EntityNotFound("resource not found")
	}

	// authorize access
	err = m.authorize(ctx, r, session.ResourceField, resourceID)
	if err != nil {
		return err
	}

	// delete resource
	found, err := m.store.C(ResourceColl).SoftDelete(ctx, resourceID)
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("resource not found")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
