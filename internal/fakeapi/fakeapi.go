// Package fakeapi is an in-process Hearthside backend for tests. It serves
// the config, auth and generic collection endpoints under /api, counts every
// call and can be told to fail specific routes.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Collections served by default.
var Collections = []string{
	"posts", "comments", "users", "events", "courses",
	"podcasts", "communities", "payments", "gamification", "notifications",
}

// DefaultPassword is the password of users created with AddUser.
const DefaultPassword = "correct horse"

var signingKey = []byte("fakeapi-signing-key")

// User is an account known to the fake backend.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`

	password string
}

type failure struct {
	status     int
	retryAfter string
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[string]*User // by email
	access        map[string]string
	refresh       map[string]string
	docs          map[string]map[string]json.RawMessage
	order         map[string][]string
	calls         map[string]int
	failures      map[string][]failure
	configBaseURL string
	latency       time.Duration
	tokenTTL      time.Duration
	rotate        bool
}

// New starts a fake backend. Close it when done.
func New() *Server {
	s := &Server{
		users:    make(map[string]*User),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		docs:     make(map[string]map[string]json.RawMessage),
		order:    make(map[string][]string),
		calls:    make(map[string]int),
		failures: make(map[string][]failure),
		tokenTTL: time.Hour,
	}
	for _, c := range Collections {
		s.docs[c] = make(map[string]json.RawMessage)
	}
	s.Server = httptest.NewServer(s.Router())
	return s
}

// BaseURL returns the API base URL, the server URL plus "/api".
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// Router returns the chi router with every route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.getConfig)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/register", s.register)
			r.Post("/refresh-token", s.refreshToken)
			r.With(s.authenticate).Post("/logout", s.logout)
			r.With(s.authenticate).Get("/me", s.me)
		})

		r.Route("/{collection}", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/", s.list)
			r.Post("/", s.create)
			r.Get("/{id}", s.get)
			r.Put("/{id}", s.update)
			r.Patch("/{id}", s.update)
			r.Delete("/{id}", s.remove)
		})
	})
	return r
}

// AddUser registers an account with DefaultPassword.
func (s *Server) AddUser(username, email string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, email, DefaultPassword)
}

func (s *Server) addUserLocked(username, email, password string) *User {
	u := &User{ID: uuid.NewString(), Username: username, Email: email, password: password}
	s.users[email] = u
	return u
}

// Seed stores documents in a collection. Each document must carry an "id".
func (s *Server) Seed(collection string, docs ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	for _, d := range docs {
		id, _ := d["id"].(string)
		if id == "" {
			id = uuid.NewString()
			d["id"] = id
		}
		raw, _ := json.Marshal(d)
		if _, exists := s.docs[collection][id]; !exists {
			s.order[collection] = append(s.order[collection], id)
		}
		s.docs[collection][id] = raw
	}
}

// Calls returns how many requests reached "METHOD /path", for example
// "GET /api/posts".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next len(statuses) requests to "METHOD /path" fail
// with the given statuses, in order. A 429 carries Retry-After: 30.
func (s *Server) FailNext(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range statuses {
		f := failure{status: st}
		if st == http.StatusTooManyRequests {
			f.retryAfter = "30"
		}
		s.failures[route] = append(s.failures[route], f)
	}
}

// ExpireAccessTokens invalidates every issued access token. Refresh tokens
// keep working.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// SetConfigBaseURL sets the apiBaseUrl advertised by /api/config. Empty
// advertises the server's own base URL.
func (s *Server) SetConfigBaseURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configBaseURL = u
}

// SetLatency delays every response.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// SetTokenTTL sets the exp of newly issued access tokens. A negative TTL
// issues tokens that are already expired.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// RotateRefreshTokens makes the refresh endpoint issue a new refresh token
// each time.
func (s *Server) RotateRefreshTokens(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotate = on
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.calls[route]++
		latency := s.latency
		var fail *failure
		if queue := s.failures[route]; len(queue) > 0 {
			f := queue[0]
			fail = &f
			s.failures[route] = queue[1:]
		}
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			if fail.retryAfter != "" {
				w.Header().Set("Retry-After", fail.retryAfter)
			}
			writeError(w, fail.status, http.StatusText(fail.status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		userID, ok := s.access[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if exp := tokenExpiry(token); !exp.IsZero() && time.Now().After(exp) {
			writeError(w, http.StatusUnauthorized, "jwt expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (s *Server) issueLocked(userID string) (access, refresh string) {
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
		"exp": time.Now().Add(s.tokenTTL).Unix(),
	}
	access, _ = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	refresh = uuid.NewString()
	s.access[access] = userID
	s.refresh[refresh] = userID
	return access, refresh
}

func (s *Server) userByIDLocked(id string) *User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return signingKey, nil },
		jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	base := s.configBaseURL
	s.mu.Unlock()
	if base == "" {
		base = s.BaseURL()
	}
	writeData(w, http.StatusOK, map[string]string{"apiBaseUrl": base}, nil)
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	if !ok || u.password != req.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	access, refresh := s.issueLocked(u.ID)
	user := *u
	s.mu.Unlock()

	writeData(w, http.StatusOK, authData(access, refresh, &user), nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		writeError(w, http.StatusUnprocessableEntity, "username, email and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	u := s.addUserLocked(req.Username, req.Email, req.Password)
	access, refresh := s.issueLocked(u.ID)
	user := *u
	s.mu.Unlock()

	writeData(w, http.StatusCreated, authData(access, refresh, &user), nil)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	access, rotated := s.issueLocked(userID)
	data := map[string]string{"token": access}
	if s.rotate {
		delete(s.refresh, req.RefreshToken)
		data["refreshToken"] = rotated
	} else {
		delete(s.refresh, rotated)
	}
	writeData(w, http.StatusOK, data, nil)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.access, token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "logged out"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.userByIDLocked(userIDFrom(r.Context()))
	var user User
	if u != nil {
		user = *u
	}
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "user no longer exists")
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": user}, nil)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	page := intParam(r, "page", 1)
	limit := intParam(r, "limit", 10)

	s.mu.Lock()
	docs, ok := s.docs[collection]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "unknown collection "+collection)
		return
	}
	ids := append([]string(nil), s.order[collection]...)
	items := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if d, ok := docs[id]; ok {
			items = append(items, d)
		}
	}
	s.mu.Unlock()

	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pages := (total + limit - 1) / limit

	writeData(w, http.StatusOK, items[start:end], map[string]int{
		"page": page, "limit": limit, "total": total, "pages": pages,
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	s.mu.Lock()
	doc, ok := s.docs[collection][id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, strings.TrimSuffix(collection, "s")+" not found")
		return
	}
	writeData(w, http.StatusOK, doc, nil)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.NewString()
	}
	doc["authorId"] = userIDFrom(r.Context())
	s.Seed(collection, doc)
	writeData(w, http.StatusCreated, doc, nil)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	raw, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, strings.TrimSuffix(collection, "s")+" not found")
		return
	}
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)
	for k, v := range patch {
		doc[k] = v
	}
	doc["id"] = id
	updated, _ := json.Marshal(doc)
	s.docs[collection][id] = updated
	s.mu.Unlock()

	writeData(w, http.StatusOK, doc, nil)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.docs[collection][id]
	if ok {
		delete(s.docs[collection], id)
		ids := s.order[collection]
		for i, v := range ids {
			if v == id {
				s.order[collection] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, strings.TrimSuffix(collection, "s")+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func authData(access, refresh string, u *User) map[string]any {
	return map[string]any{"token": access, "refreshToken": refresh, "user": u}
}
