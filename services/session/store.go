package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sessionRepo "flexify/database/repository/session"
	"flexify/models"
	"flexify/services/api"
	"flexify/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// LandingPath is where logout sends the user.
const LandingPath = "/"

// StoreOptions configure a Store.
type StoreOptions struct {
	API       *api.Client
	Storage   sessionRepo.SessionStorage
	Navigator Navigator
	Logger    *zap.Logger
	// RedirectDelay postpones the post-logout navigation.
	RedirectDelay time.Duration
	Now           func() time.Time
}

// Store is the single owner of the session. Only its methods mutate the
// session, the armed API token and persisted session storage.
type Store struct {
	api           *api.Client
	storage       sessionRepo.SessionStorage
	nav           Navigator
	logger        *zap.Logger
	redirectDelay time.Duration
	now           func() time.Time

	mu      sync.RWMutex
	session *models.Session

	refreshGroup singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func(*models.Session)
	nextSub int
}

// NewStore creates an unauthenticated Store. Call Restore to adopt a
// persisted session.
func NewStore(opts StoreOptions) *Store {
	storage := opts.Storage
	if storage == nil {
		storage = sessionRepo.NewMemorySessionStorage()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		api:           opts.API,
		storage:       storage,
		nav:           opts.Navigator,
		logger:        utils.OrNop(opts.Logger),
		redirectDelay: opts.RedirectDelay,
		now:           now,
		subs:          make(map[int]func(*models.Session)),
	}
}

// Current returns a copy of the active session, or nil.
func (s *Store) Current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Authenticated reports whether a session is active.
func (s *Store) Authenticated() bool {
	return s.Current() != nil
}

// Role returns the active role, or "".
func (s *Store) Role() models.Role {
	if cur := s.Current(); cur != nil {
		return cur.Role
	}
	return ""
}

// Subscribe registers fn to be called with the new session (nil when signed
// out) after every change. It returns a function that removes the
// subscription.
func (s *Store) Subscribe(fn func(*models.Session)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(sess *models.Session) {
	s.subMu.Lock()
	fns := make([]func(*models.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		var cp *models.Session
		if sess != nil {
			c := *sess
			cp = &c
		}
		fn(cp)
	}
}

// Restore adopts the persisted session if it is complete and consistent, and
// purges storage otherwise.
func (s *Store) Restore(ctx context.Context) error {
	p, err := s.storage.Load(ctx)
	if errors.Is(err, sessionRepo.ErrCorruptSession) {
		s.logger.Warn("Clearing corrupt persisted session", zap.Error(err))
		if err := s.storage.Clear(ctx); err != nil {
			s.logger.Error("Failed to clear persisted session", zap.Error(err))
		}
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to read persisted session", zap.Error(err))
		return fmt.Errorf("restore session: %w", err)
	}
	if p.Empty() {
		return nil
	}
	sess, reason := decodePersisted(p, s.now())
	if sess == nil {
		s.logger.Info("Clearing inconsistent persisted session", zap.String("reason", reason))
		if err := s.storage.Clear(ctx); err != nil {
			s.logger.Error("Failed to clear persisted session", zap.Error(err))
		}
		return nil
	}
	s.adopt(sess)
	s.logger.Info("Session restored", zap.String("userID", sess.User.ID), zap.String("role", string(sess.Role)))
	return nil
}

// decodePersisted rebuilds a session from storage, or explains why it cannot.
func decodePersisted(p models.PersistedSession, now time.Time) (*models.Session, string) {
	if p.User == "" || p.Token == "" {
		return nil, "user or token missing"
	}
	var user models.User
	if err := json.Unmarshal([]byte(p.User), &user); err != nil {
		return nil, "stored user is not valid JSON"
	}
	roleStr := p.Role
	if roleStr == "" {
		roleStr = string(user.Role)
	}
	role, ok := models.ParseRole(roleStr)
	if !ok {
		return nil, fmt.Sprintf("invalid role %q", roleStr)
	}
	if exp, ok := utils.TokenExpiry(p.Token); ok && !exp.After(now) && p.RefreshToken == "" {
		return nil, "access token expired and no refresh token"
	}
	user.Role = role
	return &models.Session{
		Token:        p.Token,
		RefreshToken: p.RefreshToken,
		User:         user,
		Role:         role,
	}, ""
}

func toPersisted(sess *models.Session) (models.PersistedSession, error) {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return models.PersistedSession{}, err
	}
	return models.PersistedSession{
		Token:        sess.Token,
		RefreshToken: sess.RefreshToken,
		User:         string(userJSON),
		Role:         string(sess.Role),
	}, nil
}

// adopt installs sess as the active session and arms the token.
func (s *Store) adopt(sess *models.Session) {
	s.mu.Lock()
	s.session = sess
	s.api.SetToken(sess.Token)
	s.mu.Unlock()
	s.notify(sess)
}

// persist mirrors sess into storage. A failed write clears storage so a
// previous account's session cannot be restored later.
func (s *Store) persist(ctx context.Context, sess *models.Session) {
	p, err := toPersisted(sess)
	if err == nil {
		err = s.storage.Save(ctx, p)
	}
	if err != nil {
		s.logger.Error("Failed to persist session", zap.Error(err))
		if cerr := s.storage.Clear(ctx); cerr != nil {
			s.logger.Error("Failed to clear persisted session", zap.Error(cerr))
		}
	}
}

// Login authenticates against /auth/login. When expectedRole is set and the
// account has another role, it fails with RoleMismatchError and leaves the
// session untouched.
func (s *Store) Login(ctx context.Context, email, password string, expectedRole models.Role) (*models.LoginResponse, error) {
	var raw json.RawMessage
	err := s.api.Send(ctx, api.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      map[string]string{"email": email, "password": password},
		Anonymous: true,
	}, &raw)
	if err != nil {
		if api.IsNetwork(err) {
			return nil, err
		}
		msg := api.MessageOf(err)
		if msg == "" {
			msg = "Login failed. Please check your credentials."
		}
		return nil, &AuthError{Op: "login", Message: msg, Err: err}
	}

	resp, err := normalizeLogin(raw)
	if err != nil {
		s.logger.Error("Unusable login response", zap.Error(err))
		return nil, &AuthError{Op: "login", Message: "Login failed. Please try again.", Err: err}
	}
	if expectedRole != "" && resp.Role != expectedRole {
		s.logger.Info("Login role mismatch",
			zap.String("expected", string(expectedRole)), zap.String("actual", string(resp.Role)))
		return nil, &RoleMismatchError{Expected: expectedRole, Actual: resp.Role}
	}

	sess := &models.Session{
		Token:        resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
		Role:         resp.Role,
	}
	s.persist(context.WithoutCancel(ctx), sess)
	s.adopt(sess)
	s.logger.Info("Logged in", zap.String("userID", sess.User.ID), zap.String("role", string(sess.Role)))
	return resp, nil
}

// Register creates an account through /auth/register and then signs in with
// the same credentials. Admin accounts cannot be registered.
func (s *Store) Register(ctx context.Context, reg models.Registration, confirmPassword string) (*models.LoginResponse, error) {
	if reg.Role == "" {
		reg.Role = models.RoleUser
	}
	if msg := checkRegistration(reg, confirmPassword); msg != "" {
		return nil, &AuthError{Op: "register", Message: msg}
	}

	err := s.api.Send(ctx, api.Request{
		Method:    http.MethodPost,
		Path:      "/auth/register",
		Body:      reg,
		Anonymous: true,
	}, nil)
	if err != nil {
		if api.IsNetwork(err) {
			return nil, err
		}
		msg := api.MessageOf(err)
		if msg == "" {
			msg = "Registration failed. Please try again."
		}
		s.logger.Info("Registration rejected", zap.String("email", reg.Email), zap.Error(err))
		return nil, &AuthError{Op: "register", Message: msg, Err: err}
	}
	s.logger.Info("Registered", zap.String("email", reg.Email), zap.String("role", string(reg.Role)))
	return s.Login(ctx, reg.Email, reg.Password, reg.Role)
}

func checkRegistration(reg models.Registration, confirmPassword string) string {
	switch {
	case strings.TrimSpace(reg.Name) == "":
		return "Please enter your full name"
	case !strings.Contains(reg.Email, "@"):
		return "Please enter a valid email address"
	case reg.Password != confirmPassword:
		return "Passwords do not match"
	case len(reg.Password) < 6:
		return "Password must be at least 6 characters long"
	case reg.Role != models.RoleUser && reg.Role != models.RoleProvider:
		return "Only user and provider accounts can be registered"
	case reg.Role == models.RoleProvider && reg.Category == "":
		return "Please select a service category"
	}
	return ""
}

// normalizeLogin maps the login payload to one shape. The nested user role
// wins over a top-level role, and accessToken over token.
func normalizeLogin(raw json.RawMessage) (*models.LoginResponse, error) {
	var body struct {
		AccessToken  string       `json:"accessToken"`
		Token        string       `json:"token"`
		RefreshToken string       `json:"refreshToken"`
		Role         string       `json:"role"`
		User         *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	token := body.AccessToken
	if token == "" {
		token = body.Token
	}
	if token == "" {
		return nil, errors.New("login response carries no access token")
	}
	if body.User == nil {
		return nil, errors.New("login response carries no user")
	}
	roleStr := string(body.User.Role)
	if roleStr == "" {
		roleStr = body.Role
	}
	role, ok := models.ParseRole(roleStr)
	if !ok {
		return nil, fmt.Errorf("login response carries unrecognized role %q", roleStr)
	}
	user := *body.User
	user.Role = role
	return &models.LoginResponse{
		AccessToken:  token,
		RefreshToken: body.RefreshToken,
		User:         user,
		Role:         role,
		Raw:          raw,
	}, nil
}

// Refresh exchanges the refresh token for a new access token. On failure the
// session is logged out and the error returned, unless the session was
// replaced while the refresh was in flight.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	token, err := s.refreshShared(ctx, s.Current(), "")
	if err != nil {
		if errors.Is(err, errSessionChanged) {
			s.logger.Info("Discarding refresh for a replaced session")
			return "", err
		}
		s.Logout(ctx)
		return "", err
	}
	return token, nil
}

// sameAccount reports whether both sessions belong to the same account.
func sameAccount(a, b *models.Session) bool {
	return a != nil && b != nil && a.User.ID == b.User.ID && a.Role == b.Role
}

// refreshShared coalesces concurrent refreshes of owner's session onto one
// request. When stale is set and the session already carries another token,
// that token is returned without a request.
func (s *Store) refreshShared(ctx context.Context, owner *models.Session, stale string) (string, error) {
	key := "refresh"
	if owner != nil {
		key += ":" + owner.User.ID + "|" + string(owner.Role)
	}
	v, err, shared := s.refreshGroup.Do(key, func() (interface{}, error) {
		return s.doRefresh(context.WithoutCancel(ctx), owner, stale)
	})
	if shared {
		s.logger.Debug("Joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func changedError() error {
	return &AuthError{Op: "refresh", Message: "Please sign in again.", Err: errSessionChanged}
}

func (s *Store) doRefresh(ctx context.Context, owner *models.Session, stale string) (string, error) {
	before := s.Current()
	if owner != nil && !sameAccount(before, owner) {
		return "", changedError()
	}
	if before == nil {
		return "", &AuthError{Op: "refresh", Message: "Please sign in again.", Err: ErrNotAuthenticated}
	}
	if stale != "" && before.Token != stale {
		return before.Token, nil
	}
	if before.RefreshToken == "" {
		return "", &AuthError{Op: "refresh", Message: "Please sign in again.", Err: ErrNoRefreshToken}
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	err := s.api.Send(ctx, api.Request{
		Method:    http.MethodPost,
		Path:      "/auth/refresh",
		Body:      map[string]string{"refreshToken": before.RefreshToken},
		Anonymous: true,
	}, &out)
	if err != nil {
		s.logger.Warn("Token refresh failed", zap.Error(err))
		if !sameAccount(s.Current(), before) {
			return "", changedError()
		}
		return "", &AuthError{Op: "refresh", Message: "Your session could not be renewed. Please sign in again.", Err: err}
	}
	if out.AccessToken == "" {
		return "", &AuthError{Op: "refresh", Message: "Your session could not be renewed. Please sign in again.",
			Err: errors.New("refresh response carries no access token")}
	}

	s.mu.Lock()
	if !sameAccount(s.session, before) || s.session.RefreshToken != before.RefreshToken {
		s.mu.Unlock()
		return "", changedError()
	}
	next := *s.session
	next.Token = out.AccessToken
	if out.RefreshToken != "" {
		next.RefreshToken = out.RefreshToken
	}
	s.session = &next
	s.api.SetToken(next.Token)
	s.mu.Unlock()

	s.persist(ctx, &next)
	s.notify(&next)
	s.logger.Debug("Access token refreshed", zap.String("userID", next.User.ID))
	return next.Token, nil
}

// Logout notifies the server (best effort) and then clears the session
// unconditionally and redirects to the landing page.
func (s *Store) Logout(ctx context.Context) {
	if s.Current() != nil {
		err := s.api.Send(ctx, api.Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
		if err != nil {
			s.logger.Warn("Logout API call failed", zap.Error(err))
		}
	}
	s.teardown(ctx, LandingPath, nil)
	s.logger.Info("Logout complete - state cleared")
}

// expire tears owner's session down after an unrecoverable 401 and sends the
// user to the login screen of the role they had. A session that already
// belongs to another account is left alone.
func (s *Store) expire(ctx context.Context, owner *models.Session) {
	if !s.teardown(ctx, owner.Role.LoginPath(), owner) {
		s.logger.Info("Session replaced before expiry, keeping it")
		return
	}
	s.logger.Info("Session expired", zap.String("role", string(owner.Role)))
}

// teardown clears the session, or only owner's session when owner is set.
// It reports whether anything was torn down.
func (s *Store) teardown(ctx context.Context, redirect string, owner *models.Session) bool {
	s.mu.Lock()
	if owner != nil && !sameAccount(s.session, owner) {
		s.mu.Unlock()
		return false
	}
	s.session = nil
	s.api.SetToken("")
	s.mu.Unlock()

	if err := s.storage.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("Failed to clear persisted session", zap.Error(err))
	}
	s.notify(nil)

	if s.nav != nil {
		nav := s.nav
		time.AfterFunc(s.redirectDelay, func() { nav.Navigate(redirect) })
	}
	return true
}
