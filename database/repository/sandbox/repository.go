package sandboxRepo

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"flexify/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateUser = errors.New("email already registered")
	ErrBlocked       = errors.New("account is blocked")
)

// Account is a sandbox login.
type Account struct {
	User         models.User
	PasswordHash []byte
}

// Repository is the sandbox data layer: accounts, providers and bookings, all
// held in memory.
type Repository interface {
	CreateAccount(user models.User, password string) (*models.User, error)
	Authenticate(email, password string) (*models.User, error)
	GetAccount(id string) (*models.User, error)
	// ListAccounts returns accounts of role, or all of them when role is "".
	ListAccounts(role models.Role) []models.User
	SetBlocked(id string, blocked bool) (*models.User, error)

	RevokeToken(hash string)
	IsRevoked(hash string) bool

	UpsertProvider(p models.ProviderCandidate)
	GetProvider(id string) (*models.ProviderCandidate, error)
	ListProviders(category string, verifiedOnly bool) []models.ProviderCandidate
	UpdateProvider(id string, fn func(p *models.ProviderCandidate) error) (*models.ProviderCandidate, error)

	// CreateBooking stores b. A repeated idempotency key returns the booking
	// created first, with created false.
	CreateBooking(b models.Booking, idempotencyKey string) (stored models.Booking, created bool)
	GetBooking(id string) (*models.Booking, error)
	UpdateBooking(id string, fn func(b *models.Booking) error) (*models.Booking, error)
	BookingsByUser(userID string) []models.Booking
	BookingsByProvider(providerID string) []models.Booking
	AllBookings() []models.Booking
}

type memoryRepo struct {
	mu          sync.RWMutex
	accounts    map[string]*Account
	byEmail     map[string]string
	revoked     map[string]struct{}
	providers   map[string]models.ProviderCandidate
	bookings    map[string]*models.Booking
	idempotency map[string]string
	now         func() time.Time
}

// NewMemoryRepository returns an empty Repository.
func NewMemoryRepository() Repository {
	return &memoryRepo{
		accounts:    make(map[string]*Account),
		byEmail:     make(map[string]string),
		revoked:     make(map[string]struct{}),
		providers:   make(map[string]models.ProviderCandidate),
		bookings:    make(map[string]*models.Booking),
		idempotency: make(map[string]string),
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *memoryRepo) CreateAccount(user models.User, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return nil, ErrDuplicateUser
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = email
	r.accounts[user.ID] = &Account{User: user, PasswordHash: hash}
	r.byEmail[email] = user.ID
	u := user
	return &u, nil
}

func (r *memoryRepo) Authenticate(email, password string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[normalizeEmail(email)]
	var acc *Account
	if ok {
		acc = r.accounts[id]
	}
	r.mu.RUnlock()
	if acc == nil {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return nil, err
	}
	if acc.User.Blocked {
		return nil, ErrBlocked
	}
	u := acc.User
	return &u, nil
}

func (r *memoryRepo) GetAccount(id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := acc.User
	return &u, nil
}

func (r *memoryRepo) ListAccounts(role models.Role) []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.User{}
	for _, acc := range r.accounts {
		if role == "" || acc.User.Role == role {
			out = append(out, acc.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) SetBlocked(id string, blocked bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	acc.User.Blocked = blocked
	u := acc.User
	return &u, nil
}

func (r *memoryRepo) RevokeToken(hash string) {
	r.mu.Lock()
	r.revoked[hash] = struct{}{}
	r.mu.Unlock()
}

func (r *memoryRepo) IsRevoked(hash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[hash]
	return ok
}

func (r *memoryRepo) UpsertProvider(p models.ProviderCandidate) {
	r.mu.Lock()
	r.providers[p.ID] = p
	r.mu.Unlock()
}

func (r *memoryRepo) GetProvider(id string) (*models.ProviderCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryRepo) ListProviders(category string, verifiedOnly bool) []models.ProviderCandidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ProviderCandidate
	for _, p := range r.providers {
		if category != "" && p.Category != category {
			continue
		}
		if verifiedOnly && !p.Verified {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateProvider applies fn to a copy of the provider and stores it only when
// fn succeeds.
func (r *memoryRepo) UpdateProvider(id string, fn func(p *models.ProviderCandidate) error) (*models.ProviderCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&p); err != nil {
		return nil, err
	}
	r.providers[id] = p
	return &p, nil
}

func (r *memoryRepo) CreateBooking(b models.Booking, idempotencyKey string) (models.Booking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idempotencyKey != "" {
		if id, ok := r.idempotency[idempotencyKey]; ok {
			if existing, ok := r.bookings[id]; ok {
				return *existing, false
			}
		}
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now()
	}
	stored := b
	r.bookings[b.ID] = &stored
	if idempotencyKey != "" {
		r.idempotency[idempotencyKey] = b.ID
	}
	return stored, true
}

func (r *memoryRepo) GetBooking(id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

// UpdateBooking applies fn to a copy of the booking and stores it only when
// fn succeeds.
func (r *memoryRepo) UpdateBooking(id string, fn func(b *models.Booking) error) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *b
	if err := fn(&next); err != nil {
		return nil, err
	}
	r.bookings[id] = &next
	out := next
	return &out, nil
}

func (r *memoryRepo) BookingsByUser(userID string) []models.Booking {
	return r.filterBookings(func(b *models.Booking) bool { return b.UserID == userID })
}

func (r *memoryRepo) BookingsByProvider(providerID string) []models.Booking {
	return r.filterBookings(func(b *models.Booking) bool { return b.ProviderID == providerID })
}

func (r *memoryRepo) AllBookings() []models.Booking {
	return r.filterBookings(func(*models.Booking) bool { return true })
}

// filterBookings returns matches newest first.
func (r *memoryRepo) filterBookings(keep func(b *models.Booking) bool) []models.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Booking{}
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
