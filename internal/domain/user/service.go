package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/wardbook/internal/platform/ident"
)

// Registry is the authoritative in-memory view of every user, backed by a
// Repository. Every mutation is followed by a full save of the affected user.
type Registry struct {
	repo   Repository
	logger zerolog.Logger
	newID  func() string
	now    func() time.Time

	// mu guards the cache and every field of the cached users.
	mu    sync.RWMutex
	cache map[string]User
	order []string // insertion order of cache keys

	// saveMu orders writes so the last document written is the newest.
	saveMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator replaces ident.NewID.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithClock replaces ident.Now.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) { r.now = fn }
}

// NewRegistry builds a Registry and loads every stored partition into its
// cache. Unreadable or malformed documents are logged and skipped.
func NewRegistry(ctx context.Context, repo Repository, logger zerolog.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		repo:   repo,
		logger: logger,
		newID:  ident.NewID,
		now:    ident.Now,
		cache:  make(map[string]User),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.loadAll(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadAll(ctx context.Context) error {
	for _, role := range StoredRoles {
		records, err := r.repo.ListAll(ctx, role)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error().Err(err).Str("role", role.String()).Msg("failed to list partition")
			continue
		}
		loaded := 0
		for _, rec := range records {
			u, err := rec.Decode()
			if err != nil {
				r.logger.Warn().Err(err).Str("path", rec.Path).Msg("skipping malformed user file")
				continue
			}
			if err := r.insert(u); err != nil {
				r.logger.Warn().Err(err).Str("path", rec.Path).Msg("skipping user file")
				continue
			}
			loaded++
		}
		r.logger.Debug().Str("role", role.String()).Int("count", loaded).Msg("partition loaded")
	}
	return nil
}

// insert adds u to the cache, rejecting an id that is already present.
func (r *Registry) insert(u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := u.Base().ID
	if _, exists := r.cache[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.cache[id] = u
	r.order = append(r.order, id)
	return nil
}

// adopt caches u unless another entry for its id won a race, and returns the
// cached entry.
func (r *Registry) adopt(u User) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := u.Base().ID
	if existing, ok := r.cache[id]; ok {
		return existing
	}
	r.cache[id] = u
	r.order = append(r.order, id)
	return u
}

func (r *Registry) evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[id]; !ok {
		return false
	}
	delete(r.cache, id)
	for i, k := range r.order {
		if k == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// save persists u. The document is encoded under the read lock and written
// outside it. Failures are logged and returned; the cached entity keeps its
// new state either way.
func (r *Registry) save(ctx context.Context, u User) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	id := u.Base().ID
	r.mu.RLock()
	if r.cache[id] != u {
		// Deleted while the caller was working on it.
		r.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec, err := NewRecord(u)
	r.mu.RUnlock()
	if err == nil {
		err = r.repo.Write(ctx, rec)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Str("role", u.Role().String()).Msg("failed to save user")
		if !errors.Is(err, ErrStorageIO) {
			return fmt.Errorf("%w: %v", ErrStorageIO, err)
		}
		return err
	}
	return nil
}

func (r *Registry) stamp(a *Account) time.Time {
	now := r.now()
	a.ID = r.newID()
	a.CreatedAt = NewTimestamp(now)
	return now
}

// CreatePatient assigns p a new id and creation time, opens its admission
// log with an admission to dept, caches and saves it. When the save fails
// the patient is returned together with the error and stays cached.
func (r *Registry) CreatePatient(ctx context.Context, p *Patient, dept Department) (*Patient, error) {
	if !dept.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepartment, int(dept))
	}
	now := r.stamp(&p.Account)
	p.Admissions = make(Admissions)
	p.AddAdmission(dept, ident.FormatTimestamp(now))

	if err := r.insert(p); err != nil {
		r.logger.Error().Err(err).Msg("patient not created")
		return nil, err
	}
	r.logger.Info().Str("id", p.ID).Str("department", dept.String()).Msg("patient created")
	return p, r.save(ctx, p)
}

// CreateAdmin is CreatePatient without an admission log.
func (r *Registry) CreateAdmin(ctx context.Context, a *Admin) (*Admin, error) {
	r.stamp(&a.Account)
	if err := r.insert(a); err != nil {
		r.logger.Error().Err(err).Msg("admin not created")
		return nil, err
	}
	r.logger.Info().Str("id", a.ID).Msg("admin created")
	return a, r.save(ctx, a)
}

// GetUserByID returns the cached user or loads it from the admin partition,
// then the patient partition. A malformed document is returned as an error.
func (r *Registry) GetUserByID(ctx context.Context, id string) (User, bool, error) {
	r.mu.RLock()
	u, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return u, true, nil
	}

	for _, role := range StoredRoles {
		u, ok, err := r.repo.Load(ctx, id, role)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return r.adopt(u), true, nil
		}
	}
	return nil, false, nil
}

// GetUserByUsername finds a user whose username equals name ignoring case
// and surrounding whitespace. The cache is scanned in insertion order, then
// every stored document; the first match wins.
func (r *Registry) GetUserByUsername(ctx context.Context, name string) (User, bool, error) {
	return r.findBy(ctx, name, "username", func(a *Account) string { return a.Username })
}

// GetUserByFullName is GetUserByUsername keyed on full name.
func (r *Registry) GetUserByFullName(ctx context.Context, name string) (User, bool, error) {
	return r.findBy(ctx, name, "fullName", func(a *Account) string { return a.FullName })
}

func (r *Registry) findBy(ctx context.Context, name, field string, get func(*Account) string) (User, bool, error) {
	want := normalize(name)
	if want == "" {
		return nil, false, nil
	}

	r.mu.RLock()
	for _, id := range r.order {
		u := r.cache[id]
		if normalize(get(u.Base())) == want {
			r.mu.RUnlock()
			return u, true, nil
		}
	}
	r.mu.RUnlock()

	for _, role := range StoredRoles {
		records, err := r.repo.ListAll(ctx, role)
		if err != nil {
			r.logger.Warn().Err(err).Str("role", role.String()).Msg("fallback scan failed")
			return nil, false, nil
		}
		for _, rec := range records {
			v, ok := rec.Field(field)
			if !ok || normalize(v) != want {
				continue
			}
			u, err := rec.Decode()
			if err != nil {
				return nil, false, fmt.Errorf("decode %s: %w", rec.Path, err)
			}
			return r.adopt(u), true, nil
		}
	}
	return nil, false, nil
}

// DeleteUserByID drops the user from the cache and removes its document. It
// reports whether a document was removed.
func (r *Registry) DeleteUserByID(ctx context.Context, id string) (bool, error) {
	r.evict(id)
	removed, err := r.repo.Delete(ctx, id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("failed to delete user file")
		return false, err
	}
	if !removed {
		r.logger.Warn().Str("id", id).Msg("no user file to delete")
		return false, nil
	}
	r.logger.Info().Str("id", id).Msg("user deleted")
	return true, nil
}

// UpdateUser sets one field from its string form and saves the user. Unknown
// fields fail with ErrInvalidField, unparsable numbers with ErrValueParse;
// neither writes anything.
func (r *Registry) UpdateUser(ctx context.Context, id, field, value string) error {
	u, ok, err := r.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	r.mu.Lock()
	err = ApplyField(u, field, value)
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn().Err(err).Str("id", id).Str("field", field).Msg("update rejected")
		return err
	}
	r.logger.Info().Str("id", id).Str("field", field).Msg("user updated")
	return r.save(ctx, u)
}

func (r *Registry) patient(ctx context.Context, id string) (*Patient, error) {
	u, ok, err := r.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, isPatient := u.(*Patient)
	if !ok || !isPatient {
		return nil, fmt.Errorf("%w: patient %s", ErrNotFound, id)
	}
	return p, nil
}

// AddAdmission appends an admission to dept stamped with the current time
// and returns that timestamp.
func (r *Registry) AddAdmission(ctx context.Context, id string, dept Department) (string, error) {
	if !dept.valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidDepartment, int(dept))
	}
	p, err := r.patient(ctx, id)
	if err != nil {
		return "", err
	}
	ts := ident.FormatTimestamp(r.now())
	r.mu.Lock()
	p.AddAdmission(dept, ts)
	r.mu.Unlock()
	r.logger.Info().Str("id", id).Str("department", dept.String()).Msg("admission added")
	return ts, r.save(ctx, p)
}

// RemoveAdmission deletes the admission to dept at date.
func (r *Registry) RemoveAdmission(ctx context.Context, id string, dept Department, date string) error {
	p, err := r.patient(ctx, id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	removed := p.RemoveAdmission(dept, date)
	r.mu.Unlock()
	if !removed {
		return fmt.Errorf("%w: admission %s at %q", ErrNotFound, dept, date)
	}
	r.logger.Info().Str("id", id).Str("department", dept.String()).Msg("admission removed")
	return r.save(ctx, p)
}

// ValidateUser authenticates an operator. Only Admin accounts may log in,
// and the password must match byte for byte. On success the user becomes the
// session's current user.
func (r *Registry) ValidateUser(ctx context.Context, sess *Session, username, password string) bool {
	u, ok, err := r.GetUserByUsername(ctx, username)
	if err != nil {
		r.logger.Warn().Err(err).Msg("login lookup failed")
		return false
	}
	ok = ok && u.Role() == RoleAdmin
	if ok {
		r.mu.RLock()
		ok = u.Base().Password == password
		r.mu.RUnlock()
	}
	if !ok {
		r.logger.Warn().Str("username", username).Msg("login rejected")
		return false
	}
	sess.SetCurrentUser(u)
	r.logger.Info().Str("id", u.Base().ID).Msg("login")
	return true
}

// AdminCount counts admin documents on disk.
func (r *Registry) AdminCount(ctx context.Context) (int, error) {
	return r.repo.Count(ctx, RoleAdmin)
}

// PatientCount counts patient documents on disk.
func (r *Registry) PatientCount(ctx context.Context) (int, error) {
	return r.repo.Count(ctx, RolePatient)
}

// GetAdmins lists cached admins whose full name, id or username contains
// query, newest first.
func (r *Registry) GetAdmins(query string) []Summary {
	return r.summaries(RoleAdmin, query)
}

// GetPatients is GetAdmins for patients.
func (r *Registry) GetPatients(query string) []Summary {
	return r.summaries(RolePatient, query)
}

func (r *Registry) summaries(role Role, query string) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Summarize(r.search(role, query))
}

// Search returns the cached users of role matching query, newest first.
func (r *Registry) Search(role Role, query string) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.search(role, query)
}

// search expects r.mu to be held.
func (r *Registry) search(role Role, query string) []User {
	var out []User
	for _, id := range r.order {
		u := r.cache[id]
		if u.Role() != role {
			continue
		}
		a := u.Base()
		if Matches(query, a.FullName, a.ID, a.Username) {
			out = append(out, u)
		}
	}
	SortByRecency(out)
	return out
}

// Read runs fn while no update can modify a cached user. Readers that outlive
// a single Registry call, such as HTTP handlers encoding a response, use it
// to inspect user fields.
func (r *Registry) Read(fn func()) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn()
}
