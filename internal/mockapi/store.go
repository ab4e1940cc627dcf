package mockapi

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Latency per operation kind, matching the delays of the reference backend.
type Latency struct {
	List   time.Duration
	Detail time.Duration
	Write  time.Duration
}

// DefaultLatency is what NewStore uses unless WithLatency overrides it.
var DefaultLatency = Latency{
	List:   500 * time.Millisecond,
	Detail: 300 * time.Millisecond,
	Write:  800 * time.Millisecond,
}

// Option configures a Store.
type Option func(*Store)

// WithLatency sets the simulated latency.
func WithLatency(l Latency) Option {
	return func(s *Store) { s.latency = l }
}

// WithUniformLatency uses d for every operation. Zero disables waiting.
func WithUniformLatency(d time.Duration) Option {
	return WithLatency(Latency{List: d, Detail: d, Write: d})
}

// WithFailureRate makes ToggleTodo fail with ErrServer with probability p.
func WithFailureRate(p float64) Option {
	return func(s *Store) { s.failureRate = clamp01(p) }
}

// WithReadFailureRate makes list and detail reads fail with ErrServer with
// probability p.
func WithReadFailureRate(p float64) Option {
	return func(s *Store) { s.readFailureRate = clamp01(p) }
}

// WithRand sets the source of simulated failures, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithLogger sets the logger for store activity.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store holds users, todos and products. Posts are generated and read-only.
type Store struct {
	latency         Latency
	failureRate     float64
	readFailureRate float64
	logger          *slog.Logger
	file            *dataFile

	mu   sync.Mutex
	rng  *rand.Rand
	data document
}

// document is the mutable state, and the persisted file format.
type document struct {
	Version    uint64    `json:"version"`
	NextUserID int       `json:"next_user_id"`
	Users      []User    `json:"users"`
	Todos      []Todo    `json:"todos"`
	Products   []Product `json:"products"`
}

func seedDocument() document {
	return document{
		NextUserID: 3,
		Users:      SeedUsers(),
		Todos:      SeedTodos(),
		Products:   SeedProducts(),
	}
}

// NewStore returns an in-memory store seeded with the fixture data.
func NewStore(opts ...Option) *Store {
	s := &Store{
		latency: DefaultLatency,
		logger:  slog.New(slog.DiscardHandler),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)), //nolint:gosec // simulated failures
		data:    seedDocument(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version changes whenever the data changes.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Version
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	if err := s.read(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return view(s, func(d *document) []User { return slices.Clone(d.Users) })
}

// GetUser returns one user.
func (s *Store) GetUser(ctx context.Context, id int) (User, error) {
	if err := s.read(ctx, s.latency.Detail); err != nil {
		return User{}, err
	}
	return lookup(s, "user", id, func(d *document) []User { return d.Users }, func(u User) int { return u.ID })
}

// CreateUser validates u and stores it with a new id.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (User, error) {
	if err := validate("user", "user", u); err != nil {
		return User{}, err
	}
	if err := s.wait(ctx, s.latency.Write); err != nil {
		return User{}, err
	}
	var created User
	err := s.mutate(func(d *document) error {
		created = User{ID: d.NextUserID, Name: u.Name, Email: u.Email}
		d.NextUserID++
		d.Users = append(d.Users, created)
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Debug("user created", "id", created.ID)
	return created, nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, id int) error {
	if err := s.wait(ctx, s.latency.List); err != nil {
		return err
	}
	return s.mutate(func(d *document) error {
		i := slices.IndexFunc(d.Users, func(u User) bool { return u.ID == id })
		if i < 0 {
			return notFound("user", id)
		}
		d.Users = slices.Delete(d.Users, i, i+1)
		return nil
	})
}

// ListTodos returns all todos.
func (s *Store) ListTodos(ctx context.Context) ([]Todo, error) {
	if err := s.read(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return view(s, func(d *document) []Todo { return slices.Clone(d.Todos) })
}

// ToggleTodo flips a todo's completion. It fails with ErrServer at the
// configured failure rate, leaving the todo unchanged.
func (s *Store) ToggleTodo(ctx context.Context, id int) (Todo, error) {
	if err := s.wait(ctx, s.latency.Write); err != nil {
		return Todo{}, err
	}
	if s.roll(s.failureRate) {
		s.logger.Debug("toggle failed", "id", id)
		return Todo{}, ErrServer
	}
	var updated Todo
	err := s.mutate(func(d *document) error {
		i := slices.IndexFunc(d.Todos, func(t Todo) bool { return t.ID == id })
		if i < 0 {
			return notFound("todo", id)
		}
		d.Todos[i].Completed = !d.Todos[i].Completed
		updated = d.Todos[i]
		return nil
	})
	return updated, err
}

// ListProducts returns all products.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	if err := s.read(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return view(s, func(d *document) []Product { return slices.Clone(d.Products) })
}

// GetProduct returns one product.
func (s *Store) GetProduct(ctx context.Context, id int) (Product, error) {
	if err := s.read(ctx, s.latency.Detail); err != nil {
		return Product{}, err
	}
	return lookup(s, "product", id, func(d *document) []Product { return d.Products }, func(p Product) int { return p.ID })
}

// UpdateProduct applies a validated partial update.
func (s *Store) UpdateProduct(ctx context.Context, id int, patch ProductPatch) (Product, error) {
	if err := validate("product_patch", "product", patch); err != nil {
		return Product{}, err
	}
	if err := s.wait(ctx, s.latency.List); err != nil {
		return Product{}, err
	}
	var updated Product
	err := s.mutate(func(d *document) error {
		i := slices.IndexFunc(d.Products, func(p Product) bool { return p.ID == id })
		if i < 0 {
			return notFound("product", id)
		}
		p := &d.Products[i]
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Category != nil {
			p.Category = *patch.Category
		}
		updated = *p
		return nil
	})
	return updated, err
}

// ListPosts returns page (1-based) of the posts. A page past the end is
// empty.
func (s *Store) ListPosts(ctx context.Context, page int) (PostsPage, error) {
	if page < 1 {
		return PostsPage{}, &ValidationError{Entity: "page", Fields: []FieldError{{Field: "page", Message: "must be 1 or greater"}}}
	}
	if err := s.read(ctx, s.latency.Write); err != nil {
		return PostsPage{}, err
	}
	totalPages := (TotalPosts + PostsPerPage - 1) / PostsPerPage
	start := min((page-1)*PostsPerPage, TotalPosts)
	end := min(start+PostsPerPage, TotalPosts)
	result := PostsPage{
		Posts:      slices.Clone(allPosts[start:end]),
		Page:       page,
		TotalPages: totalPages,
	}
	if page < totalPages {
		result.NextPage = page + 1
	}
	return result, nil
}

// GetPost returns one post.
func (s *Store) GetPost(ctx context.Context, id int) (Post, error) {
	if err := s.read(ctx, s.latency.Detail); err != nil {
		return Post{}, err
	}
	if id < 1 || id > TotalPosts {
		return Post{}, notFound("post", id)
	}
	return allPosts[id-1], nil
}

// Stats summarizes the store without simulated latency.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	return view(s, func(d *document) Stats {
		st := Stats{
			Users:    len(d.Users),
			Todos:    len(d.Todos),
			Products: len(d.Products),
			Posts:    TotalPosts,
			Version:  d.Version,
		}
		for _, t := range d.Todos {
			if t.Completed {
				st.TodosCompleted++
			}
		}
		return st
	})
}

// read waits out the latency and rolls for a read failure.
func (s *Store) read(ctx context.Context, d time.Duration) error {
	if err := s.wait(ctx, d); err != nil {
		return err
	}
	if s.roll(s.readFailureRate) {
		return ErrServer
	}
	return nil
}

// wait sleeps for d or until ctx ends.
func (s *Store) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) roll(p float64) bool {
	if p <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// view runs fn over the current document, reloading it from the data file
// first when the store is file-backed.
func view[R any](s *Store, fn func(*document) R) (R, error) {
	if err := s.reload(); err != nil {
		var zero R
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data), nil
}

func lookup[E any](s *Store, entity string, id int, list func(*document) []E, idOf func(E) int) (E, error) {
	items, err := view(s, func(d *document) []E { return slices.Clone(list(d)) })
	if err != nil {
		var zero E
		return zero, err
	}
	for _, e := range items {
		if idOf(e) == id {
			return e, nil
		}
	}
	var zero E
	return zero, notFound(entity, id)
}

// mutate applies fn to the document and bumps the version. For a
// file-backed store the whole read-modify-write runs under the file lock.
func (s *Store) mutate(fn func(*document) error) error {
	if s.file != nil {
		return s.file.update(func(d *document) error {
			if err := fn(d); err != nil {
				return err
			}
			d.Version++
			s.mu.Lock()
			s.data = *d
			s.mu.Unlock()
			return nil
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.data); err != nil {
		return err
	}
	s.data.Version++
	return nil
}

func clamp01(p float64) float64 {
	return max(0, min(1, p))
}
