package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/geocoder89/postsapi/internal/domain/user"
)

// UsersRepo mirrors the postgres repo, including the unique email index.
type UsersRepo struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]user.User
	byEmail map[string]int64
	posts   *PostsRepo
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[int64]user.User),
		byEmail: make(map[string]int64),
	}
}

// CascadeTo makes Delete remove the user's posts too, matching ON DELETE CASCADE.
func (r *UsersRepo) CascadeTo(posts *PostsRepo) {
	r.mu.Lock()
	r.posts = posts
	r.mu.Unlock()
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b user.User) int { return cmp.Compare(a.ID, b.ID) })

	return out, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	return ok && id != exceptID, nil
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	now := time.Now().UTC()
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = now
	u.UpdatedAt = now

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) Update(_ context.Context, id int64, ch user.Changes) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	// check everything before touching anything so the update is all or nothing
	if ch.Email != nil {
		if owner, taken := r.byEmail[*ch.Email]; taken && owner != id {
			return user.User{}, user.ErrEmailTaken
		}
	}

	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.Email != nil {
		delete(r.byEmail, u.Email)
		u.Email = *ch.Email
		r.byEmail[u.Email] = id
	}
	if ch.PasswordHash != nil {
		u.PasswordHash = *ch.PasswordHash
	}
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = u

	return u, nil
}

func (r *UsersRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	u, ok := r.items[id]
	if ok {
		delete(r.items, id)
		delete(r.byEmail, u.Email)
	}
	posts := r.posts
	r.mu.Unlock()

	if !ok {
		return user.ErrNotFound
	}

	if posts != nil {
		posts.deleteByOwner(id)
	}

	return nil
}
