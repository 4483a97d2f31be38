package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/geocoder89/postsapi/internal/domain/post"
)

type PostsRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]post.Post
}

func NewPostsRepo() *PostsRepo {
	return &PostsRepo{
		items: make(map[int64]post.Post),
	}
}

func (r *PostsRepo) ListByOwner(_ context.Context, ownerID int64) ([]post.Post, error) {
	r.mu.RLock()
	out := make([]post.Post, 0)
	for _, p := range r.items {
		if p.UserID == ownerID {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b post.Post) int { return cmp.Compare(a.ID, b.ID) })

	return out, nil
}

func (r *PostsRepo) Create(_ context.Context, ownerID int64, req post.CreatePostRequest) (post.Post, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	p := post.Post{
		ID:          r.nextID,
		Titulo:      req.Titulo,
		Descripcion: req.Descripcion,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.items[p.ID] = p

	return p, nil
}

// lookup applies the same (id, owner) predicate as the SQL statements.
func (r *PostsRepo) lookup(id, ownerID int64) (post.Post, bool) {
	p, ok := r.items[id]
	if !ok || p.UserID != ownerID {
		return post.Post{}, false
	}
	return p, true
}

func (r *PostsRepo) GetForOwner(_ context.Context, id, ownerID int64) (post.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.lookup(id, ownerID)
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	return p, nil
}

func (r *PostsRepo) UpdateForOwner(_ context.Context, id, ownerID int64, req post.UpdatePostRequest) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.lookup(id, ownerID)
	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	p.Titulo = req.Titulo
	p.Descripcion = req.Descripcion
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p

	return p, nil
}

func (r *PostsRepo) DeleteForOwner(_ context.Context, id, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookup(id, ownerID); !ok {
		return post.ErrNotFound
	}

	delete(r.items, id)
	return nil
}

func (r *PostsRepo) deleteByOwner(ownerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.items {
		if p.UserID == ownerID {
			delete(r.items, id)
		}
	}
}
