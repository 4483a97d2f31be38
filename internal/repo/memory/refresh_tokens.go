package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/postsapi/internal/domain/refresh"
)

type RefreshTokensRepo struct {
	mu    sync.Mutex
	items map[string]refresh.Token
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{items: make(map[string]refresh.Token)}
}

func (r *RefreshTokensRepo) Create(_ context.Context, t refresh.Token) error {
	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, oldID, presentedHash string, next refresh.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[oldID]
	if !ok {
		return refresh.ErrNotFound
	}

	now := time.Now().UTC()
	if err := current.Check(presentedHash, next.UserID, now); err != nil {
		return err
	}

	current.RevokedAt = &now
	current.ReplacedBy = &next.ID
	r.items[oldID] = current
	r.items[next.ID] = next

	return nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok || t.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	t.RevokedAt = &now
	r.items[id] = t

	return nil
}
