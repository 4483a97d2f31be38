package http

import (
	"context"

	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/http/handlers"
	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/geocoder89/postsapi/internal/redisclient"
	"github.com/geocoder89/postsapi/internal/repo/memory"
	"github.com/geocoder89/postsapi/internal/repo/postgres"
	"github.com/geocoder89/postsapi/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryDeps keeps everything in process. Used for STORAGE=memory and tests.
func MemoryDeps(jwt *auth.Manager) Deps {
	users := memory.NewUsersRepo()
	posts := memory.NewPostsRepo()
	users.CascadeTo(posts)

	return Deps{
		Users:    users,
		Posts:    posts,
		Refresh:  memory.NewRefreshTokensRepo(),
		Denylist: session.NewMemoryDenylist(),
		JWT:      jwt,
		Checks:   map[string]handlers.Check{},
	}
}

// PostgresDeps backs the repositories with pool. rdb is optional; without it
// the access-token denylist is kept in process.
func PostgresDeps(pool *pgxpool.Pool, rdb *redisclient.Client, jwt *auth.Manager, prom *observability.Prom) Deps {
	deps := Deps{
		Users:   postgres.NewUsersRepo(pool, prom),
		Posts:   postgres.NewPostsRepo(pool, prom),
		Refresh: postgres.NewRefreshTokensRepo(pool, prom),
		JWT:     jwt,
		Prom:    prom,
		Checks: map[string]handlers.Check{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		},
	}

	if rdb != nil {
		deps.Denylist = session.NewRedisDenylist(rdb.Raw())
		deps.Checks["redis"] = rdb.Ping
	} else {
		deps.Denylist = session.NewMemoryDenylist()
	}

	return deps
}
