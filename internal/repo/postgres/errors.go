package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const usersEmailConstraint = "users_email_key"

var tracer = otel.Tracer("github.com/geocoder89/postsapi/internal/repo/postgres")

func isConstraintViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// instrumented is embedded by every repo: one span and one histogram sample per
// logical operation.
type instrumented struct {
	prom *observability.Prom
}

func (i instrumented) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	defer span.End()

	run := func() error { return fn(ctx) }

	var err error
	if i.prom != nil {
		err = i.prom.ObserveDB(op, run)
	} else {
		err = run()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}
