package book

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	g       goqu.DialectWrapper
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, g: goqu.Dialect("postgres"), timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) ValidID(id string) bool {
	return isCanonicalUUID(id)
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.Ping(timeoutCtx)
}

func (r *PostgresRepo) where(f Filter) exp.Expression {
	if f.IsZero() {
		return nil
	}
	pattern := f.LikePattern()
	return goqu.Or(
		goqu.C("title").ILike(pattern),
		goqu.C("author").ILike(pattern),
	)
}

func (r *PostgresRepo) Count(ctx context.Context, f Filter) (int, error) {
	ds := r.g.From(booksTable).Prepared(true).Select(goqu.COUNT("*"))
	if w := r.where(f); w != nil {
		ds = ds.Where(w)
	}
	sql, args, err := ds.ToSQL()
	if err != nil {
		return 0, err
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var total int
	if err := r.db.QueryRow(timeoutCtx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PostgresRepo) Find(ctx context.Context, f Filter, skip, limit int, s SortSpec) ([]Book, error) {
	if skip < 0 {
		return []Book{}, nil
	}
	ds := r.g.From(booksTable).Prepared(true).Select(bookColumns...).Order(orderBy(s)...)
	if w := r.where(f); w != nil {
		ds = ds.Where(w)
	}
	sql, args, err := paginate(ds, skip, limit).ToSQL()
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	out := []Book{}
	if err := pgxscan.Select(timeoutCtx, r.db, &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, d Draft) (Book, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Book{}, err
	}
	sql, args, err := r.g.Insert(booksTable).Prepared(true).
		Rows(goqu.Record{
			"id":         id.String(),
			"title":      d.Title,
			"author":     d.Author,
			"price":      d.Price,
			"rating":     d.Rating,
			"created_at": goqu.L("NOW()"),
			"updated_at": goqu.L("NOW()"),
		}).
		Returning(bookColumns...).
		ToSQL()
	if err != nil {
		return Book{}, err
	}
	return r.getOne(ctx, sql, args)
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Book, error) {
	sql, args, err := r.g.From(booksTable).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return Book{}, err
	}
	return r.getOne(ctx, sql, args)
}

func (r *PostgresRepo) UpdateByID(ctx context.Context, id string, p Patch) (Book, error) {
	rec := patchRecord(p)
	rec["updated_at"] = goqu.L("NOW()")
	sql, args, err := r.g.Update(booksTable).Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		Returning(bookColumns...).
		ToSQL()
	if err != nil {
		return Book{}, err
	}
	return r.getOne(ctx, sql, args)
}

func (r *PostgresRepo) DeleteByID(ctx context.Context, id string) (Book, error) {
	sql, args, err := r.g.Delete(booksTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		Returning(bookColumns...).
		ToSQL()
	if err != nil {
		return Book{}, err
	}
	return r.getOne(ctx, sql, args)
}

func (r *PostgresRepo) getOne(ctx context.Context, sql string, args []any) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var b Book
	if err := pgxscan.Get(timeoutCtx, r.db, &b, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}
