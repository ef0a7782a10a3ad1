package book

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// SQLiteRepo stores books in a SQLite database opened with the "sqlite" driver.
type SQLiteRepo struct {
	db      *sql.DB
	g       goqu.DialectWrapper
	timeout time.Duration
	now     func() time.Time
}

func NewSQLiteRepo(db *sql.DB, timeout time.Duration) *SQLiteRepo {
	return &SQLiteRepo{db: db, g: goqu.Dialect("sqlite3"), timeout: timeout, now: time.Now}
}

func (r *SQLiteRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *SQLiteRepo) ValidID(id string) bool {
	return isCanonicalUUID(id)
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.PingContext(timeoutCtx)
}

// SQLite has no default LIKE escape character, so it is spelled out.
func (r *SQLiteRepo) where(f Filter) exp.Expression {
	if f.IsZero() {
		return nil
	}
	pattern := f.LikePattern()
	return goqu.L(`(title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\')`, pattern, pattern)
}

func (r *SQLiteRepo) Count(ctx context.Context, f Filter) (int, error) {
	ds := r.g.From(booksTable).Prepared(true).Select(goqu.COUNT("*"))
	if w := r.where(f); w != nil {
		ds = ds.Where(w)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, err
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var total int
	if err := r.db.QueryRowContext(timeoutCtx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *SQLiteRepo) Find(ctx context.Context, f Filter, skip, limit int, s SortSpec) ([]Book, error) {
	if skip < 0 {
		return []Book{}, nil
	}
	ds := r.g.From(booksTable).Prepared(true).Select(bookColumns...).Order(orderBy(s)...)
	if w := r.where(f); w != nil {
		ds = ds.Where(w)
	}
	if skip > 0 && limit <= 0 {
		// SQLite only accepts OFFSET together with LIMIT.
		ds = ds.Limit(uint(1<<31 - 1))
	}
	query, args, err := paginate(ds, skip, limit).ToSQL()
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	out := []Book{}
	if err := sqlscan.Select(timeoutCtx, r.db, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepo) Insert(ctx context.Context, d Draft) (Book, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Book{}, err
	}
	now := r.now().UTC()
	query, args, err := r.g.Insert(booksTable).Prepared(true).
		Rows(goqu.Record{
			"id":         id.String(),
			"title":      d.Title,
			"author":     d.Author,
			"price":      d.Price,
			"rating":     d.Rating,
			"created_at": now,
			"updated_at": now,
		}).
		ToSQL()
	if err != nil {
		return Book{}, err
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.ExecContext(timeoutCtx, query, args...); err != nil {
		return Book{}, err
	}
	return r.get(timeoutCtx, r.db, id.String())
}

func (r *SQLiteRepo) FindByID(ctx context.Context, id string) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.get(timeoutCtx, r.db, id)
}

// UpdateByID and DeleteByID run in a transaction because the sqlite3 dialect
// cannot build RETURNING clauses.
func (r *SQLiteRepo) UpdateByID(ctx context.Context, id string, p Patch) (Book, error) {
	rec := patchRecord(p)
	rec["updated_at"] = r.now().UTC()
	query, args, err := r.g.Update(booksTable).Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return Book{}, err
	}

	var out Book
	err = r.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		b, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (r *SQLiteRepo) DeleteByID(ctx context.Context, id string) (Book, error) {
	query, args, err := r.g.Delete(booksTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return Book{}, err
	}

	var out Book
	err = r.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		b, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (r *SQLiteRepo) get(ctx context.Context, q sqlscan.Querier, id string) (Book, error) {
	query, args, err := r.g.From(booksTable).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return Book{}, err
	}

	var b Book
	if err := sqlscan.Get(ctx, q, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *SQLiteRepo) inTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(timeoutCtx, nil)
	if err != nil {
		return err
	}
	if err := fn(timeoutCtx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
