package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type HashedLinkRepo struct {
	pool *sql.DB
	db   DB
}

func (r *HashedLinkRepo) With(db DB) *HashedLinkRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *HashedLinkRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *HashedLinkRepo) GetHashedLink(ctx context.Context, hash string) (*domain.HashedLink, error) {
	const op = "sqlite.HashedLinkRepo.GetHashedLink"

	var (
		l             domain.HashedLink
		expires, used sql.NullInt64
		created       int64
	)
	err := r.handle().QueryRowContext(ctx,
		`SELECT hash, event_type_id, expires_at, used_at, created_at
		 FROM hashed_links WHERE hash = ?`,
		hash,
	).Scan(&l.Hash, &l.EventTypeID, &expires, &used, &created)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	l.ExpiresAt = timePtr(expires)
	l.UsedAt = timePtr(used)
	l.CreatedAt = fromMillis(created)

	return &l, nil
}

func (r *HashedLinkRepo) CreateHashedLink(ctx context.Context, l *domain.HashedLink) error {
	const op = "sqlite.HashedLinkRepo.CreateHashedLink"

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	if _, err := r.handle().ExecContext(ctx,
		`INSERT INTO hashed_links(hash, event_type_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		l.Hash, l.EventTypeID, nullMillis(l.ExpiresAt), toMillis(l.CreatedAt),
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *HashedLinkRepo) MarkUsed(ctx context.Context, hash string, at time.Time) error {
	const op = "sqlite.HashedLinkRepo.MarkUsed"

	res, err := r.handle().ExecContext(ctx,
		`UPDATE hashed_links SET used_at = ? WHERE hash = ? AND used_at IS NULL`,
		toMillis(at), hash,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return nil
}
