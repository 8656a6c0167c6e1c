package session

import (
	"context"
	"errors"

	"PNotify/tools/errs"

	"github.com/jackc/pgx/v5"
)

const selectSessionUser = `SELECT username FROM sessions WHERE sid = $1`

// rowQuerier is the part of *pgxpool.Pool the store needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore reads the sessions(sid, username) table written by the login flow.
type PgStore struct {
	db rowQuerier
}

func NewPgStore(db rowQuerier) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Resolve(ctx context.Context, credential string) (string, error) {
	var username string
	err := s.db.QueryRow(ctx, selectSessionUser, credential).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.ErrNoSession.Wrap()
	}
	if err != nil {
		return "", errs.WrapMsg(err, "select session")
	}
	if username == "" {
		return "", errs.ErrNoSession.WrapMsg("empty username")
	}
	return username, nil
}
