// Package postgres implements the persistence collaborator on PostgreSQL
// through database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/theavidstallion/quantrust/activity"
	"github.com/theavidstallion/quantrust/identity"
	"github.com/theavidstallion/quantrust/internal/ids"
)

// uniqueViolation is the PostgreSQL error code for unique-key conflicts.
const uniqueViolation = "23505"

// Schema holds the DDL for the two tables the auth core uses.
const Schema = `
create table if not exists identities (
	id            text primary key,
	email         text not null unique,
	password_hash text not null default '',
	role          text not null,
	provider      text not null,
	created_at    timestamptz not null default now()
);

create table if not exists activity_logs (
	id         text primary key,
	action     text not null,
	email      text not null,
	details    text not null default '',
	created_at timestamptz not null default now()
);
`

// Store bundles the identity and activity repositories over one database
// handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Identities() identity.Repo { return &identityStore{db: s.db} }
func (s *Store) Activity() activity.Repo   { return &logStore{db: s.db} }

// Identity store -----------------------------------------------------------

type identityStore struct{ db *sql.DB }

var _ identity.Repo = (*identityStore)(nil)

func (s *identityStore) Create(ctx context.Context, ident *identity.Identity) error {
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into identities(id, email, password_hash, role, provider) values($1,$2,$3,$4,$5)`,
		ident.ID, identity.NormalizeEmail(ident.Email), ident.PasswordHash, ident.Role, ident.Provider,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrAlreadyExists
		}
		return storageErr(err)
	}
	return nil
}

func (s *identityStore) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, role, provider, created_at from identities where email=$1`,
		identity.NormalizeEmail(email),
	)
	return scanIdentity(row)
}

func (s *identityStore) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, role, provider, created_at from identities where id=$1`, id)
	return scanIdentity(row)
}

// UpsertByEmail relies on the unique email key for conflict resolution so
// concurrent first logins for the same address resolve to one row. The
// stored role is never touched on conflict.
func (s *identityStore) UpsertByEmail(ctx context.Context, email string, candidate identity.Role, provider identity.Provider) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`insert into identities(id, email, role, provider) values($1,$2,$3,$4)
		 on conflict (email) do update set provider = excluded.provider
		 returning id, email, password_hash, role, provider, created_at`,
		ids.New(), identity.NormalizeEmail(email), candidate, provider,
	)
	return scanIdentity(row)
}

func (s *identityStore) UpdateRole(ctx context.Context, id string, role identity.Role) error {
	res, err := s.db.ExecContext(ctx, `update identities set role=$2 where id=$1`, id, role)
	if err != nil {
		return storageErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *identityStore) List(ctx context.Context) ([]*identity.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, email, password_hash, role, provider, created_at from identities order by id asc`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var list []*identity.Identity
	for rows.Next() {
		var ident identity.Identity
		if err := rows.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.Role, &ident.Provider, &ident.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		list = append(list, &ident)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return list, nil
}

func scanIdentity(row *sql.Row) (*identity.Identity, error) {
	var ident identity.Identity
	if err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.Role, &ident.Provider, &ident.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, storageErr(err)
	}
	return &ident, nil
}

// Activity store -----------------------------------------------------------

type logStore struct{ db *sql.DB }

var _ activity.Repo = (*logStore)(nil)

func (s *logStore) Append(ctx context.Context, entry *activity.Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into activity_logs(id, action, email, details, created_at) values($1,$2,$3,$4,$5)`,
		entry.ID, entry.Action, entry.Email, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", activity.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *logStore) List(ctx context.Context, limit int) ([]*activity.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, action, email, details, created_at from activity_logs order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", activity.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []*activity.Entry
	for rows.Next() {
		var entry activity.Entry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Email, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", activity.ErrStorageUnavailable, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", activity.ErrStorageUnavailable, err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", identity.ErrStorageUnavailable, err)
}
