// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/helios/internal/platform/dberr"
)

// querier is satisfied by both [*pgxpool.Pool] and [pgx.Tx], so every
// repository runs unchanged inside or outside a transaction.
type querier interface {
	Exec(context context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(context context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(context context.Context, sql string, arguments ...any) pgx.Row
}

// # Store

// PostgresStore implements [Store] on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// NewPostgresStore creates a store using pool for non-transactional calls.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (store *PostgresStore) Users() UserRepository {
	return &PostgresUserRepository{db: store.db}
}

func (store *PostgresStore) Sessions() SessionRepository {
	return &PostgresSessionRepository{db: store.db}
}

func (store *PostgresStore) ResetTokens() ResetTokenRepository {
	return &PostgresResetTokenRepository{db: store.db}
}

// InTx runs fn in a transaction. pgx.BeginTxFunc rolls back on error or panic
// and always returns the connection to the pool. Nested calls join the
// enclosing transaction.
func (store *PostgresStore) InTx(context context.Context, fn func(tx Store) error) error {
	if store.inTx {
		return fn(store)
	}

	return pgx.BeginTxFunc(context, store.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: store.pool, db: tx, inTx: true})
	})
}

// # User Repository

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	db querier
}

const userColumns = `
	id, firstname, lastname, email, passwordhash, phone, nationalid, role, status,
	loginattempts, lockeduntil, emailverified, phoneverified, createdat, updatedat`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.NationalID,
		&user.Role,
		&user.Status,
		&user.LoginAttempts,
		&user.LockedUntil,
		&user.EmailVerified,
		&user.PhoneVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
Create persists a new user record into the users.account table.

Returns:
  - error: [*dberr.ConstraintError] naming the violated unique constraint
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, firstname, lastname, email, passwordhash, phone, nationalid, role, status,
			loginattempts, emailverified, phoneverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12, $12)`

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	_, err := repository.db.Exec(context, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.NationalID,
		user.Role,
		user.Status,
		user.EmailVerified,
		user.PhoneVerified,
		user.CreatedAt,
	)

	return dberr.Wrap(err, "postgres_user_repo_create_failed")
}

func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE id = $1 AND status <> 'DELETED'`

	user, err := scanUser(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_id_failed")
	}
	return user, nil
}

func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE email = $1 AND status <> 'DELETED'`

	user, err := scanUser(repository.db.QueryRow(context, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_email_failed")
	}
	return user, nil
}

func (repository *PostgresUserRepository) FindByPhone(context context.Context, phone string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE phone = $1 AND status <> 'DELETED'`

	user, err := scanUser(repository.db.QueryRow(context, query, phone))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_phone_failed")
	}
	return user, nil
}

func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, hash string, resetLockout bool) error {
	const query = `
		UPDATE users.account
		SET passwordhash  = $2,
		    loginattempts = CASE WHEN $3 THEN 0 ELSE loginattempts END,
		    lockeduntil   = CASE WHEN $3 THEN NULL ELSE lockeduntil END,
		    updatedat     = NOW()
		WHERE id = $1 AND status <> 'DELETED'`

	tag, err := repository.db.Exec(context, query, userID, hash, resetLockout)
	if err != nil {
		return dberr.Wrap(err, "postgres_user_repo_update_password_failed")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
RecordLoginFailure increments the counter and conditionally locks in a single
UPDATE. The row lock taken by UPDATE serializes concurrent failures, so every
failed attempt is counted exactly once.
*/
func (repository *PostgresUserRepository) RecordLoginFailure(context context.Context, userID string, maxAttempts int, lockUntil time.Time) (LoginFailure, error) {
	const query = `
		UPDATE users.account
		SET loginattempts = loginattempts + 1,
		    lockeduntil   = CASE WHEN loginattempts + 1 >= $2 THEN $3 ELSE lockeduntil END,
		    updatedat     = NOW()
		WHERE id = $1
		RETURNING loginattempts, lockeduntil`

	var failure LoginFailure
	err := repository.db.QueryRow(context, query, userID, maxAttempts, lockUntil).Scan(&failure.Attempts, &failure.LockedUntil)
	if err != nil {
		return LoginFailure{}, dberr.Wrap(err, "postgres_user_repo_record_failure_failed")
	}
	return failure, nil
}

func (repository *PostgresUserRepository) ResetLoginAttempts(context context.Context, userID string) error {
	const query = `
		UPDATE users.account
		SET loginattempts = 0, lockeduntil = NULL, updatedat = NOW()
		WHERE id = $1 AND (loginattempts <> 0 OR lockeduntil IS NOT NULL)`

	_, err := repository.db.Exec(context, query, userID)
	return dberr.Wrap(err, "postgres_user_repo_reset_attempts_failed")
}

// # Session Repository

// PostgresSessionRepository implements [SessionRepository] using pgx.
type PostgresSessionRepository struct {
	db querier
}

func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (id, userid, tokenhash, deviceid, useragent, ipaddress, expiresat, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := repository.db.Exec(context, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.DeviceID,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return dberr.Wrap(err, "postgres_session_repo_create_failed")
}

func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string, now time.Time) (*Session, *User, error) {
	const query = `
		SELECT s.id, s.userid, s.tokenhash, COALESCE(s.deviceid, ''), COALESCE(s.useragent, ''),
		       COALESCE(s.ipaddress, ''), s.expiresat, s.createdat,
		       a.id, a.firstname, a.lastname, a.email, a.passwordhash, a.phone, a.nationalid, a.role,
		       a.status, a.loginattempts, a.lockeduntil, a.emailverified, a.phoneverified,
		       a.createdat, a.updatedat
		FROM users.session s
		JOIN users.account a ON a.id = s.userid
		WHERE s.tokenhash = $1 AND s.expiresat > $2 AND a.status <> 'DELETED'`

	session := &Session{}
	user := &User{}
	err := repository.db.QueryRow(context, query, tokenHash, now).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.DeviceID,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.CreatedAt,
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.NationalID,
		&user.Role,
		&user.Status,
		&user.LoginAttempts,
		&user.LockedUntil,
		&user.EmailVerified,
		&user.PhoneVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, nil, dberr.Wrap(err, "postgres_session_repo_find_failed")
	}
	return session, user, nil
}

func (repository *PostgresSessionRepository) Delete(context context.Context, sessionID string) (bool, error) {
	tag, err := repository.db.Exec(context, `DELETE FROM users.session WHERE id = $1`, sessionID)
	if err != nil {
		return false, dberr.Wrap(err, "postgres_session_repo_delete_failed")
	}
	return tag.RowsAffected() > 0, nil
}

func (repository *PostgresSessionRepository) DeleteForUser(context context.Context, userID, sessionID string) (bool, error) {
	tag, err := repository.db.Exec(context, `DELETE FROM users.session WHERE id = $1 AND userid = $2`, sessionID, userID)
	if err != nil {
		return false, dberr.Wrap(err, "postgres_session_repo_delete_for_user_failed")
	}
	return tag.RowsAffected() > 0, nil
}

func (repository *PostgresSessionRepository) DeleteOthersForUser(context context.Context, userID, keepSessionID string) (int64, error) {
	tag, err := repository.db.Exec(context, `DELETE FROM users.session WHERE userid = $1 AND id <> $2`, userID, keepSessionID)
	if err != nil {
		return 0, dberr.Wrap(err, "postgres_session_repo_delete_others_failed")
	}
	return tag.RowsAffected(), nil
}

func (repository *PostgresSessionRepository) DeleteAllForUser(context context.Context, userID string) (int64, error) {
	tag, err := repository.db.Exec(context, `DELETE FROM users.session WHERE userid = $1`, userID)
	if err != nil {
		return 0, dberr.Wrap(err, "postgres_session_repo_delete_all_failed")
	}
	return tag.RowsAffected(), nil
}

func (repository *PostgresSessionRepository) ListForUser(context context.Context, userID string, now time.Time) ([]*Session, error) {
	const query = `
		SELECT id, userid, tokenhash, COALESCE(deviceid, ''), COALESCE(useragent, ''),
		       COALESCE(ipaddress, ''), expiresat, createdat
		FROM users.session
		WHERE userid = $1 AND expiresat > $2
		ORDER BY createdat DESC`

	rows, err := repository.db.Query(context, query, userID, now)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_session_repo_list_failed")
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Session, error) {
		session := &Session{}
		err := row.Scan(
			&session.ID,
			&session.UserID,
			&session.TokenHash,
			&session.DeviceID,
			&session.UserAgent,
			&session.IPAddress,
			&session.ExpiresAt,
			&session.CreatedAt,
		)
		return session, err
	})
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_session_repo_list_scan_failed")
	}
	return sessions, nil
}

func (repository *PostgresSessionRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	tag, err := repository.db.Exec(context, `DELETE FROM users.session WHERE expiresat <= $1`, now)
	if err != nil {
		return 0, dberr.Wrap(err, "postgres_session_repo_delete_expired_failed")
	}
	return tag.RowsAffected(), nil
}

// # Reset Token Repository

// PostgresResetTokenRepository implements [ResetTokenRepository] using pgx.
type PostgresResetTokenRepository struct {
	db querier
}

func (repository *PostgresResetTokenRepository) Create(context context.Context, token *PasswordResetToken) error {
	const query = `
		INSERT INTO users.passwordreset (id, userid, tokenhash, expiresat, used, createdat)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	_, err := repository.db.Exec(context, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	return dberr.Wrap(err, "postgres_reset_repo_create_failed")
}

func (repository *PostgresResetTokenRepository) FindValid(context context.Context, tokenHash string, now time.Time) (*PasswordResetToken, error) {
	const query = `
		SELECT id, userid, tokenhash, expiresat, used, createdat
		FROM users.passwordreset
		WHERE tokenhash = $1 AND used = FALSE AND expiresat > $2`

	token := &PasswordResetToken{}
	err := repository.db.QueryRow(context, query, tokenHash, now).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Used,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_reset_repo_find_failed")
	}
	return token, nil
}

func (repository *PostgresResetTokenRepository) MarkUsed(context context.Context, tokenID string, now time.Time) (bool, error) {
	const query = `
		UPDATE users.passwordreset
		SET used = TRUE
		WHERE id = $1 AND used = FALSE AND expiresat > $2`

	tag, err := repository.db.Exec(context, query, tokenID, now)
	if err != nil {
		return false, dberr.Wrap(err, "postgres_reset_repo_mark_used_failed")
	}
	return tag.RowsAffected() > 0, nil
}
