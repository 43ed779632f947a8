package repository

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/common/db"
	"github.com/AlibekovAA/fincore/internal/common/logger"
)

//go:embed schema.sql
var schemaSQL string

const accountColumns = `id, first_name, last_name, email, telephone_number, dob, referral_code, referred_by,
	role, status, password_hash, otp_hash, otp_expiry,
	token_version, refresh_token_hash, refresh_token_expiry, is_active, created_at, updated_at`

const invalidTextRepresentation = "22P02"

type PgRepository struct {
	pool  *pgxpool.Pool
	log   *logger.Logger
	retry db.RetryConfig
}

func NewPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log, retry: db.DefaultRetryConfig}
}

func (r *PgRepository) Migrate(ctx context.Context) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx, schemaSQL)
	return db.HandleExecError(err, "migrate accounts schema", start)
}

func (r *PgRepository) Create(ctx context.Context, account domain.Account) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO accounts (id, first_name, last_name, email, telephone_number, dob, referral_code, referred_by,
			role, status, password_hash, otp_hash, otp_expiry)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13)`,
		string(account.ID),
		account.FirstName,
		account.LastName,
		account.Email,
		account.TelephoneNumber,
		account.DOB,
		account.ReferralCode,
		account.ReferredBy,
		string(account.Role),
		string(account.Status),
		account.PasswordHash,
		account.OTPHash,
		account.OTPExpiry,
	)
	if err != nil {
		switch db.UniqueViolation(err) {
		case "accounts_email_key":
			return ErrEmailExists
		case "accounts_telephone_number_key":
			return ErrTelephoneExists
		case "accounts_referral_code_key":
			return ErrReferralCodeExists
		}
	}
	return db.HandleExecError(err, "create account", start)
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	return r.findOne(ctx, "find account by id", `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, string(id))
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.findOne(ctx, "find account by email", `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PgRepository) FindByTelephone(ctx context.Context, telephone string) (domain.Account, error) {
	return r.findOne(ctx, "find account by telephone", `SELECT `+accountColumns+` FROM accounts WHERE telephone_number = $1`, telephone)
}

func (r *PgRepository) FindByIDAndVersion(ctx context.Context, id domain.ID, version int64) (domain.Account, error) {
	return r.findOne(
		ctx,
		"find account by id and version",
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND token_version = $2`,
		string(id),
		version,
	)
}

func (r *PgRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	start := time.Now()
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, db.HandleExecError(err, "list accounts", start)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, db.HandleExecError(err, "list accounts", start)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, db.HandleExecError(err, "list accounts", start)
	}

	db.MeasureQueryDuration("list accounts", start)
	return accounts, nil
}

func (r *PgRepository) FindSession(ctx context.Context, id domain.ID) (domain.Session, error) {
	var session domain.Session
	err := db.RetryWithBackoff(ctx, r.log, r.retry, "find account session", func(ctx context.Context) error {
		start := time.Now()
		var hash *string
		row := r.pool.QueryRow(
			ctx,
			`SELECT token_version, refresh_token_hash, refresh_token_expiry, is_active FROM accounts WHERE id = $1`,
			string(id),
		)
		err := row.Scan(&session.TokenVersion, &hash, &session.RefreshTokenExpiry, &session.Active)
		if err := db.HandleQueryError(badIDAsNoRows(err), ErrAccountNotFound, "find account session", start); err != nil {
			return err
		}
		session.RefreshTokenHash = deref(hash)
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (r *PgRepository) ReadVersion(ctx context.Context, id domain.ID, increment bool) (int64, error) {
	var step int64
	if increment {
		step = 1
	}

	start := time.Now()
	var version int64
	err := r.pool.QueryRow(
		ctx,
		`UPDATE accounts
		 SET token_version = token_version + $2,
		     updated_at = CASE WHEN $2 > 0 THEN NOW() ELSE updated_at END
		 WHERE id = $1
		 RETURNING token_version`,
		string(id),
		step,
	).Scan(&version)
	if err := db.HandleQueryError(badIDAsNoRows(err), ErrAccountNotFound, "read token version", start); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *PgRepository) StoreRefresh(ctx context.Context, id domain.ID, expected domain.Session, hash string, expiry time.Time) error {
	var affected int64
	err := db.RetryWithBackoff(ctx, r.log, r.retry, "store session refresh hash", func(ctx context.Context) error {
		start := time.Now()
		tag, err := r.pool.Exec(
			ctx,
			`UPDATE accounts
			 SET refresh_token_hash = $3, refresh_token_expiry = $4, is_active = TRUE, updated_at = NOW()
			 WHERE id = $1 AND token_version = $2 AND COALESCE(refresh_token_hash, '') = $5`,
			string(id),
			expected.TokenVersion,
			hash,
			expiry,
			expected.RefreshTokenHash,
		)
		if err := db.HandleExecError(badIDAsNoRows(err), "store session refresh hash", start); err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	if affected == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

func (r *PgRepository) ClearRefresh(ctx context.Context, id domain.ID) error {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET refresh_token_hash = NULL, refresh_token_expiry = NULL, is_active = FALSE, updated_at = NOW()
		 WHERE id = $1`,
		string(id),
	)
	if err := db.HandleExecError(err, "clear session refresh hash", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) RevokeSession(ctx context.Context, id domain.ID, bump int64) (int64, error) {
	if bump <= 0 {
		return 0, ErrInvalidRevokeAmount
	}

	start := time.Now()
	var version int64
	err := r.pool.QueryRow(
		ctx,
		`UPDATE accounts
		 SET token_version = token_version + $2,
		     refresh_token_hash = NULL,
		     refresh_token_expiry = NULL,
		     is_active = FALSE,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING token_version`,
		string(id),
		bump,
	).Scan(&version)
	if err := db.HandleQueryError(badIDAsNoRows(err), ErrAccountNotFound, "revoke session version", start); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *PgRepository) SetOTP(ctx context.Context, id domain.ID, hash string, expiry time.Time) error {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE accounts SET otp_hash = $2, otp_expiry = $3, updated_at = NOW() WHERE id = $1`,
		string(id),
		hash,
		expiry,
	)
	if err := db.HandleExecError(err, "set account otp", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) Activate(ctx context.Context, id domain.ID, referralCode string) error {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET status = 'ACTIVE',
		     otp_hash = NULL,
		     otp_expiry = NULL,
		     referral_code = COALESCE(referral_code, NULLIF($2, '')),
		     updated_at = NOW()
		 WHERE id = $1`,
		string(id),
		referralCode,
	)
	if err != nil && db.UniqueViolation(err) == "accounts_referral_code_key" {
		return ErrReferralCodeExists
	}
	if err := db.HandleExecError(err, "activate account", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) ClearStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET refresh_token_hash = NULL, refresh_token_expiry = NULL, is_active = FALSE, updated_at = NOW()
		 WHERE refresh_token_hash IS NOT NULL AND refresh_token_expiry < $1`,
		cutoff,
	)
	if err := db.HandleExecError(err, "clear stale sessions", start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE accounts SET otp_hash = NULL, otp_expiry = NULL WHERE otp_hash IS NOT NULL AND otp_expiry < $1`,
		now,
	)
	if err := db.HandleExecError(err, "clear expired otps", start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) findOne(ctx context.Context, operation, query string, args ...any) (domain.Account, error) {
	var account domain.Account
	err := db.RetryWithBackoff(ctx, r.log, r.retry, operation, func(ctx context.Context) error {
		start := time.Now()
		var scanErr error
		account, scanErr = scanAccount(r.pool.QueryRow(ctx, query, args...))
		return db.HandleQueryError(badIDAsNoRows(scanErr), ErrAccountNotFound, operation, start)
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (r *PgRepository) conflictOrMissing(ctx context.Context, id domain.ID) error {
	start := time.Now()
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, string(id)).Scan(&exists)
	if err := db.HandleQueryError(err, ErrAccountNotFound, "check account exists", start); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return ErrVersionConflict
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var id, role, status string
	var referralCode, referredBy, passwordHash, otpHash, refreshHash *string

	err := row.Scan(
		&id,
		&a.FirstName,
		&a.LastName,
		&a.Email,
		&a.TelephoneNumber,
		&a.DOB,
		&referralCode,
		&referredBy,
		&role,
		&status,
		&passwordHash,
		&otpHash,
		&a.OTPExpiry,
		&a.Session.TokenVersion,
		&refreshHash,
		&a.Session.RefreshTokenExpiry,
		&a.Session.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.ID = domain.ID(id)
	a.ReferralCode = deref(referralCode)
	a.ReferredBy = deref(referredBy)
	a.Role = domain.Role(role)
	a.Status = domain.Status(status)
	a.PasswordHash = deref(passwordHash)
	a.OTPHash = deref(otpHash)
	a.Session.RefreshTokenHash = deref(refreshHash)
	return a, nil
}

// A malformed uuid cannot match any row.
func badIDAsNoRows(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return pgx.ErrNoRows
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
