package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotride/internal/models"
)

type VerificationCodeRepository struct {
	db *DB
}

func NewVerificationCodeRepository(db *DB) *VerificationCodeRepository {
	return &VerificationCodeRepository{db: db}
}

func (r *VerificationCodeRepository) Create(purpose models.Purpose, target, codeHash string, expiresAt time.Time) (*models.VerificationCode, error) {
	id, err := GenerateID("vc")
	if err != nil {
		return nil, fmt.Errorf("generating verification code ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO verification_codes (id, purpose, target, code_hash, expires_at, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		id, purpose, target, codeHash, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating verification code: %w", err)
	}

	return &models.VerificationCode{
		ID:        id,
		Purpose:   purpose,
		Target:    target,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		Attempts:  0,
		CreatedAt: now,
	}, nil
}

// SupersedeLive retires any live code for the (purpose, target) pair so that
// at most one code is redeemable at a time.
func (r *VerificationCodeRepository) SupersedeLive(purpose models.Purpose, target string) error {
	_, err := r.db.Exec(
		`UPDATE verification_codes SET superseded_at = ?
		 WHERE purpose = ? AND target = ? AND used_at IS NULL AND superseded_at IS NULL`,
		time.Now().UTC(), purpose, target,
	)
	if err != nil {
		return fmt.Errorf("superseding verification codes: %w", err)
	}
	return nil
}

// FindLive returns the single redeemable code for the pair, expired or not.
// Expiry is the caller's concern; expired rows are not eagerly deleted.
func (r *VerificationCodeRepository) FindLive(purpose models.Purpose, target string) (*models.VerificationCode, error) {
	var vc models.VerificationCode
	var usedAt, supersededAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, purpose, target, code_hash, expires_at, used_at, superseded_at, attempts, created_at
		 FROM verification_codes
		 WHERE purpose = ? AND target = ? AND used_at IS NULL AND superseded_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`,
		purpose, target,
	).Scan(&vc.ID, &vc.Purpose, &vc.Target, &vc.CodeHash, &vc.ExpiresAt, &usedAt, &supersededAt, &vc.Attempts, &vc.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification code: %w", err)
	}

	vc.UsedAt = nullTimeToPtr(usedAt)
	vc.SupersededAt = nullTimeToPtr(supersededAt)

	return &vc, nil
}

// IncrementAttempts atomically increments the attempt count only if it is
// below max, and returns the new value. Returns -1 if the code was already
// at or above the limit (no update performed).
func (r *VerificationCodeRepository) IncrementAttempts(id string, max int) (int, error) {
	var attempts int
	err := r.db.QueryRow(
		`UPDATE verification_codes SET attempts = attempts + 1 WHERE id = ? AND attempts < ? RETURNING attempts`,
		id, max,
	).Scan(&attempts)

	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing attempts: %w", err)
	}

	return attempts, nil
}

// MarkUsedIfUnused atomically consumes a code only if it hasn't been consumed yet.
func (r *VerificationCodeRepository) MarkUsedIfUnused(id string) (bool, error) {
	result, err := r.db.Exec(
		`UPDATE verification_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking code used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	return rows > 0, nil
}

func (r *VerificationCodeRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM verification_codes WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired codes: %w", err)
	}

	return result.RowsAffected()
}
