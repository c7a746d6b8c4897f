package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotride/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

const accountColumns = `id, email, phone, email_verified, phone_verified, auth_provider,
	oauth_subject, password_hash, full_name, profile_picture_url, profile_completed,
	active, session_version, created_at, updated_at`

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type CreateAccountParams struct {
	Email             *string
	Phone             *string
	EmailVerified     bool
	Provider          models.Provider
	OAuthSubject      *string
	PasswordHash      *string
	FullName          *string
	ProfilePictureURL *string
}

func (r *AccountRepository) Create(p CreateAccountParams) (*models.Account, error) {
	id, err := GenerateID("acc")
	if err != nil {
		return nil, fmt.Errorf("generating account ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(
		`INSERT INTO accounts (id, email, phone, email_verified, phone_verified, auth_provider,
			oauth_subject, password_hash, full_name, profile_picture_url, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		id, p.Email, p.Phone, p.EmailVerified, p.Provider, p.OAuthSubject,
		p.PasswordHash, p.FullName, p.ProfilePictureURL, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return &models.Account{
		ID:                id,
		Email:             p.Email,
		Phone:             p.Phone,
		EmailVerified:     p.EmailVerified,
		Provider:          p.Provider,
		OAuthSubject:      p.OAuthSubject,
		PasswordHash:      p.PasswordHash,
		FullName:          p.FullName,
		ProfilePictureURL: p.ProfilePictureURL,
		Active:            true,
		SessionVersion:    1,
		CreatedAt:         now,
	}, nil
}

func (r *AccountRepository) FindByID(id string) (*models.Account, error) {
	return r.findOne(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (r *AccountRepository) FindByEmail(email string) (*models.Account, error) {
	return r.findOne(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

func (r *AccountRepository) FindByPhone(phone string) (*models.Account, error) {
	return r.findOne(`SELECT `+accountColumns+` FROM accounts WHERE phone = ?`, phone)
}

func (r *AccountRepository) FindByOAuthSubject(provider models.Provider, subject string) (*models.Account, error) {
	return r.findOne(
		`SELECT `+accountColumns+` FROM accounts WHERE auth_provider = ? AND oauth_subject = ?`,
		provider, subject,
	)
}

func (r *AccountRepository) MarkEmailVerified(id string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking email verified: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) MarkPhoneVerified(id string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET phone_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking phone verified: %w", err)
	}
	return checkRowsAffected(result)
}

// SetPhone replaces the phone number and resets its verified flag.
func (r *AccountRepository) SetPhone(id, phone string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET phone = ?, phone_verified = 0, updated_at = ? WHERE id = ?`,
		phone, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("setting phone: %w", err)
	}
	return checkRowsAffected(result)
}

type UpdateProfileParams struct {
	FullName          *string
	ProfilePictureURL *string
}

func (r *AccountRepository) UpdateProfile(id string, p UpdateProfileParams) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET
			full_name = COALESCE(?, full_name),
			profile_picture_url = COALESCE(?, profile_picture_url),
			updated_at = ?
		 WHERE id = ?`,
		p.FullName, p.ProfilePictureURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) MarkProfileCompleted(id string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET profile_completed = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking profile completed: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) SetPasswordHash(id, hash string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting password hash: %w", err)
	}
	return checkRowsAffected(result)
}

// IncrementSessionVersion invalidates every access token issued so far for
// the account and returns the new version.
func (r *AccountRepository) IncrementSessionVersion(id string) (int, error) {
	var version int
	err := r.db.QueryRow(
		`UPDATE accounts SET session_version = session_version + 1, updated_at = ? WHERE id = ? RETURNING session_version`,
		time.Now().UTC(), id,
	).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing session version: %w", err)
	}

	return version, nil
}

func (r *AccountRepository) findOne(query string, args ...any) (*models.Account, error) {
	var a models.Account
	var email, phone, subject, passwordHash, fullName, pictureURL sql.NullString
	var updatedAt sql.NullTime

	err := r.db.QueryRow(query, args...).Scan(
		&a.ID,
		&email,
		&phone,
		&a.EmailVerified,
		&a.PhoneVerified,
		&a.Provider,
		&subject,
		&passwordHash,
		&fullName,
		&pictureURL,
		&a.ProfileCompleted,
		&a.Active,
		&a.SessionVersion,
		&a.CreatedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	a.Email = nullStringToPtr(email)
	a.Phone = nullStringToPtr(phone)
	a.OAuthSubject = nullStringToPtr(subject)
	a.PasswordHash = nullStringToPtr(passwordHash)
	a.FullName = nullStringToPtr(fullName)
	a.ProfilePictureURL = nullStringToPtr(pictureURL)
	a.UpdatedAt = nullTimeToPtr(updatedAt)

	return &a, nil
}
