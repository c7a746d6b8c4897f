package verify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"hotride/internal/auth"
	"hotride/internal/db"
	"hotride/internal/models"
)

const (
	CodeLength  = 6
	MaxAttempts = 5
)

// Dispatcher delivers a code out-of-band (email or SMS). Delivery is
// best-effort; a nil return means the carrier accepted the message.
type Dispatcher interface {
	Dispatch(ctx context.Context, target, code string, ttl time.Duration) error
}

// Manager owns issue and redeem for one-time verification codes. Operations
// on the same (purpose, target) pair serialize on a keyed lock so a reissue
// cannot race a redeem.
type Manager struct {
	codes    *db.VerificationCodeRepository
	ttl      time.Duration
	cooldown time.Duration

	email Dispatcher
	sms   Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(codes *db.VerificationCodeRepository, email, sms Dispatcher, ttl, cooldown time.Duration) *Manager {
	return &Manager{
		codes:    codes,
		ttl:      ttl,
		cooldown: cooldown,
		email:    email,
		sms:      sms,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue supersedes any live code for the pair, stores a fresh one, and
// dispatches it. A reissue inside the cooldown window is refused.
func (m *Manager) Issue(ctx context.Context, purpose models.Purpose, target string) error {
	unlock := m.lock(purpose, target)
	defer unlock()

	if m.cooldown > 0 {
		live, err := m.codes.FindLive(purpose, target)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		if err == nil && time.Since(live.CreatedAt) < m.cooldown {
			return auth.E(auth.KindRateLimited, "a code was just sent, wait a moment before requesting another")
		}
	}

	if err := m.codes.SupersedeLive(purpose, target); err != nil {
		return err
	}

	code, err := GenerateCode()
	if err != nil {
		return fmt.Errorf("generating verification code: %w", err)
	}

	expiresAt := time.Now().Add(m.ttl)
	if _, err := m.codes.Create(purpose, target, HashCode(purpose, target, code), expiresAt); err != nil {
		return err
	}

	if err := m.dispatcherFor(purpose).Dispatch(ctx, target, code, m.ttl); err != nil {
		return auth.Wrap(auth.KindProviderUnavailable, "could not send the verification code, please try again", err)
	}

	return nil
}

// Redeem consumes the live code for the pair. Expiry is reported before a
// digit mismatch so the client can offer a resend instead of a retry. A
// consumed code never redeems twice.
func (m *Manager) Redeem(purpose models.Purpose, target, candidate string) error {
	unlock := m.lock(purpose, target)
	defer unlock()

	code, err := m.codes.FindLive(purpose, target)
	if errors.Is(err, db.ErrNotFound) {
		return auth.E(auth.KindNoActiveCode, "no active code, request a new one")
	}
	if err != nil {
		return err
	}

	attempts, err := m.codes.IncrementAttempts(code.ID, MaxAttempts)
	if err != nil {
		return err
	}
	if attempts < 0 || attempts > MaxAttempts {
		return auth.E(auth.KindNoActiveCode, "too many attempts, request a new code")
	}

	if time.Now().After(code.ExpiresAt) {
		return auth.E(auth.KindCodeExpired, "the code has expired, request a new one")
	}

	expected := HashCode(purpose, target, candidate)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(code.CodeHash)) != 1 {
		return auth.E(auth.KindCodeMismatch, "incorrect code")
	}

	used, err := m.codes.MarkUsedIfUnused(code.ID)
	if err != nil {
		return err
	}
	if !used {
		return auth.E(auth.KindNoActiveCode, "the code has already been used")
	}

	return nil
}

func (m *Manager) dispatcherFor(purpose models.Purpose) Dispatcher {
	if purpose == models.PurposePhoneVerify {
		return m.sms
	}
	return m.email
}

func (m *Manager) lock(purpose models.Purpose, target string) func() {
	key := string(purpose) + "|" + target

	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// GenerateCode creates a 6-digit zero-padded numeric code using crypto/rand
func GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashCode binds the stored hash to the pair it was issued for, so a code
// leaked for one target cannot redeem for another.
func HashCode(purpose models.Purpose, target, code string) string {
	h := sha256.Sum256([]byte(string(purpose) + ":" + target + ":" + code))
	return hex.EncodeToString(h[:])
}
