// Password hashing. Members who register with an email pick a password;
// members who arrive through GitHub OAuth never have one — their
// PasswordHash stays empty and the login path refuses password auth for
// them.
//
// Hashes are bcrypt. It salts automatically (so identical passwords hash
// differently), packs the salt into the output string, and is tunably slow:
// cost 12 costs a login ~250ms once, and costs an attacker ~250ms per guess,
// forever. Fast general-purpose hashes have no place here.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used for real member passwords.
//
// Cost 12 is the current recommended floor for new applications. The tuning
// rule of thumb: pick the cost where hashing takes ~200–300ms on production
// hardware. Lower is crackable; much higher and a signup burst turns into a
// bcrypt-bound CPU spike.
const defaultCost = 12

// bcryptMaxLen is bcrypt's input ceiling. The algorithm silently truncates
// anything longer, so "aaaa...72 bytes" and "aaaa...90 bytes" would verify as
// the same password — we reject over-length input instead.
const bcryptMaxLen = 72

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct rather than free functions so the cost is injectable: tests
// use the bcrypt minimum (cost 4) and stay fast without changing any of the
// logic under test.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with the given cost.
// Tests pass 4 (the bcrypt minimum) to avoid ~250ms per hash. Never use a
// reduced cost in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password with bcrypt.
//
// The output is self-contained — version, cost, salt, and digest in one
// string, e.g.:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// It goes straight into users.password_hash; Verify knows how to decode it.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > bcryptMaxLen {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", bcryptMaxLen)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash: nil on match, a
// non-nil error otherwise. An empty stored hash (OAuth-only account) never
// matches anything — bcrypt rejects it as malformed, which is the behavior
// we want.
//
// bcrypt.CompareHashAndPassword compares in constant time, so response
// timing doesn't leak how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
