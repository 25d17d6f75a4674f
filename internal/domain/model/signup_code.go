package model

import (
	"strings"
	"time"

	"signup-code-service/internal/domain"
)

// CodeLength is the fixed length of every signup code.
const CodeLength = 6

// SignupCode is a capacity-limited, time-bounded registration code.
// CurrentUsages only ever grows through the atomic increment in the store;
// the invariant CurrentUsages <= MaxUsages holds after every mutation.
type SignupCode struct {
	ID            string
	Code          string
	MaxUsages     int
	CurrentUsages int
	IsActive      bool
	CreatedBy     string
	ExpiresAt     *time.Time // nil means the code never expires
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AdminPatch is a partial administrative update. Nil fields are left
// untouched. ClearExpiresAt removes the expiry entirely and wins over
// ExpiresAt when both are set.
type AdminPatch struct {
	MaxUsages      *int
	IsActive       *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// Redemption is one successful consumption of a code's capacity,
// recorded in the same transaction as the increment.
type Redemption struct {
	ID          string
	Code        string
	UsagesAfter int
	RedeemedAt  time.Time
}

// NormalizeCode upper-cases and trims a raw code string. Codes are stored
// and compared upper-case so that "ab12cd" and "AB12CD" are the same code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateCodeFormat checks the fixed-length alphanumeric shape without
// touching storage. Callers normalize first.
func ValidateCodeFormat(code string) error {
	if len(code) != CodeLength {
		return domain.ErrInvalidCodeFormat
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			continue
		}
		if c >= 'a' && c <= 'z' {
			continue
		}
		return domain.ErrInvalidCodeFormat
	}
	return nil
}

// Expired reports whether the code's expiry has passed at the given instant.
func (c *SignupCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Eligible is the redemption eligibility predicate: active, not expired,
// under capacity. The store re-evaluates the same predicate atomically at
// write time; this method exists for read-path checks and tests.
func (c *SignupCode) Eligible(now time.Time) bool {
	return c.IsActive && !c.Expired(now) && c.CurrentUsages < c.MaxUsages
}

// Remaining returns the redemptions left before the code is exhausted.
func (c *SignupCode) Remaining() int {
	if c.CurrentUsages >= c.MaxUsages {
		return 0
	}
	return c.MaxUsages - c.CurrentUsages
}

// NewSignupCode builds an unredeemed, active code record. The ID is
// assigned by the caller (lifecycle manager), timestamps by the store.
func NewSignupCode(id, code string, maxUsages int, createdBy string, expiresAt *time.Time) (*SignupCode, error) {
	code = NormalizeCode(code)
	if err := ValidateCodeFormat(code); err != nil {
		return nil, err
	}
	if maxUsages < 1 {
		return nil, domain.ErrInvalidArgument
	}
	if createdBy == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &SignupCode{
		ID:            id,
		Code:          code,
		MaxUsages:     maxUsages,
		CurrentUsages: 0,
		IsActive:      true,
		CreatedBy:     createdBy,
		ExpiresAt:     expiresAt,
	}, nil
}
