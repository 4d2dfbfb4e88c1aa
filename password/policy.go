package password

import (
	"strconv"
	"strings"
	"unicode"
)

// Policy describes the composition rules a new password must satisfy.
type Policy struct {
	MinLength              int // in runes
	MaxBytes               int // 0 disables the upper bound
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
	RequiredUniqueChars    int
}

// DefaultPolicy returns an 8-rune minimum with mixed case and a digit,
// capped at the bcrypt input limit.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:           8,
		MaxBytes:            bcryptMaxBytes,
		RequireDigit:        true,
		RequireLowercase:    true,
		RequireUppercase:    true,
		RequiredUniqueChars: 1,
	}
}

// PolicyError lists every rule a password violated.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password: " + strings.Join(e.Violations, "; ")
}

// Check returns nil or a *PolicyError.
func (p Policy) Check(pw string) error {
	var (
		v                             []string
		digit, lower, upper, nonAlnum bool
		unique                        = make(map[rune]struct{})
		runes                         int
	)
	for _, r := range pw {
		runes++
		unique[r] = struct{}{}
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			nonAlnum = true
		}
	}

	if runes < p.MinLength {
		v = append(v, "must be at least "+strconv.Itoa(p.MinLength)+" characters")
	}
	if p.MaxBytes > 0 && len(pw) > p.MaxBytes {
		v = append(v, "must be at most "+strconv.Itoa(p.MaxBytes)+" bytes")
	}
	if p.RequireDigit && !digit {
		v = append(v, "must contain a digit")
	}
	if p.RequireLowercase && !lower {
		v = append(v, "must contain a lowercase letter")
	}
	if p.RequireUppercase && !upper {
		v = append(v, "must contain an uppercase letter")
	}
	if p.RequireNonAlphanumeric && !nonAlnum {
		v = append(v, "must contain a non-alphanumeric character")
	}
	if len(unique) < p.RequiredUniqueChars {
		v = append(v, "must contain at least "+strconv.Itoa(p.RequiredUniqueChars)+" distinct characters")
	}

	if len(v) == 0 {
		return nil
	}
	return &PolicyError{Violations: v}
}
