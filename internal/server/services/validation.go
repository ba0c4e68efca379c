package services

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

// usernamePattern applies after lower-casing: 3-32 of a-z, 0-9, '_' or '.'.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bytes, bcrypt input limit
	maxFullNameLen = 100
)

// normalizeRegistration trims the profile fields, lower-cases username and
// email, and rejects input that cannot become an account.
func normalizeRegistration(in RegisterInput) (RegisterInput, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	var missing []string
	if in.FullName == "" {
		missing = append(missing, "full name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return in, fmt.Errorf("%w: %s required", common.ErrValidation, strings.Join(missing, ", "))
	}

	if !usernamePattern.MatchString(in.Username) {
		return in, fmt.Errorf("%w: username must be 3-32 letters, digits, '_' or '.'", common.ErrValidation)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return in, fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return in, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	if len(in.Password) > maxPasswordLen {
		return in, fmt.Errorf("%w: password must be at most %d bytes", common.ErrValidation, maxPasswordLen)
	}
	if utf8.RuneCountInString(in.FullName) > maxFullNameLen {
		return in, fmt.Errorf("%w: full name is too long", common.ErrValidation)
	}

	return in, nil
}
