package usecase

import (
	"regexp"
	"strings"

	"github.com/arklim/account-auth/internal/core/domain"
)

// Keys of the raw field maps accepted by Register and ModifyInfo.
const (
	FieldUsername  = "username"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldPassword  = "password"
	FieldTicket    = "ticket"
)

const maxEmailLength = 254

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,49}$`)
	namePattern     = regexp.MustCompile(`^\p{L}[\p{L} '.-]{0,29}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]{1,64}@[^@\s]+\.[^@\s]+$`)
	ticketPattern   = regexp.MustCompile(`^[A-Za-z0-9]{8,64}$`)
)

// violations accumulates error codes in the order they were found.
type violations []string

func (v *violations) add(code string) {
	*v = append(*v, code)
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return domain.NewUserError(v...)
}

func (v *violations) username(value string) {
	switch {
	case value == "":
		v.add(domain.CodeUsernameRequired)
	case !usernamePattern.MatchString(value):
		v.add(domain.CodeInvalidUsername)
	}
}

// name checks an optional personal name; empty means absent.
func (v *violations) name(value, code string) {
	if value != "" && !namePattern.MatchString(value) {
		v.add(code)
	}
}

func (v *violations) email(value string) {
	switch {
	case value == "":
		v.add(domain.CodeEmailRequired)
	case len(value) > maxEmailLength || !emailPattern.MatchString(value):
		v.add(domain.CodeInvalidEmail)
	}
}

func (v *violations) ticket(value string) {
	switch {
	case value == "":
		v.add(domain.CodeTokenRequired)
	case !ticketPattern.MatchString(value):
		v.add(domain.CodeInvalidToken)
	}
}

// field returns the trimmed value stored under key and whether it was present.
func field(fields map[string]string, key string) (string, bool) {
	value, ok := fields[key]
	return strings.TrimSpace(value), ok
}
