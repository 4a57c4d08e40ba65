package backend

import (
	"errors"
	"fmt"
	"net/mail"
)

// ErrInvalidAddress is wrapped into every address parse failure.
var ErrInvalidAddress = errors.New("invalid email address")

// Address is an RFC 5322 address split into display name and email parts.
type Address struct {
	Name  string
	Email string
}

// ParseAddress parses "Foo <foo@bar.com>" or a bare "foo@bar.com".
func ParseAddress(s string) (Address, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address{Name: addr.Name, Email: addr.Address}, nil
}
