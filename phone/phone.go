// Package phone validates and normalizes phone numbers for SMS delivery.
package phone

import (
	"errors"
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidNumber is wrapped into every parse failure.
var ErrInvalidNumber = errors.New("invalid phone number")

// Number is a parsed, valid phone number.
type Number struct {
	parsed *phonenumbers.PhoneNumber
}

// Parse parses a number in international format ("+34659424242"). Numbers
// that do not parse or that are not dialable return ErrInvalidNumber.
func Parse(raw string) (Number, error) {
	parsed, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return Number{}, fmt.Errorf("%w: %q: %v", ErrInvalidNumber, raw, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return Number{parsed: parsed}, nil
}

// E164 formats the number in E.164, the shape SMS gateways expect.
func (n Number) E164() string {
	return phonenumbers.Format(n.parsed, phonenumbers.E164)
}

// CountryCode returns the country calling code, 34 for Spain.
func (n Number) CountryCode() int {
	return int(n.parsed.GetCountryCode())
}

func (n Number) String() string {
	return n.E164()
}
