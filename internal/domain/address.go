package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Address is one entry in an owner's address book.
type Address struct {
	ID        int64       `json:"id"`
	OwnerID   int64       `json:"owner_id"`
	OwnerKind AccountKind `json:"-"`
	Kind      string      `json:"kind"`
	Line      string      `json:"line"`
	City      string      `json:"city"`
	IsDefault bool        `json:"is_default"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Owner returns the owner the address belongs to.
func (a *Address) Owner() Owner {
	return Owner{ID: a.OwnerID, Kind: a.OwnerKind}
}

// Field limits for an address, in characters.
const (
	MaxAddressKindLen = 50
	MaxAddressLineLen = 500
	MaxAddressCityLen = 200
)

// AddressInput carries the caller-supplied fields of a create or update.
type AddressInput struct {
	Kind      string
	Line      string
	City      string
	IsDefault bool
}

// Normalize trims surrounding whitespace from the text fields.
func (in AddressInput) Normalize() AddressInput {
	in.Kind = strings.TrimSpace(in.Kind)
	in.Line = strings.TrimSpace(in.Line)
	in.City = strings.TrimSpace(in.City)
	return in
}

// Validate returns field name to problem for every invalid field, or nil.
// It expects a normalized input.
func (in AddressInput) Validate() map[string]string {
	problems := make(map[string]string)
	check := func(field, value string, limit int) {
		switch {
		case value == "":
			problems[field] = "must not be blank"
		case utf8.RuneCountInString(value) > limit:
			problems[field] = "is too long"
		}
	}
	check("kind", in.Kind, MaxAddressKindLen)
	check("line", in.Line, MaxAddressLineLen)
	check("city", in.City, MaxAddressCityLen)

	if len(problems) == 0 {
		return nil
	}
	return problems
}
