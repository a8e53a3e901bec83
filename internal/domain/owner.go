package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AccountKind distinguishes the two kinds of account that can sign in.
type AccountKind string

const (
	KindUser     AccountKind = "user"
	KindProvider AccountKind = "provider"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	return k == KindUser || k == KindProvider
}

// Owner identifies whose address book an address belongs to. Ids are only
// unique within a kind, so user 7 and provider 7 are different owners.
type Owner struct {
	ID   int64
	Kind AccountKind
}

// String returns "kind:id".
func (o Owner) String() string {
	return string(o.Kind) + ":" + strconv.FormatInt(o.ID, 10)
}

// ParseOwner parses an account id and kind as carried in a token.
func ParseOwner(subject, kind string) (Owner, error) {
	k := AccountKind(strings.ToLower(kind))
	if !k.Valid() {
		return Owner{}, fmt.Errorf("unknown account kind %q", kind)
	}
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || id <= 0 {
		return Owner{}, fmt.Errorf("invalid account id %q", subject)
	}
	return Owner{ID: id, Kind: k}, nil
}
