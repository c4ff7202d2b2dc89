package domain

import (
	"errors"
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
)

// ErrMissingKey reports an attendance log key with an empty component.
var ErrMissingKey = errors.New("attendance log key is incomplete")

// Entry is one attendance presence fact.
type Entry struct {
	AccountID int64
	Site      string
	Identity  string
	Date      civil.Date
}

// NewEntry builds a normalized entry and validates its key.
func NewEntry(accountID int64, site, identity string, date civil.Date) (Entry, error) {
	e := Entry{
		AccountID: accountID,
		Site:      NormalizeName(site),
		Identity:  NormalizeName(identity),
		Date:      date,
	}
	return e, e.Validate()
}

// Validate checks that every key component is set.
func (e Entry) Validate() error {
	switch {
	case e.AccountID <= 0:
		return fmt.Errorf("%w: account id", ErrMissingKey)
	case e.Site == "":
		return fmt.Errorf("%w: site", ErrMissingKey)
	case e.Identity == "":
		return fmt.Errorf("%w: identity", ErrMissingKey)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date", ErrMissingKey)
	}
	return nil
}

// Pair returns the identity/site pair of e.
func (e Entry) Pair() Pair {
	return Pair{Identity: e.Identity, Site: e.Site}
}
