package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes a site or identity name: Unicode NFC, trimmed,
// with internal whitespace runs collapsed to one space.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// Pair identifies one identity on one partner site.
type Pair struct {
	Identity string `json:"identity"`
	Site     string `json:"site"`
}

// NewPair returns a pair with normalized names.
func NewPair(identity, site string) Pair {
	return Pair{Identity: NormalizeName(identity), Site: NormalizeName(site)}
}

// Key renders the pair as "identity||site".
func (p Pair) Key() string {
	return p.Identity + "||" + p.Site
}

// Valid reports whether both names are present.
func (p Pair) Valid() bool {
	return p.Identity != "" && p.Site != ""
}
