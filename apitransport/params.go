// Package apitransport implements the authenticated, paginated HTTP
// transport shared by remote code-review clients: ordered parameter
// composition, Link-header pagination, tri-state single-entity
// decoding, and lazy per-request credential injection.
package apitransport

import (
	"fmt"
	"net/url"
	"strings"
)

// Params is an ordered list of key/value pairs, preserving insertion
// order and duplicate keys — unlike url.Values, which is a map and
// loses both.
type Params struct {
	pairs [][2]string
}

// NewParams returns an empty Params value; pairs are appended in order
// with Add.
func NewParams() *Params { return &Params{} }

// Add appends a key/value pair, stringifying value via its canonical
// %v representation.
func (p *Params) Add(key string, value any) *Params {
	p.pairs = append(p.pairs, [2]string{key, fmt.Sprintf("%v", value)})
	return p
}

// QueryString percent-encodes every key and value per RFC 3986's
// reserved set and joins them with "&", preserving order and
// duplicates.
func (p *Params) QueryString() string {
	parts := make([]string, 0, len(p.pairs))
	for _, kv := range p.pairs {
		parts = append(parts, url.QueryEscape(kv[0])+"="+url.QueryEscape(kv[1]))
	}
	return strings.Join(parts, "&")
}

// Len reports the number of pairs.
func (p *Params) Len() int { return len(p.pairs) }
