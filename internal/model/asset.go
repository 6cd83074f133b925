package model

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAssetClass  = errors.New("model: invalid asset class")
	ErrInvalidPositionKey = errors.New("model: invalid position key")
)

// assetRegex matches: {policyId}.{assetName}
// The policy is empty (ADA) or a 28-byte hex script hash.
// Example: 1d7f33bd23d85e1a25d87d86fac4f199c3197a2f7afeb662a0f34e1e.BTC
var assetRegex = regexp.MustCompile(`^((?:[0-9a-f]{56})?)\.([^.:]{0,64})$`)

// positionKeyRegex matches: {account}:{policyId}.{assetName}:{long|short}
var positionKeyRegex = regexp.MustCompile(`^([^:]+):([^:]*):(long|short)$`)

// AssetClass identifies a native token by (policy, asset name). It is
// comparable and used directly as a map key, so two values with the same
// policy and name always address the same entry.
type AssetClass struct {
	PolicyID  string
	AssetName string
}

// ParseAssetClass parses the "{policyId}.{assetName}" text form.
func ParseAssetClass(s string) (AssetClass, error) {
	matches := assetRegex.FindStringSubmatch(s)
	if matches == nil {
		return AssetClass{}, fmt.Errorf("%w: %q (expected {policyId}.{assetName})", ErrInvalidAssetClass, s)
	}
	return AssetClass{PolicyID: matches[1], AssetName: matches[2]}, nil
}

func (a AssetClass) String() string {
	return a.PolicyID + "." + a.AssetName
}

// MarshalText lets AssetClass key JSON objects.
func (a AssetClass) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AssetClass) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetClass(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Less orders asset classes by policy then name.
func (a AssetClass) Less(b AssetClass) bool {
	if a.PolicyID != b.PolicyID {
		return a.PolicyID < b.PolicyID
	}
	return a.AssetName < b.AssetName
}

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// IsLong reports whether s is SideLong.
func (s Side) IsLong() bool {
	return s == SideLong
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// PositionKey identifies one position: an account holds at most one long
// and one short per index token.
type PositionKey struct {
	Account    string     `json:"account"`
	IndexToken AssetClass `json:"index_token"`
	Side       Side       `json:"side"`
}

// ParsePositionKey parses the "{account}:{policyId}.{assetName}:{long|short}" form.
func ParsePositionKey(s string) (PositionKey, error) {
	matches := positionKeyRegex.FindStringSubmatch(s)
	if matches == nil {
		return PositionKey{}, fmt.Errorf("%w: %q (expected {account}:{policyId}.{assetName}:{long|short})",
			ErrInvalidPositionKey, s)
	}
	token, err := ParseAssetClass(matches[2])
	if err != nil {
		return PositionKey{}, fmt.Errorf("%w: %v", ErrInvalidPositionKey, err)
	}
	side := SideShort
	if matches[3] == "long" {
		side = SideLong
	}
	return PositionKey{Account: matches[1], IndexToken: token, Side: side}, nil
}

func (k PositionKey) String() string {
	return k.Account + ":" + k.IndexToken.String() + ":" + strings.ToLower(string(k.Side))
}

// TokenMap is a per-token mapping keyed by asset class value.
// Snapshots treat it as immutable: With returns a modified copy.
type TokenMap[V any] map[AssetClass]V

// Get returns the value for token, or the zero value when absent.
func (m TokenMap[V]) Get(token AssetClass) V {
	return m[token]
}

// Has reports whether token has an entry.
func (m TokenMap[V]) Has(token AssetClass) bool {
	_, ok := m[token]
	return ok
}

// With returns a copy of m with token set to v.
func (m TokenMap[V]) With(token AssetClass, v V) TokenMap[V] {
	out := m.Clone()
	out[token] = v
	return out
}

// Clone returns a shallow copy; never nil.
func (m TokenMap[V]) Clone() TokenMap[V] {
	out := make(TokenMap[V], len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Tokens returns the keys in a stable order.
func (m TokenMap[V]) Tokens() []AssetClass {
	tokens := make([]AssetClass, 0, len(m))
	for k := range m {
		tokens = append(tokens, k)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Less(tokens[j]) })
	return tokens
}

// Amounts is a per-token map of integer amounts.
type Amounts = TokenMap[decimal.Decimal]

// Values returns the amounts in token order.
func Values(m Amounts) []decimal.Decimal {
	tokens := m.Tokens()
	out := make([]decimal.Decimal, len(tokens))
	for i, t := range tokens {
		out[i] = m[t]
	}
	return out
}
