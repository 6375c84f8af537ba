package models

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EntityKind identifies what an exposed entity represents
type EntityKind string

const (
	KindPortfolio          EntityKind = "portfolio"
	KindAccount            EntityKind = "account"
	KindHolding            EntityKind = "holding"
	KindHoldingLimitLow    EntityKind = "holding_limit_low"
	KindHoldingLimitHigh   EntityKind = "holding_limit_high"
	KindWatchlist          EntityKind = "watchlist"
	KindWatchlistLimitLow  EntityKind = "watchlist_limit_low"
	KindWatchlistLimitHigh EntityKind = "watchlist_limit_high"
)

// WatchlistScope is the scope ID used for every watchlist-derived entity.
const WatchlistScope = "watchlist_scope"

// WatchlistScopeName is the device name shown for watchlist-derived entities.
const WatchlistScopeName = "Watchlist"

// LimitSide selects the low or high threshold of a limit pair
type LimitSide string

const (
	LimitLow  LimitSide = "low"
	LimitHigh LimitSide = "high"
)

// Label returns the capitalised side name used in display names.
func (s LimitSide) Label() string {
	switch s {
	case LimitLow:
		return "Low"
	case LimitHigh:
		return "High"
	}
	return string(s)
}

// EntityKey is the stable identifier of an exposed entity. The same key is
// used when an entity is first registered and whenever a sibling store is
// cross-referenced, so it must only depend on the tuple passed to NewEntityKey.
type EntityKey string

// NewEntityKey builds the key for (kind, scopeID, symbol, connectionID).
// scopeID is the account ID for account-scoped kinds and ignored otherwise;
// symbol is ignored for kinds without a symbol.
func NewEntityKey(kind EntityKind, scopeID, symbol, connectionID string) EntityKey {
	var parts []string
	switch kind {
	case KindPortfolio:
		parts = []string{"ghostfolio", "portfolio", connectionID}
	case KindAccount:
		parts = []string{"ghostfolio", "account", scopeID, connectionID}
	case KindHolding:
		parts = []string{"ghostfolio", "holding", scopeID, Slugify(symbol), connectionID}
	case KindHoldingLimitLow:
		parts = []string{"ghostfolio", "limit", string(LimitLow), scopeID, Slugify(symbol), connectionID}
	case KindHoldingLimitHigh:
		parts = []string{"ghostfolio", "limit", string(LimitHigh), scopeID, Slugify(symbol), connectionID}
	case KindWatchlist:
		parts = []string{"ghostfolio", "watchlist", Slugify(symbol), connectionID}
	case KindWatchlistLimitLow:
		parts = []string{"ghostfolio", "watchlist", "limit", string(LimitLow), Slugify(symbol), connectionID}
	case KindWatchlistLimitHigh:
		parts = []string{"ghostfolio", "watchlist", "limit", string(LimitHigh), Slugify(symbol), connectionID}
	default:
		parts = []string{"ghostfolio", string(kind), scopeID, Slugify(symbol), connectionID}
	}
	return EntityKey(strings.Join(parts, "_"))
}

// EntityRef is the tuple an EntityKey is derived from
type EntityRef struct {
	Kind         EntityKind `json:"kind"`
	ScopeID      string     `json:"scope_id,omitempty"`
	Symbol       string     `json:"symbol,omitempty"`
	ConnectionID string     `json:"connection_id"`
}

// Key returns the deterministic key for the reference.
func (r EntityRef) Key() EntityKey {
	return NewEntityKey(r.Kind, r.ScopeID, r.Symbol, r.ConnectionID)
}

// Limit returns the reference of the low or high limit paired with a holding
// or watchlist entity. ok is false for kinds that carry no limits.
func (r EntityRef) Limit(side LimitSide) (EntityRef, bool) {
	var kind EntityKind
	switch {
	case r.Kind == KindHolding && side == LimitLow:
		kind = KindHoldingLimitLow
	case r.Kind == KindHolding && side == LimitHigh:
		kind = KindHoldingLimitHigh
	case r.Kind == KindWatchlist && side == LimitLow:
		kind = KindWatchlistLimitLow
	case r.Kind == KindWatchlist && side == LimitHigh:
		kind = KindWatchlistLimitHigh
	default:
		return EntityRef{}, false
	}
	return EntityRef{Kind: kind, ScopeID: r.ScopeID, Symbol: r.Symbol, ConnectionID: r.ConnectionID}, true
}

// HoldingRef returns the reference of a holding entity.
func HoldingRef(accountID, symbol, connectionID string) EntityRef {
	return EntityRef{Kind: KindHolding, ScopeID: accountID, Symbol: symbol, ConnectionID: connectionID}
}

// WatchlistRef returns the reference of a watchlist entity.
func WatchlistRef(symbol, connectionID string) EntityRef {
	return EntityRef{Kind: KindWatchlist, ScopeID: WatchlistScope, Symbol: symbol, ConnectionID: connectionID}
}

// EntityDescriptor describes a newly discovered entity for the host platform.
type EntityDescriptor struct {
	Key        EntityKey `json:"key"`
	Ref        EntityRef `json:"ref"`
	Name       string    `json:"name"`
	LimitSide  LimitSide `json:"limit_side,omitempty"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	ViaDevice  string    `json:"via_device,omitempty"`
}

// Slugify lower-cases s, folds accents, transliterates other scripts to
// ASCII and joins alphanumeric runs with "_". An input without any
// transliterable alphanumerics yields "unknown".
func Slugify(s string) string {
	if s == "" {
		return ""
	}
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = unidecode.Unidecode(folded)

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
