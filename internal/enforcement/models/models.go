package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BanTier selects ban length from the strike count.
type BanTier string

const (
	TierStandard BanTier = "STANDARD"
	TierExtended BanTier = "EXTENDED"
)

const (
	standardMarker = "auditor_confirmed_ban"
	extendedMarker = "auditor_extended_ban"
)

func (t BanTier) marker() string {
	if t == TierExtended {
		return extendedMarker
	}
	return standardMarker
}

// TierPolicy is the strike to ban-length step function. Ban length never
// decreases as strikes grow.
type TierPolicy struct {
	StandardTTL     time.Duration
	ExtendedTTL     time.Duration
	ExtendedStrikes int64
}

// DefaultTierPolicy: strikes 1-2 ban for an hour, strike 3 and above for a day.
var DefaultTierPolicy = TierPolicy{
	StandardTTL:     time.Hour,
	ExtendedTTL:     24 * time.Hour,
	ExtendedStrikes: 3,
}

func (p TierPolicy) For(strikes int64) (BanTier, time.Duration) {
	if strikes >= p.ExtendedStrikes {
		return TierExtended, p.ExtendedTTL
	}
	return TierStandard, p.StandardTTL
}

// BanValue renders the blacklist value, e.g. "auditor_confirmed_ban|strike_1|reason".
func BanValue(tier BanTier, strikes int64, reason string) string {
	return fmt.Sprintf("%s|strike_%d|%s", tier.marker(), strikes, reason)
}

// Ban is a parsed blacklist value written by this service.
type Ban struct {
	Tier    BanTier
	Strikes int64
	Reason  string
}

// ParseBanValue reverses BanValue. Values written by the upstream detector use
// other formats and report ok=false.
func ParseBanValue(v string) (Ban, bool) {
	parts := strings.SplitN(v, "|", 3)
	if len(parts) != 3 {
		return Ban{}, false
	}
	var tier BanTier
	switch parts[0] {
	case standardMarker:
		tier = TierStandard
	case extendedMarker:
		tier = TierExtended
	default:
		return Ban{}, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "strike_"), 10, 64)
	if err != nil || !strings.HasPrefix(parts[1], "strike_") {
		return Ban{}, false
	}
	return Ban{Tier: tier, Strikes: n, Reason: parts[2]}, true
}

// BlockOutcome describes a confirmed ban write.
type BlockOutcome struct {
	UserID  string
	Strikes int64
	Tier    BanTier
	TTL     time.Duration
	Key     string
	Value   string
}

// PardonOutcome describes a pardon. Existed is false when the ban had already
// expired or never existed; the pardon still succeeds.
type PardonOutcome struct {
	UserID   string
	Key      string
	Existed  bool
	Notified bool
}

// BanStatus is the operator view of a user's enforcement state.
type BanStatus struct {
	UserID  string
	Banned  bool
	Value   string
	TTL     time.Duration
	Strikes int64
	Parsed  *Ban
}
