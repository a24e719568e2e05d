package eligible

import (
	"fmt"
	"strings"
)

// Strategy selects how candidates are gathered across segments.
type Strategy string

const (
	// StrategyTiered queries child segments, then their parents, then the
	// untargeted bucket, stopping at the first tier with an eligible ad.
	StrategyTiered Strategy = "tiered"
	// StrategyFlat queries the union of the user's segments and the
	// untargeted bucket in one pass, with no parent fallback.
	StrategyFlat Strategy = "flat"
)

// ParseStrategy accepts "tiered"/"v1" and "flat"/"v2". Empty means tiered.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tiered", "v1":
		return StrategyTiered, nil
	case "flat", "v2":
		return StrategyFlat, nil
	}
	return "", fmt.Errorf("unknown eligibility strategy %q", s)
}

// Tier names the segment bucket that produced a result.
type Tier string

const (
	TierNone       Tier = ""
	TierChild      Tier = "child"
	TierParent     Tier = "parent"
	TierUntargeted Tier = "untargeted"
	TierFlat       Tier = "flat"
)

func (t Tier) String() string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}
