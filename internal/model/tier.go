package model

import (
	"fmt"
	"strings"
)

type Tier string

const (
	TierFree     Tier = "free"
	TierPremium  Tier = "premium"
	TierPlatinum Tier = "platinum"
)

var TierMap = map[Tier]bool{
	TierFree:     true,
	TierPremium:  true,
	TierPlatinum: true,
}

// ParseTier - пустое или неизвестное значение трактуется как free
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !TierMap[t] {
		return TierFree
	}
	return t
}

// CheckEntitlement verifies that the tier is allowed to use every option set in opts.
func CheckEntitlement(tier Tier, opts *ProcessingOptions) error {
	switch tier {
	case TierPlatinum:
		return nil
	case TierPremium:
		if opts.CustomSize != nil {
			return fmt.Errorf("%w: custom size requires platinum", ErrTierForbidden)
		}
		if opts.OutputSettings != nil {
			return fmt.Errorf("%w: output settings require platinum", ErrTierForbidden)
		}
		return nil
	default:
		if opts.CustomSize != nil {
			return fmt.Errorf("%w: custom size requires platinum", ErrTierForbidden)
		}
		if opts.OutputSettings != nil {
			return fmt.Errorf("%w: output settings require platinum", ErrTierForbidden)
		}
		if opts.WatermarkSettings != nil {
			return fmt.Errorf("%w: watermark requires premium", ErrTierForbidden)
		}
		if len(opts.EffectiveTemplates()) > 1 {
			return fmt.Errorf("%w: multiple templates require premium", ErrTierForbidden)
		}
		return nil
	}
}
