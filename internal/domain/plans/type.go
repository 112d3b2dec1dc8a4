package plans

import "strings"

// EffectiveType returns the plan tier for a plan.
// Priority:
// 1. Explicit PlanType stored in DB
// 2. Fallback inference from the lookup key (legacy safety net)
func EffectiveType(p *SubscriptionPlan) string {
	if p == nil {
		return ""
	}

	t := strings.ToLower(strings.TrimSpace(p.PlanType))
	switch t {
	case TypeBasic, TypePro:
		return t
	}

	return inferTypeFromLookupKey(p.LookupKey)
}

// inferTypeFromLookupKey exists only for rows synced before plan_type was
// stored. Lookup keys follow "<period>-<type>" (e.g. "monthly-pro").
func inferTypeFromLookupKey(key string) string {
	if strings.HasSuffix(strings.ToLower(key), "-"+TypePro) {
		return TypePro
	}
	return TypeBasic
}
