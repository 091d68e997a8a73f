package models

import "time"

// Tier is the entitlement tier of a community.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// LicenseStatus is the validity of a community's license.
type LicenseStatus string

const (
	LicenseStatusActive     LicenseStatus = "active"
	LicenseStatusExpired    LicenseStatus = "expired"
	LicenseStatusInvalid    LicenseStatus = "invalid"
	LicenseStatusUnlicensed LicenseStatus = "unlicensed"
)

// LicenseVerdict is the cached entitlement decision for one community.
type LicenseVerdict struct {
	CommunityID   string        `json:"community_id"`
	Tier          Tier          `json:"tier"`
	Status        LicenseStatus `json:"status"`
	WorkflowLimit *int          `json:"workflow_limit"` // nil means unlimited
	Features      []string      `json:"features,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	FetchedAt     time.Time     `json:"fetched_at"`
}

// IsActive reports whether the verdict admits work.
func (v *LicenseVerdict) IsActive() bool {
	return v.Status == LicenseStatusActive
}

// StillValid reports whether the license itself has not expired at now.
func (v *LicenseVerdict) StillValid(now time.Time) bool {
	if !v.IsActive() {
		return false
	}

	return v.ExpiresAt == nil || v.ExpiresAt.After(now)
}
