package models

// Plan is the feature tier an account is entitled to.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanExcellence Plan = "excellence"
)

// Feature is one gated product area.
type Feature string

const (
	FeatureCalendar  Feature = "calendar"
	FeatureTasks     Feature = "tasks"
	FeatureReferrals Feature = "referrals"
	FeatureStats     Feature = "stats"
	FeatureInvoices  Feature = "invoices"
)

// AllFeatures lists the gated features in a stable order.
var AllFeatures = []Feature{
	FeatureCalendar,
	FeatureTasks,
	FeatureReferrals,
	FeatureStats,
	FeatureInvoices,
}

// FeatureSet holds one boolean per gated feature.
type FeatureSet struct {
	Calendar  bool `json:"calendar"`
	Tasks     bool `json:"tasks"`
	Referrals bool `json:"referrals"`
	Stats     bool `json:"stats"`
	Invoices  bool `json:"invoices"`
}

// Has returns the flag for f; unknown features are never granted.
func (fs FeatureSet) Has(f Feature) bool {
	switch f {
	case FeatureCalendar:
		return fs.Calendar
	case FeatureTasks:
		return fs.Tasks
	case FeatureReferrals:
		return fs.Referrals
	case FeatureStats:
		return fs.Stats
	case FeatureInvoices:
		return fs.Invoices
	default:
		return false
	}
}

// Entitlement is the resolved plan and feature grants for an account.
// It is derived on demand and never persisted.
type Entitlement struct {
	AccountID          string     `json:"accountId"`
	Plan               Plan       `json:"plan"`
	Features           FeatureSet `json:"features"`
	IsTrialActive      bool       `json:"isTrialActive"`
	TrialDaysRemaining *int       `json:"trialDaysRemaining,omitempty"`
	IsAdmin            bool       `json:"isAdmin"`
}

// AdminEntitlement is the fixed all-access entitlement granted to admins.
func AdminEntitlement(accountID string) *Entitlement {
	return &Entitlement{
		AccountID: accountID,
		Plan:      PlanExcellence,
		Features: FeatureSet{
			Calendar:  true,
			Tasks:     true,
			Referrals: true,
			Stats:     true,
			Invoices:  true,
		},
		IsAdmin: true,
	}
}
