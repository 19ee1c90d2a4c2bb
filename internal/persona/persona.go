// Package persona holds the simulated buyer profile, the catalog of
// extractable question topics, and the pure predicates that classify
// agent messages during a probe run.
package persona

import (
	"fmt"
	"strings"
)

// Persona is an immutable simulated-buyer profile. It is read-only
// context for reply generation; construct one per probe run and never
// mutate it afterwards.
type Persona struct {
	Motivation           string
	TargetBuyDate        string
	ComfortWithProcess   string
	MainStress           string
	AnnualIncomeUSD      int
	DownPaymentAvailable int
	StateFocus           string
	AreaFocus            string
	PurchaseBudgetMax    int
	PropertyType         string
	BedroomsMin          int
	BathroomsMin         int
	MonthlyPaymentTarget int
	ConditionPreference  string
	ProximityRequired    string
	MaxDriveTime         string
	QuietPreference      string
	SafetyImportance     string
	OutdoorSpace         string
	DeadlineType         string
}

// Default returns the fixed buyer persona the probe plays.
func Default() Persona {
	return Persona{
		Motivation:           "i am Sam - i need to buy for stability, family with kids",
		TargetBuyDate:        "Feb 2027 (flexible)",
		ComfortWithProcess:   "7/10",
		MainStress:           "getting approved",
		AnnualIncomeUSD:      120000,
		DownPaymentAvailable: 200000,
		StateFocus:           "New Jersey",
		AreaFocus:            "Wayne (ok nearby: Pequannock/Riverdale if needed)",
		PurchaseBudgetMax:    200000,
		PropertyType:         "condo",
		BedroomsMin:          3,
		BathroomsMin:         2,
		MonthlyPaymentTarget: 3000,
		ConditionPreference:  "light cosmetic updates ok",
		ProximityRequired:    "Wayne Hills High School and Pompton Lakes",
		MaxDriveTime:         "30 minutes",
		QuietPreference:      "quiet",
		SafetyImportance:     "10/10",
		OutdoorSpace:         "optional; small patio nice-to-have",
		DeadlineType:         "flexible",
	}
}

// PromptLines renders the persona as ordered "key: value" lines for
// inclusion in a reasoning prompt.
func (p Persona) PromptLines() []string {
	return []string{
		"motivation: " + p.Motivation,
		"target_buy_date: " + p.TargetBuyDate,
		"comfort_with_process: " + p.ComfortWithProcess,
		"main_stress: " + p.MainStress,
		fmt.Sprintf("annual_income_usd: %d", p.AnnualIncomeUSD),
		fmt.Sprintf("down_payment_available: %d", p.DownPaymentAvailable),
		"state_focus: " + p.StateFocus,
		"area_focus: " + p.AreaFocus,
		fmt.Sprintf("purchase_budget_max: %d", p.PurchaseBudgetMax),
		"property_type: " + p.PropertyType,
		fmt.Sprintf("bedrooms_min: %d", p.BedroomsMin),
		fmt.Sprintf("bathrooms_min: %d", p.BathroomsMin),
		fmt.Sprintf("monthly_payment_target: %d", p.MonthlyPaymentTarget),
		"condition_preference: " + p.ConditionPreference,
		"proximity_requirements: " + p.ProximityRequired,
		"max_drive_time: " + p.MaxDriveTime,
		"quiet_environment_preference: " + p.QuietPreference,
		"safety_importance: " + p.SafetyImportance,
		"outdoor_space_required: " + p.OutdoorSpace,
		"deadline_type: " + p.DeadlineType,
	}
}

// String renders the persona for prompt embedding.
func (p Persona) String() string {
	return strings.Join(p.PromptLines(), "\n")
}

// FieldCatalog is the fixed ordered set of extractable question topics.
// Reconciliation uses it to judge whether answer extraction was expected
// for a turn.
type FieldCatalog struct {
	fields []string
}

// NewFieldCatalog builds a catalog from an ordered field list.
func NewFieldCatalog(fields []string) FieldCatalog {
	out := make([]string, len(fields))
	copy(out, fields)
	return FieldCatalog{fields: out}
}

// Fields returns a copy of the ordered field names.
func (c FieldCatalog) Fields() []string {
	out := make([]string, len(c.fields))
	copy(out, c.fields)
	return out
}

// Len returns the number of catalog fields.
func (c FieldCatalog) Len() int { return len(c.fields) }

// String renders the catalog as a comma-separated list for prompts.
func (c FieldCatalog) String() string {
	return strings.Join(c.fields, ",")
}

// DefaultCatalog returns the production field catalog of the real-estate
// agent's extraction pipeline.
func DefaultCatalog() FieldCatalog {
	return NewFieldCatalog([]string{
		"calculator_offered",
		"life_trigger_type",
		"motivation_mode",
		"pre_approval_status",
		"readiness_state",
		"sense_of_control",
		"trigger_recency",
		"decision_confidence",
		"self_trust_level",
		"desire_for_stability",
		"future_pull_clarity",
		"decision_type",
		"primary_driver",
		"initial_interest",
		"ownership_identity_alignment",
		"deadline_type",
		"urgency_level",
		"annual_income_usd",
		"avoid",
		"cost_of_living_priority",
		"metro_preference",
		"proximity_requirements",
		"state_focus",
		"bathrooms_min",
		"bedrooms_max",
		"bedrooms_min",
		"down_payment_available",
		"financing_type",
		"flexibilities",
		"monthly_payment_target",
		"non_negotiables",
		"outdoor_space_required",
		"property_type",
		"purchase_price_target",
	})
}
