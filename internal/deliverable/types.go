package deliverable

import "strings"

// Type is one of the fixed deliverable kinds an advisor conversation can be
// turned into.
type Type string

const (
	ICPDocument       Type = "icp_document"
	OutreachSequence  Type = "outreach_sequence"
	BattleCard        Type = "battle_card"
	GTMPlaybook       Type = "gtm_playbook"
	SalesScript       Type = "sales_script"
	BrandMessaging    Type = "brand_messaging"
	FinancialSummary  Type = "financial_summary"
	LegalChecklist    Type = "legal_checklist"
	HiringPlan        Type = "hiring_plan"
	PMFSurvey         Type = "pmf_survey"
	CompetitiveMatrix Type = "competitive_matrix"
	StrategicPlan     Type = "strategic_plan"
)

// DefaultType is used for template selection when a type has no template of its own.
const DefaultType = ICPDocument

var all = [...]Type{
	ICPDocument,
	OutreachSequence,
	BattleCard,
	GTMPlaybook,
	SalesScript,
	BrandMessaging,
	FinancialSummary,
	LegalChecklist,
	HiringPlan,
	PMFSurvey,
	CompetitiveMatrix,
	StrategicPlan,
}

// All returns every supported type in catalogue order.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all[:])
	return out
}

// Parse trims raw and reports whether it names a supported type exactly.
// Matching is case-sensitive.
func Parse(raw string) (Type, bool) {
	t := Type(strings.TrimSpace(raw))
	return t, t.Valid()
}

func (t Type) Valid() bool {
	_, ok := Lookup(t)
	return ok
}

func (t Type) String() string { return string(t) }

// DefaultTitle is the title used when the generated document has none.
func (t Type) DefaultTitle() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// Dimension is a readiness-score dimension evidence is credited to.
type Dimension string

const (
	DimensionGoToMarket Dimension = "goToMarket"
	DimensionTraction   Dimension = "traction"
	DimensionMarket     Dimension = "market"
	DimensionFinancial  Dimension = "financial"
	DimensionTeam       Dimension = "team"
	DimensionProduct    Dimension = "product"
)

// Score columns of the readiness history table.
const (
	ColumnMarket    = "market_score"
	ColumnProduct   = "product_score"
	ColumnGTM       = "gtm_score"
	ColumnFinancial = "financial_score"
	ColumnTeam      = "team_score"
	ColumnTraction  = "traction_score"
)

// Boost is the one-time score nudge applied when a deliverable is generated.
type Boost struct {
	Column string
	Label  string
	Points int
}

// Profile carries every fixed per-type attribute.
type Profile struct {
	// Label is the human-readable name used in evidence titles.
	Label string
	// ContextLabel names the deliverable inside the fact-extraction prompt.
	ContextLabel   string
	Dimension      Dimension
	EvidencePoints int
	Boost          Boost
}

// Lookup returns the fixed profile of t. Unknown types report false.
func Lookup(t Type) (Profile, bool) {
	switch t {
	case ICPDocument:
		return Profile{
			Label:          "ICP Document",
			ContextLabel:   "ICP document (ideal customer profile)",
			Dimension:      DimensionGoToMarket,
			EvidencePoints: 5,
			Boost:          Boost{Column: ColumnGTM, Label: "Go-to-Market", Points: 5},
		}, true
	case OutreachSequence:
		return Profile{
			Label:          "Outreach Sequence",
			ContextLabel:   "cold outreach sequence",
			Dimension:      DimensionTraction,
			EvidencePoints: 4,
			Boost:          Boost{Column: ColumnTraction, Label: "Traction", Points: 4},
		}, true
	case BattleCard:
		return Profile{
			Label:          "Battle Card",
			ContextLabel:   "competitor battle card",
			Dimension:      DimensionMarket,
			EvidencePoints: 4,
			Boost:          Boost{Column: ColumnMarket, Label: "Market", Points: 4},
		}, true
	case GTMPlaybook:
		return Profile{
			Label:          "GTM Playbook",
			ContextLabel:   "GTM playbook",
			Dimension:      DimensionGoToMarket,
			EvidencePoints: 6,
			Boost:          Boost{Column: ColumnGTM, Label: "Go-to-Market", Points: 6},
		}, true
	case SalesScript:
		return Profile{
			Label:          "Sales Script",
			ContextLabel:   "sales call script",
			Dimension:      DimensionTraction,
			EvidencePoints: 4,
			Boost:          Boost{Column: ColumnTraction, Label: "Traction", Points: 4},
		}, true
	case BrandMessaging:
		return Profile{
			Label:          "Brand Messaging",
			ContextLabel:   "brand messaging framework",
			Dimension:      DimensionGoToMarket,
			EvidencePoints: 4,
			Boost:          Boost{Column: ColumnGTM, Label: "Go-to-Market", Points: 4},
		}, true
	case FinancialSummary:
		return Profile{
			Label:          "Financial Summary",
			ContextLabel:   "financial summary",
			Dimension:      DimensionFinancial,
			EvidencePoints: 6,
			Boost:          Boost{Column: ColumnFinancial, Label: "Financial", Points: 6},
		}, true
	case LegalChecklist:
		return Profile{
			Label:          "Legal Checklist",
			ContextLabel:   "legal checklist",
			Dimension:      DimensionFinancial,
			EvidencePoints: 3,
			Boost:          Boost{Column: ColumnFinancial, Label: "Financial", Points: 3},
		}, true
	case HiringPlan:
		return Profile{
			Label:          "Hiring Plan",
			ContextLabel:   "hiring plan",
			Dimension:      DimensionTeam,
			EvidencePoints: 5,
			Boost:          Boost{Column: ColumnTeam, Label: "Team", Points: 5},
		}, true
	case PMFSurvey:
		return Profile{
			Label:          "PMF Survey",
			ContextLabel:   "PMF research kit",
			Dimension:      DimensionProduct,
			EvidencePoints: 5,
			Boost:          Boost{Column: ColumnProduct, Label: "Product", Points: 5},
		}, true
	case CompetitiveMatrix:
		return Profile{
			Label:          "Competitive Analysis",
			ContextLabel:   "competitive analysis",
			Dimension:      DimensionMarket,
			EvidencePoints: 5,
			Boost:          Boost{Column: ColumnMarket, Label: "Market", Points: 5},
		}, true
	case StrategicPlan:
		return Profile{
			Label:          "Strategic Plan",
			ContextLabel:   "strategic plan",
			Dimension:      DimensionProduct,
			EvidencePoints: 4,
			Boost:          Boost{Column: ColumnProduct, Label: "Product", Points: 4},
		}, true
	default:
		return Profile{}, false
	}
}

// ContextLabel returns the prompt label for t, or the raw type when unknown.
func ContextLabel(t Type) string {
	if p, ok := Lookup(t); ok {
		return p.ContextLabel
	}
	return string(t)
}
