package deliverable

import (
	"encoding/json"
	"fmt"
)

// Document is the typed shape of a generated deliverable. Exactly one
// implementation exists per Type.
type Document interface {
	Type() Type
	DocumentTitle() string
}

type ICPDocumentFields struct {
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	BuyerPersona struct {
		Title        string   `json:"title"`
		Role         string   `json:"role"`
		Seniority    string   `json:"seniority"`
		DayInLife    string   `json:"dayInLife"`
		Goals        []string `json:"goals"`
		Frustrations []string `json:"frustrations"`
	} `json:"buyerPersona"`
	Firmographics struct {
		CompanySize string   `json:"companySize"`
		Industry    []string `json:"industry"`
		Revenue     string   `json:"revenue"`
		Geography   []string `json:"geography"`
		TechStack   []string `json:"techStack"`
	} `json:"firmographics"`
	PainPoints []struct {
		Pain            string `json:"pain"`
		Severity        string `json:"severity"`
		CurrentSolution string `json:"currentSolution"`
	} `json:"painPoints"`
	BuyingTriggers []string `json:"buyingTriggers"`
	Channels       []struct {
		Channel   string `json:"channel"`
		Priority  string `json:"priority"`
		Rationale string `json:"rationale"`
	} `json:"channels"`
	QualificationCriteria []string `json:"qualificationCriteria"`
}

type OutreachSequenceFields struct {
	Title     string `json:"title"`
	TargetICP string `json:"targetICP"`
	Sequence  []struct {
		Step    int      `json:"step"`
		Channel string   `json:"channel"`
		Timing  string   `json:"timing"`
		Subject *string  `json:"subject"`
		Body    string   `json:"body"`
		Goal    string   `json:"goal"`
		Tips    []string `json:"tips"`
	} `json:"sequence"`
}

type BattleCardFields struct {
	Title             string `json:"title"`
	Competitor        string `json:"competitor"`
	Overview          string `json:"overview"`
	PositioningMatrix []struct {
		Dimension string `json:"dimension"`
		Us        string `json:"us"`
		Them      string `json:"them"`
		Verdict   string `json:"verdict"`
	} `json:"positioningMatrix"`
	ObjectionHandling []struct {
		Objection  string `json:"objection"`
		Response   string `json:"response"`
		ProofPoint string `json:"proofPoint"`
	} `json:"objectionHandling"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	WinStrategy string   `json:"winStrategy"`
	Sources     []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"sources"`
}

type GTMPlaybookFields struct {
	Title          string `json:"title"`
	CompanyContext string `json:"companyContext"`
	ICP            struct {
		Summary  string   `json:"summary"`
		Segments []string `json:"segments"`
	} `json:"icp"`
	Positioning struct {
		Statement       string   `json:"statement"`
		Differentiators []string `json:"differentiators"`
	} `json:"positioning"`
	Channels []struct {
		Channel     string `json:"channel"`
		Priority    string `json:"priority"`
		Budget      string `json:"budget"`
		ExpectedCAC string `json:"expectedCAC"`
	} `json:"channels"`
	Messaging []struct {
		Audience   string   `json:"audience"`
		Headline   string   `json:"headline"`
		ValueProps []string `json:"valueProps"`
	} `json:"messaging"`
	Metrics []struct {
		Metric          string `json:"metric"`
		Target          string `json:"target"`
		CurrentBaseline string `json:"currentBaseline"`
	} `json:"metrics"`
	NinetyDayPlan []struct {
		Phase           string   `json:"phase"`
		Weeks           string   `json:"weeks"`
		Objectives      []string `json:"objectives"`
		KeyActions      []string `json:"keyActions"`
		SuccessCriteria string   `json:"successCriteria"`
	} `json:"ninetyDayPlan"`
}

type SalesScriptFields struct {
	Title              string `json:"title"`
	TargetPersona      string `json:"targetPersona"`
	Opening            string `json:"opening"`
	DiscoveryQuestions []struct {
		Question string `json:"question"`
		Purpose  string `json:"purpose"`
	} `json:"discoveryQuestions"`
	Pitch      string `json:"pitch"`
	Objections []struct {
		Objection string `json:"objection"`
		Response  string `json:"response"`
	} `json:"objections"`
	Closing   string   `json:"closing"`
	NextSteps []string `json:"nextSteps"`
}

type BrandMessagingFields struct {
	Title                string `json:"title"`
	PositioningStatement string `json:"positioningStatement"`
	Tagline              string `json:"tagline"`
	ElevatorPitch        string `json:"elevatorPitch"`
	ValuePillars         []struct {
		Pillar      string   `json:"pillar"`
		Message     string   `json:"message"`
		ProofPoints []string `json:"proofPoints"`
	} `json:"valuePillars"`
	VoiceAndTone struct {
		Attributes []string `json:"attributes"`
		Avoid      []string `json:"avoid"`
	} `json:"voiceAndTone"`
	AudienceMessages []struct {
		Audience string `json:"audience"`
		Message  string `json:"message"`
	} `json:"audienceMessages"`
}

// FinancialSummaryFields keeps figures as raw JSON values: models emit them
// as numbers or strings interchangeably.
type FinancialSummaryFields struct {
	Title    string `json:"title"`
	Snapshot struct {
		MRR          json.RawMessage `json:"mrr"`
		ARR          json.RawMessage `json:"arr"`
		GrowthRate   json.RawMessage `json:"growthRate"`
		BurnRate     json.RawMessage `json:"burnRate"`
		RunwayMonths json.RawMessage `json:"runwayMonths"`
		CashOnHand   json.RawMessage `json:"cashOnHand"`
	} `json:"snapshot"`
	UnitEconomics    map[string]json.RawMessage `json:"unitEconomics"`
	RevenueBreakdown []map[string]json.RawMessage `json:"revenueBreakdown"`
	Projections      []map[string]json.RawMessage `json:"projections"`
	Risks            []string                     `json:"risks"`
	FundraisingAsk   string                       `json:"fundraisingAsk"`
}

type LegalChecklistFields struct {
	Title        string `json:"title"`
	Jurisdiction string `json:"jurisdiction"`
	Stage        string `json:"stage"`
	Items        []struct {
		Area     string `json:"area"`
		Task     string `json:"task"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
		Notes    string `json:"notes"`
	} `json:"items"`
	RedFlags             []string `json:"redFlags"`
	RecommendedDocuments []string `json:"recommendedDocuments"`
}

type HiringPlanFields struct {
	Title       string   `json:"title"`
	CurrentTeam []string `json:"currentTeam"`
	Roles       []struct {
		Role                string   `json:"role"`
		Priority            string   `json:"priority"`
		Quarter             string   `json:"quarter"`
		SalaryRange         string   `json:"salaryRange"`
		Rationale           string   `json:"rationale"`
		KeyResponsibilities []string `json:"keyResponsibilities"`
	} `json:"roles"`
	TotalBudget      string   `json:"totalBudget"`
	SourcingChannels []string `json:"sourcingChannels"`
	InterviewProcess []string `json:"interviewProcess"`
}

type PMFSurveyFields struct {
	Title             string `json:"title"`
	TargetRespondents string `json:"targetRespondents"`
	SeanEllisQuestion string `json:"seanEllisQuestion"`
	Questions         []struct {
		Question string   `json:"question"`
		Type     string   `json:"type"`
		Options  []string `json:"options"`
		Purpose  string   `json:"purpose"`
	} `json:"questions"`
	InterviewGuide   []string `json:"interviewGuide"`
	SuccessThreshold string   `json:"successThreshold"`
	AnalysisPlan     string   `json:"analysisPlan"`
}

type CompetitiveMatrixFields struct {
	Title          string `json:"title"`
	MarketOverview string `json:"marketOverview"`
	Competitors    []struct {
		Name        string   `json:"name"`
		Positioning string   `json:"positioning"`
		Pricing     string   `json:"pricing"`
		Strengths   []string `json:"strengths"`
		Weaknesses  []string `json:"weaknesses"`
	} `json:"competitors"`
	Criteria []string `json:"criteria"`
	Matrix   []struct {
		Criterion string             `json:"criterion"`
		Scores    map[string]float64 `json:"scores"`
	} `json:"matrix"`
	WhiteSpace      string   `json:"whiteSpace"`
	Differentiation []string `json:"differentiation"`
}

type StrategicPlanFields struct {
	Title        string `json:"title"`
	Vision       string `json:"vision"`
	CurrentState string `json:"currentState"`
	Objectives   []struct {
		Objective  string   `json:"objective"`
		KeyResults []string `json:"keyResults"`
		Owner      string   `json:"owner"`
		Quarter    string   `json:"quarter"`
	} `json:"objectives"`
	Initiatives []struct {
		Initiative string `json:"initiative"`
		Impact     string `json:"impact"`
		Effort     string `json:"effort"`
		Timeline   string `json:"timeline"`
	} `json:"initiatives"`
	Risks []struct {
		Risk       string `json:"risk"`
		Mitigation string `json:"mitigation"`
	} `json:"risks"`
	Milestones []string `json:"milestones"`
}

func (*ICPDocumentFields) Type() Type       { return ICPDocument }
func (*OutreachSequenceFields) Type() Type  { return OutreachSequence }
func (*BattleCardFields) Type() Type        { return BattleCard }
func (*GTMPlaybookFields) Type() Type       { return GTMPlaybook }
func (*SalesScriptFields) Type() Type       { return SalesScript }
func (*BrandMessagingFields) Type() Type    { return BrandMessaging }
func (*FinancialSummaryFields) Type() Type  { return FinancialSummary }
func (*LegalChecklistFields) Type() Type    { return LegalChecklist }
func (*HiringPlanFields) Type() Type        { return HiringPlan }
func (*PMFSurveyFields) Type() Type         { return PMFSurvey }
func (*CompetitiveMatrixFields) Type() Type { return CompetitiveMatrix }
func (*StrategicPlanFields) Type() Type     { return StrategicPlan }

func (d *ICPDocumentFields) DocumentTitle() string       { return d.Title }
func (d *OutreachSequenceFields) DocumentTitle() string  { return d.Title }
func (d *BattleCardFields) DocumentTitle() string        { return d.Title }
func (d *GTMPlaybookFields) DocumentTitle() string       { return d.Title }
func (d *SalesScriptFields) DocumentTitle() string       { return d.Title }
func (d *BrandMessagingFields) DocumentTitle() string    { return d.Title }
func (d *FinancialSummaryFields) DocumentTitle() string  { return d.Title }
func (d *LegalChecklistFields) DocumentTitle() string    { return d.Title }
func (d *HiringPlanFields) DocumentTitle() string        { return d.Title }
func (d *PMFSurveyFields) DocumentTitle() string         { return d.Title }
func (d *CompetitiveMatrixFields) DocumentTitle() string { return d.Title }
func (d *StrategicPlanFields) DocumentTitle() string     { return d.Title }

func newDocument(t Type) (Document, bool) {
	switch t {
	case ICPDocument:
		return &ICPDocumentFields{}, true
	case OutreachSequence:
		return &OutreachSequenceFields{}, true
	case BattleCard:
		return &BattleCardFields{}, true
	case GTMPlaybook:
		return &GTMPlaybookFields{}, true
	case SalesScript:
		return &SalesScriptFields{}, true
	case BrandMessaging:
		return &BrandMessagingFields{}, true
	case FinancialSummary:
		return &FinancialSummaryFields{}, true
	case LegalChecklist:
		return &LegalChecklistFields{}, true
	case HiringPlan:
		return &HiringPlanFields{}, true
	case PMFSurvey:
		return &PMFSurveyFields{}, true
	case CompetitiveMatrix:
		return &CompetitiveMatrixFields{}, true
	case StrategicPlan:
		return &StrategicPlanFields{}, true
	default:
		return nil, false
	}
}

// Decode maps generated fields onto the typed shape of t. A non-nil error
// means the generated document does not match the requested schema.
func Decode(t Type, fields map[string]any) (Document, error) {
	doc, ok := newDocument(t)
	if !ok {
		return nil, fmt.Errorf("unknown deliverable type %q", t)
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return doc, nil
}
