package domain

// TestMode selects the client persona the tester is playing.
type TestMode string

const (
	ModeNewClient       TestMode = "new_client"
	ModeTechClient      TestMode = "tech_client"
	ModeUndecidedClient TestMode = "undecided_client"
	ModeWhatsAppClient  TestMode = "whatsapp_client"
	ModeOutOfScope      TestMode = "out_of_scope"
)

// DefaultTestMode is used when nothing has been persisted yet.
const DefaultTestMode = ModeNewClient

// TestModes lists the selectable personas in display order.
var TestModes = []Option[TestMode]{
	{ID: ModeNewClient, Label: "Cliente Nuevo"},
	{ID: ModeTechClient, Label: "Técnico / Empresa"},
	{ID: ModeUndecidedClient, Label: "Cliente Indeciso"},
	{ID: ModeWhatsAppClient, Label: "Pide WhatsApp"},
	{ID: ModeOutOfScope, Label: "Fuera de Alcance"},
}

// TestContext is the tester-entered framing of the current run.
type TestContext struct {
	TestMode      TestMode `json:"test_mode"`
	TestObjective string   `json:"test_objective"`
}

// CheckID identifies one checklist criterion.
type CheckID string

const (
	CheckInformedDerivation CheckID = "informed_derivation"
	CheckAskedZone          CheckID = "asked_zone"
	CheckNoHallucination    CheckID = "no_hallucination"
	CheckCorrectDerivation  CheckID = "correct_derivation"
	CheckProfessionalTone   CheckID = "professional_tone"
	CheckNoOverexplain      CheckID = "no_overexplain"
)

// Checklist is the fixed set of evaluation criteria.
var Checklist = []Option[CheckID]{
	{ID: CheckInformedDerivation, Label: "Informó antes de derivar"},
	{ID: CheckAskedZone, Label: "Preguntó zona antes de WhatsApp"},
	{ID: CheckNoHallucination, Label: "No inventó servicios"},
	{ID: CheckCorrectDerivation, Label: "Derivó solo cuando correspondía"},
	{ID: CheckProfessionalTone, Label: "Mantuvo tono profesional"},
	{ID: CheckNoOverexplain, Label: "No sobreexplicó"},
}

// Verdict is the overall outcome of a test run.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictObserved Verdict = "observed"
	VerdictFailed   Verdict = "failed"
)

// Verdicts lists the accepted verdicts.
var Verdicts = []Option[Verdict]{
	{ID: VerdictApproved, Label: "Aprobado"},
	{ID: VerdictObserved, Label: "Observado"},
	{ID: VerdictFailed, Label: "Fallido"},
}

// Evaluation is the tester annotation state. Score is nil until a verdict is chosen.
type Evaluation struct {
	Checks       map[CheckID]bool `json:"checks"`
	Score        *Verdict         `json:"score"`
	Observations string           `json:"observations"`
}

// NewEvaluation returns the empty evaluation.
func NewEvaluation() Evaluation {
	return Evaluation{Checks: map[CheckID]bool{}}
}

// Clone returns a deep copy.
func (e Evaluation) Clone() Evaluation {
	out := Evaluation{Checks: make(map[CheckID]bool, len(e.Checks)), Observations: e.Observations}
	for k, v := range e.Checks {
		out.Checks[k] = v
	}
	if e.Score != nil {
		v := *e.Score
		out.Score = &v
	}
	return out
}

// Option pairs a fixed identifier with its display label.
type Option[T ~string] struct {
	ID    T
	Label string
}

// Lookup finds an option by id.
func Lookup[T ~string](opts []Option[T], id string) (Option[T], bool) {
	for _, o := range opts {
		if string(o.ID) == id {
			return o, true
		}
	}
	return Option[T]{}, false
}
