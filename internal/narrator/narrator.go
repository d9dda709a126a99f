package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	SourceLLM      = "llm"
	SourceTemplate = "template"
)

const systemPrompt = "You write short, friendly status updates for a medical clinic's appointment system. " +
	"Summarise the facts you are given in at most three sentences addressed to the patient. " +
	"Do not invent times, names or advice that are not in the facts."

// Summary is what a workflow did, in display form.
type Summary struct {
	Workflow     string
	Outcome      string
	PatientName  string
	DoctorName   string
	Date         string
	Alternatives []string
	Notes        string
}

type Narrative struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type Narrator struct {
	client  LLMClient
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a narrator. A nil client always renders the template.
func New(client LLMClient, timeout time.Duration, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Narrator{client: client, timeout: timeout, logger: logger}
}

// Narrate never fails: provider errors and empty replies fall back to the
// template.
func (n *Narrator) Narrate(ctx context.Context, s Summary) Narrative {
	if n == nil || n.client == nil {
		return Narrative{Text: Template(s), Source: SourceTemplate}
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	resp, err := n.client.Complete(ctx, LLMRequest{
		System:      []string{systemPrompt},
		Messages:    []ChatMessage{{Role: RoleUser, Content: facts(s)}},
		MaxTokens:   200,
		Temperature: 0.3,
	})
	if err != nil {
		n.logger.Warn("narration failed, using template", "workflow", s.Workflow, "error", err)
		return Narrative{Text: Template(s), Source: SourceTemplate}
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Narrative{Text: Template(s), Source: SourceTemplate}
	}
	return Narrative{Text: resp.Text, Source: SourceLLM}
}

func facts(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "workflow: %s\noutcome: %s\n", s.Workflow, s.Outcome)
	if s.PatientName != "" {
		fmt.Fprintf(&b, "patient: %s\n", s.PatientName)
	}
	if s.DoctorName != "" {
		fmt.Fprintf(&b, "doctor: Dr. %s\n", s.DoctorName)
	}
	if s.Date != "" {
		fmt.Fprintf(&b, "appointment time: %s\n", s.Date)
	}
	if len(s.Alternatives) > 0 {
		fmt.Fprintf(&b, "alternative times: %s\n", strings.Join(s.Alternatives, "; "))
	}
	if s.Notes != "" {
		fmt.Fprintf(&b, "doctor notes: %s\n", s.Notes)
	}
	return b.String()
}

// Template renders a deterministic narrative for s.
func Template(s Summary) string {
	doctor := "your doctor"
	if s.DoctorName != "" {
		doctor = "Dr. " + s.DoctorName
	}

	var text string
	switch s.Outcome {
	case "scheduled":
		text = fmt.Sprintf("Your appointment with %s is scheduled for %s and is awaiting the doctor's confirmation.", doctor, s.Date)
	case "conflict":
		text = fmt.Sprintf("The requested time is not available with %s.", doctor)
		if len(s.Alternatives) > 0 {
			text += " Available alternatives: " + strings.Join(s.Alternatives, "; ") + "."
		} else {
			text += " No free slots were found in the next week."
		}
	case "confirmed":
		text = fmt.Sprintf("%s confirmed your appointment on %s.", capitalise(doctor), s.Date)
	case "rejected":
		text = fmt.Sprintf("%s could not accommodate your appointment request. Please book another time.", capitalise(doctor))
	default:
		text = "Appointment status update."
	}
	if s.Notes != "" {
		text += " Notes: " + s.Notes
	}
	return text
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
