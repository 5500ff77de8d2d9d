package coaching

import (
	"strings"
	"testing"

	"github.com/thelaunchpad/coach-worker/internal/models"
)

func TestBuildContext_KnowledgeSections(t *testing.T) {
	user := activeUser()
	notes := "Too long, cut it down"
	topics := "pricing"
	stage := models.StageEarlyValidation
	kb := Knowledge{
		ModelResponses: []models.ModelResponse{
			{
				Scenario:      "Member is scared to charge",
				UserExample:   "I feel bad asking for money",
				IdealResponse: "Charging is how you find out if the problem is real.",
			},
			{
				Scenario:      "Member keeps adding features",
				UserExample:   "I added three integrations this week",
				IdealResponse: "Stop building. Go sell what you have.",
			},
		},
		Corrections: []models.CorrectedResponse{
			{
				AIResponse:        "Here are five frameworks to consider...",
				CorrectedResponse: "Pick a price and test it this week.",
				CorrectionNotes:   &notes,
			},
			{
				AIResponse:        "Great question!",
				CorrectedResponse: "What did the customer actually say?",
			},
		},
		Resources: []models.Resource{
			{Name: "Lecture 3", Description: "Pricing your first offer", Topics: &topics},
			{Name: "Launch System Ch. 2", Description: "Finding your first customer", Stage: &stage},
		},
	}

	out := BuildContext(user, nil, kb, "thinking about raising my price", MessageTypeCheckinResponse)

	for _, want := range []string{
		"## Available Resources (reference by name only — do NOT include links or URLs)",
		"- Lecture 3: Pricing your first offer (Topics: pricing)",
		"- Launch System Ch. 2: Finding your first customer",
		"## Model Responses (examples of your ideal coaching style)",
		"Scenario: Member is scared to charge\nUser Example: I feel bad asking for money\nIdeal Response: Charging is how you find out if the problem is real.",
		"## Corrected Responses (learn from these)",
		"AI originally wrote: Here are five frameworks to consider...\nWes corrected it to: Pick a price and test it this week.\nBecause: Too long, cut it down",
		"Because: N/A",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected context to contain %q", want)
		}
	}

	// Multiple entries are separated, and the knowledge comes before the
	// instructions block.
	if strings.Count(out, "\n\n---\n\n") < 2 {
		t.Error("expected entries joined with separators")
	}
	if strings.Index(out, "## Corrected Responses") > strings.Index(out, "## Instructions") {
		t.Error("expected knowledge sections before the instructions")
	}
}

func TestBuildContext_EmptyKnowledgeFallbacks(t *testing.T) {
	out := BuildContext(activeUser(), nil, Knowledge{}, "hello", MessageTypeFollowUpQuestion)

	for _, want := range []string{
		"No resources available",
		"No model responses available",
		"No corrections to learn from yet",
		"No previous conversations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected fallback %q", want)
		}
	}
}
