package coaching

import (
	"fmt"
	"strings"

	"github.com/thelaunchpad/coach-worker/internal/models"
)

// Message types passed to the response generator.
const (
	MessageTypeCheckinResponse  = "check-in response"
	MessageTypeFollowUpQuestion = "follow-up question"
)

var stagePrompts = map[string]string{
	models.StageIdeation: `## Stage-Specific Guidance (Ideation)
This user is in the Ideation stage. They need help with:
- Finding problems worth solving through conversations (not brainstorming)
- Getting out of their head and talking to real people
- Picking ONE idea to explore rather than juggling many
- Having their first customer discovery conversations
Key challenge: They may be stuck in analysis paralysis or avoiding real conversations.`,

	models.StageEarlyValidation: `## Stage-Specific Guidance (Early Validation)
This user is in Early Validation. They need help with:
- Conducting structured problem interviews (not just casual chats)
- Testing willingness to pay before building
- Creating a minimum viable offer (manual before automated)
- Getting their first paying customer
Key challenge: They may want to skip ahead to building or get distracted by marketing too early.`,

	models.StageLateValidation: `## Stage-Specific Guidance (Late Validation)
This user is in Late Validation. They need help with:
- Reducing churn and increasing customer value
- Systematizing what's working before scaling
- Understanding their unit economics
- Focusing on ONE growth channel before expanding
Key challenge: They may be doing too many things at once or avoiding hard conversations about churn.`,

	models.StageGrowth: `## Stage-Specific Guidance (Growth)
This user is in the Growth stage. They need help with:
- Hiring and delegation decisions
- Building repeatable sales processes
- Managing team and operations at scale
- Knowing when and how to raise capital
Key challenge: They may be building features instead of selling, or spreading too thin across initiatives.`,
}

func strOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

// Knowledge is the curated material woven into the generation prompt:
// example responses for the member's stage, recent coach corrections, and
// the resource catalog the reply may reference by name.
type Knowledge struct {
	ModelResponses []models.ModelResponse
	Corrections    []models.CorrectedResponse
	Resources      []models.Resource
}

func modelResponsesText(responses []models.ModelResponse) string {
	if len(responses) == 0 {
		return "No model responses available"
	}
	parts := make([]string, 0, len(responses))
	for _, m := range responses {
		parts = append(parts, fmt.Sprintf("Scenario: %s\nUser Example: %s\nIdeal Response: %s",
			m.Scenario, m.UserExample, m.IdealResponse))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func correctionsText(corrections []models.CorrectedResponse) string {
	if len(corrections) == 0 {
		return "No corrections to learn from yet"
	}
	parts := make([]string, 0, len(corrections))
	for _, c := range corrections {
		parts = append(parts, fmt.Sprintf("AI originally wrote: %s\nWes corrected it to: %s\nBecause: %s",
			c.AIResponse, c.CorrectedResponse, strOr(c.CorrectionNotes, "N/A")))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func resourceListText(resources []models.Resource) string {
	if len(resources) == 0 {
		return "No resources available"
	}
	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		line := fmt.Sprintf("- %s: %s", r.Name, r.Description)
		if r.Topics != nil && *r.Topics != "" {
			line += fmt.Sprintf(" (Topics: %s)", *r.Topics)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// BuildContext assembles the prompt context for the response generator:
// stage guidance, who the member is, their recent exchanges, the curated
// knowledge bundle, and the message being answered. History is expected
// newest-first and is rendered oldest-first.
func BuildContext(user *models.User, history []models.Conversation, kb Knowledge, parsedMessage, messageType string) string {
	var historyLines []string
	for i := len(history) - 1; i >= 0; i-- {
		conv := history[i]
		userMsg := strOr(conv.UserMessageParsed, strOr(conv.UserMessageRaw, ""))
		coachMsg := strOr(conv.SentResponse, strOr(conv.AIResponse, ""))
		historyLines = append(historyLines, fmt.Sprintf("User: %s\nCoach: %s", userMsg, coachMsg))
	}
	conversationHistory := "No previous conversations"
	if len(historyLines) > 0 {
		conversationHistory = strings.Join(historyLines, "\n\n---\n\n")
	}

	return fmt.Sprintf(`%s

## Context About This User
Name: %s
Stage: %s
Business Idea: %s
Summary of their journey: %s

## Recent Conversation History
%s

## Message Type
%s

## Their Current Message
%s

## Available Resources (reference by name only — do NOT include links or URLs)
%s

## Model Responses (examples of your ideal coaching style)
%s

## Corrected Responses (learn from these)
%s

## Instructions
Write a short coaching response (1-3 paragraphs). Focus on 1-2 key points maximum. If relevant, point them to a specific resource BY NAME (e.g. "Lecture 7 walks through this" or "Chapter 3 of the Launch System covers this well"). NEVER include links, URLs, or attachments. Keep it conversational and human. Do NOT include a sign-off like "Wes" - that will be added automatically. Do NOT wrap your response in JSON or code blocks - just write the natural language coaching response.`,
		stagePrompts[user.Stage],
		firstNameOr(user.FirstName),
		user.Stage,
		strOr(user.BusinessIdea, "Not specified yet"),
		strOr(user.Summary, "New user, no history yet"),
		conversationHistory,
		messageType,
		parsedMessage,
		resourceListText(kb.Resources),
		modelResponsesText(kb.ModelResponses),
		correctionsText(kb.Corrections),
	)
}

// BuildCheckinContext assembles the smaller context used to generate a
// personalized check-in question.
func BuildCheckinContext(user *models.User, history []models.Conversation) string {
	summary := strOr(user.Summary, "No history yet")
	if len(summary) > 500 {
		summary = summary[len(summary)-500:]
	}

	var recentText strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		conv := history[i]
		userMsg := strOr(conv.UserMessageParsed, "")
		if userMsg == "" {
			continue
		}
		coachMsg := strOr(conv.SentResponse, strOr(conv.AIResponse, ""))
		fmt.Fprintf(&recentText, "\nUser: %s\nCoach: %s\n", truncate(userMsg, 200), truncate(coachMsg, 200))
	}
	recent := recentText.String()
	if recent == "" {
		recent = "None yet"
	}

	return fmt.Sprintf(`Name: %s
Stage: %s
Business Idea: %s
Current Challenge: %s
Journey Summary: %s
Recent Exchanges: %s`,
		firstNameOr(user.FirstName),
		user.Stage,
		strOr(user.BusinessIdea, "Not specified"),
		strOr(user.CurrentChallenge, "Not specified"),
		summary,
		recent,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
