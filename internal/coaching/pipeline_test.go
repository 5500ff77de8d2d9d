package coaching

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/thelaunchpad/coach-worker/internal/ai"
	"github.com/thelaunchpad/coach-worker/internal/mailer"
	"github.com/thelaunchpad/coach-worker/internal/models"
	"github.com/thelaunchpad/coach-worker/internal/repository"
)

type mockUserStore struct {
	findByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	updates         []map[string]interface{}
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findByEmailFunc(ctx, email)
}

func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	m.updates = append(m.updates, updates)
	return nil
}

type mockConversationStore struct {
	existsFunc         func(ctx context.Context, messageID string) (bool, error)
	countRepliesFunc   func(ctx context.Context, userID string) (int, error)
	listRecentSentFunc func(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
	created            []*models.Conversation
}

func (m *mockConversationStore) Create(ctx context.Context, conv *models.Conversation) error {
	m.created = append(m.created, conv)
	return nil
}

func (m *mockConversationStore) ExistsForMessageID(ctx context.Context, messageID string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, messageID)
	}
	return false, nil
}

func (m *mockConversationStore) CountThreadReplies(ctx context.Context, userID string) (int, error) {
	if m.countRepliesFunc != nil {
		return m.countRepliesFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockConversationStore) ListRecentSent(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	if m.listRecentSentFunc != nil {
		return m.listRecentSentFunc(ctx, userID, limit)
	}
	return nil, nil
}

type mockKnowledgeStore struct {
	modelResponsesFunc func(ctx context.Context, stage string) ([]models.ModelResponse, error)
	correctionsFunc    func(ctx context.Context, limit int) ([]models.CorrectedResponse, error)
	resourcesFunc      func(ctx context.Context, stage string) ([]models.Resource, error)
}

func (m *mockKnowledgeStore) ListModelResponsesByStage(ctx context.Context, stage string) ([]models.ModelResponse, error) {
	if m.modelResponsesFunc != nil {
		return m.modelResponsesFunc(ctx, stage)
	}
	return nil, nil
}

func (m *mockKnowledgeStore) ListRecentCorrections(ctx context.Context, limit int) ([]models.CorrectedResponse, error) {
	if m.correctionsFunc != nil {
		return m.correctionsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockKnowledgeStore) ListResourcesForStage(ctx context.Context, stage string) ([]models.Resource, error) {
	if m.resourcesFunc != nil {
		return m.resourcesFunc(ctx, stage)
	}
	return nil, nil
}

type mockProvider struct {
	generateFunc func(ctx context.Context, userContext string) (string, error)
}

func (m *mockProvider) GenerateResponse(ctx context.Context, userContext string) (string, error) {
	return m.generateFunc(ctx, userContext)
}

func (m *mockProvider) GenerateCheckinQuestion(ctx context.Context, userContext string) (string, error) {
	return "How's the week going?", nil
}

type mockAssistant struct {
	provider        *mockProvider
	evaluateFunc    func(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error)
	confirmFunc     func(ctx context.Context, message, candidate string) (bool, error)
	satisfactionFn  func(ctx context.Context, message string) (float64, error)
	parseFallbackFn func(ctx context.Context, rawEmail string) (string, error)
}

func (m *mockAssistant) ProviderFor(provider, model string) (ai.Provider, error) {
	return m.provider, nil
}

func (m *mockAssistant) EvaluateResponse(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error) {
	return m.evaluateFunc(ctx, userMessage, aiResponse, userStage)
}

func (m *mockAssistant) ConfirmIntent(ctx context.Context, message, candidate string) (bool, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, message, candidate)
	}
	return false, nil
}

func (m *mockAssistant) AnalyzeSatisfaction(ctx context.Context, message string) (float64, error) {
	if m.satisfactionFn != nil {
		return m.satisfactionFn(ctx, message)
	}
	return 7.0, nil
}

func (m *mockAssistant) GenerateSummaryUpdate(ctx context.Context, currentSummary, userMessage, coachResponse string) (string, error) {
	return "Made progress on interviews.", nil
}

func (m *mockAssistant) ParseEmailFallback(ctx context.Context, rawEmail string) (string, error) {
	if m.parseFallbackFn != nil {
		return m.parseFallbackFn(ctx, rawEmail)
	}
	return rawEmail, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func activeUser() *models.User {
	return &models.User{
		ID:             "user-1",
		Email:          "jen@example.com",
		FirstName:      "Jen",
		Status:         models.UserStatusActive,
		Stage:          models.StageEarlyValidation,
		OnboardingStep: models.OnboardingComplete,
	}
}

func testPolicy() *Policy {
	return &Policy{
		AutoApproveThreshold: 10,
		MaxThreadReplies:     4,
		SendDelayMaxMinutes:  100,
		ReEngagementDays:     10,
		DefaultCheckinDays:   []string{"mon", "thu"},
	}
}

func inboundMsg(body string) mailer.Message {
	return mailer.Message{
		IMAPID:    7,
		MessageID: "<abc123@mail.example.com>",
		FromEmail: "jen@example.com",
		Subject:   "Re: Coaching",
		Body:      body,
		InReplyTo: "<coach-msg@mail.example.com>",
	}
}

func newTestPipeline(users *mockUserStore, convs *mockConversationStore, assistant *mockAssistant) *Pipeline {
	return NewPipeline(users, convs, &mockKnowledgeStore{}, assistant, quietLogger())
}

func TestProcessInbound_DuplicateSkipped(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		t.Fatal("user lookup should not run for duplicates")
		return nil, nil
	}}
	convs := &mockConversationStore{existsFunc: func(ctx context.Context, messageID string) (bool, error) {
		return true, nil
	}}
	p := newTestPipeline(users, convs, &mockAssistant{})

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("an update"), testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv != nil {
		t.Error("expected duplicate to be skipped")
	}
	if len(convs.created) != 0 {
		t.Error("expected no conversation created")
	}
}

func TestProcessInbound_MissingMessageIDUsesSyntheticKey(t *testing.T) {
	var checkedID string
	convs := &mockConversationStore{existsFunc: func(ctx context.Context, messageID string) (bool, error) {
		checkedID = messageID
		return true, nil
	}}
	p := newTestPipeline(&mockUserStore{}, convs, &mockAssistant{})

	msg := inboundMsg("an update")
	msg.MessageID = ""
	if _, err := p.ProcessInbound(context.Background(), msg, testPolicy()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(checkedID, "synthetic-") {
		t.Errorf("expected synthetic dedup key, got %q", checkedID)
	}
}

func TestProcessInbound_UnknownSenderSkipped(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return nil, repository.ErrUserNotFound
	}}
	convs := &mockConversationStore{}
	p := newTestPipeline(users, convs, &mockAssistant{})

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("let me in"), testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv != nil || len(convs.created) != 0 {
		t.Error("expected unknown sender to produce no conversation")
	}
}

func TestProcessInbound_SystemAddressSkipped(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		t.Fatal("system addresses must never reach user lookup")
		return nil, nil
	}}
	p := newTestPipeline(users, &mockConversationStore{}, &mockAssistant{})

	msg := inboundMsg("delivery status")
	msg.FromEmail = "support@vendor.io"
	conv, err := p.ProcessInbound(context.Background(), msg, testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv != nil {
		t.Error("expected system address to be skipped")
	}
}

func TestProcessInbound_AutoApproval(t *testing.T) {
	user := activeUser()
	threshold := 7
	user.AutoApproveThreshold = &threshold

	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}}
	convs := &mockConversationStore{}
	assistant := &mockAssistant{
		provider: &mockProvider{generateFunc: func(ctx context.Context, userContext string) (string, error) {
			return "Nice work. Next step: ask each of them what they currently pay.", nil
		}},
		evaluateFunc: func(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error) {
			return &ai.Evaluation{Confidence: 8, Flag: false, DetectedStage: userStage}, nil
		},
	}
	p := newTestPipeline(users, convs, assistant)

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("I interviewed two plumbers about scheduling pain today"), testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a conversation")
	}
	if conv.Status != models.StatusApproved {
		t.Errorf("expected Approved with personal threshold 7, got %s", conv.Status)
	}
	if conv.ApprovedBy == nil || *conv.ApprovedBy != models.ApprovedByAuto {
		t.Error("expected auto approval attribution")
	}
	if conv.ApprovedAt == nil {
		t.Error("expected approved_at to be set")
	}
	if conv.Type != models.TypeCheckin {
		t.Errorf("expected first exchange to be a Check-in, got %s", conv.Type)
	}

	if len(users.updates) != 1 {
		t.Fatalf("expected one user update, got %d", len(users.updates))
	}
	if _, ok := users.updates[0]["last_response_date"]; !ok {
		t.Error("expected last_response_date update")
	}
	if got := users.updates[0]["satisfaction_score"]; got != 7.0 {
		t.Errorf("expected first satisfaction reading 7.0, got %v", got)
	}
}

func TestProcessInbound_FlagOverridesConfidence(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		u := activeUser()
		t4 := 4
		u.AutoApproveThreshold = &t4
		return u, nil
	}}
	convs := &mockConversationStore{}
	assistant := &mockAssistant{
		provider: &mockProvider{generateFunc: func(ctx context.Context, userContext string) (string, error) {
			return "You should put everything into crypto.", nil
		}},
		evaluateFunc: func(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error) {
			return &ai.Evaluation{Confidence: 9, Flag: true, FlagReason: "Investment advice", DetectedStage: userStage}, nil
		},
	}
	p := newTestPipeline(users, convs, assistant)

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("should I invest my savings?"), testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.Status != models.StatusFlagged {
		t.Errorf("expected flag to override confidence 9, got %s", conv.Status)
	}
	if conv.ApprovedBy != nil {
		t.Error("flagged conversations must not carry approval attribution")
	}
	if conv.FlagReason == nil || *conv.FlagReason != "Investment advice" {
		t.Error("expected flag reason preserved")
	}
}

func TestProcessInbound_ThreadCapCreatesWrapUp(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return activeUser(), nil
	}}
	convs := &mockConversationStore{countRepliesFunc: func(ctx context.Context, userID string) (int, error) {
		return 4, nil
	}}
	assistant := &mockAssistant{
		provider: &mockProvider{generateFunc: func(ctx context.Context, userContext string) (string, error) {
			t.Fatal("generation must not run once the cap is reached")
			return "", nil
		}},
	}
	p := newTestPipeline(users, convs, assistant)

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("one more question about pricing"), testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a wrap-up conversation")
	}
	if conv.Status != models.StatusPendingReview {
		t.Errorf("expected wrap-up to await review, got %s", conv.Status)
	}
	if conv.FlagReason == nil || !strings.Contains(*conv.FlagReason, "Thread reply cap (4)") {
		t.Error("expected flag reason to note the cap")
	}
	if conv.AIResponse == nil || !strings.Contains(*conv.AIResponse, "pick this up in your next check-in") {
		t.Error("expected wrap-up body")
	}
	// The member is still active; their last response date moves forward.
	if len(users.updates) != 1 {
		t.Fatalf("expected one user update, got %d", len(users.updates))
	}
	if _, ok := users.updates[0]["last_response_date"]; !ok {
		t.Error("expected last_response_date update after wrap-up")
	}
}

func TestProcessInbound_PauseIntent(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return activeUser(), nil
	}}
	convs := &mockConversationStore{}
	p := newTestPipeline(users, convs, &mockAssistant{})

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("please pause my check-ins for a while"), testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a pause confirmation conversation")
	}
	if conv.Status != models.StatusPendingReview {
		t.Errorf("expected pause confirmation to await review, got %s", conv.Status)
	}
	if len(users.updates) != 1 || users.updates[0]["status"] != models.UserStatusPaused {
		t.Errorf("expected user paused, got %v", users.updates)
	}
}

func TestProcessInbound_StageChangeMilestone(t *testing.T) {
	user := activeUser()
	summary := "2026-01-10: Started interviews."
	user.Summary = &summary

	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}}
	convs := &mockConversationStore{}
	assistant := &mockAssistant{
		provider: &mockProvider{generateFunc: func(ctx context.Context, userContext string) (string, error) {
			return "Congrats on the first paying customer.", nil
		}},
		evaluateFunc: func(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error) {
			return &ai.Evaluation{
				Confidence:    6,
				DetectedStage: models.StageLateValidation,
				StageChanged:  true,
			}, nil
		},
	}
	p := newTestPipeline(users, convs, assistant)

	if _, err := p.ProcessInbound(context.Background(), inboundMsg("they paid! first invoice went out"), testPolicy()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updates := users.updates[0]
	if updates["stage"] != models.StageLateValidation {
		t.Errorf("expected stage advanced to Late Validation, got %v", updates["stage"])
	}
	newSummary, _ := updates["summary"].(string)
	if !strings.Contains(newSummary, "MILESTONE: Progressed from Early Validation to Late Validation") {
		t.Errorf("expected milestone line in summary, got %q", newSummary)
	}
	if !strings.Contains(newSummary, "Started interviews.") {
		t.Error("expected existing summary preserved")
	}
}

func TestProcessInbound_OnboardingFlow(t *testing.T) {
	t.Run("first reply asks for the challenge", func(t *testing.T) {
		user := activeUser()
		user.Status = models.UserStatusOnboarding
		user.OnboardingStep = models.OnboardingAwaitingStage

		users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		}}
		convs := &mockConversationStore{}
		p := newTestPipeline(users, convs, &mockAssistant{})

		conv, err := p.ProcessInbound(context.Background(), inboundMsg("I'm in Early Validation, building a tool for plumbers"), testPolicy())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if conv == nil || conv.Type != models.TypeOnboarding {
			t.Fatalf("expected an Onboarding conversation, got %+v", conv)
		}
		if conv.AIResponse == nil || !strings.Contains(*conv.AIResponse, "single biggest challenge") {
			t.Error("expected challenge question body")
		}
		if users.updates[0]["onboarding_step"] != models.OnboardingAwaitingChallenge {
			t.Errorf("expected step advance to 2, got %v", users.updates[0])
		}
	})

	t.Run("second reply activates the member", func(t *testing.T) {
		user := activeUser()
		user.Status = models.UserStatusOnboarding
		user.OnboardingStep = models.OnboardingAwaitingChallenge

		users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		}}
		convs := &mockConversationStore{}
		p := newTestPipeline(users, convs, &mockAssistant{})

		conv, err := p.ProcessInbound(context.Background(), inboundMsg("My biggest challenge is getting anyone to reply to cold outreach"), testPolicy())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if conv == nil || conv.AIResponse == nil || !strings.Contains(*conv.AIResponse, "You're all set") {
			t.Fatal("expected welcome body")
		}

		updates := users.updates[0]
		if updates["status"] != models.UserStatusActive {
			t.Errorf("expected activation, got %v", updates["status"])
		}
		if updates["onboarding_step"] != models.OnboardingComplete {
			t.Errorf("expected onboarding complete, got %v", updates["onboarding_step"])
		}
		if challenge, _ := updates["current_challenge"].(string); !strings.Contains(challenge, "cold outreach") {
			t.Errorf("expected challenge captured, got %q", challenge)
		}
	})
}

func TestProcessInbound_KnowledgeReachesPrompt(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return activeUser(), nil
	}}
	convs := &mockConversationStore{}

	var queriedStage string
	notes := "Too pushy for a first nudge"
	topics := "problem interviews"
	knowledge := &mockKnowledgeStore{
		modelResponsesFunc: func(ctx context.Context, stage string) ([]models.ModelResponse, error) {
			queriedStage = stage
			return []models.ModelResponse{{
				Stage:         stage,
				Scenario:      "Member avoids talking to customers",
				UserExample:   "I've been polishing the landing page instead",
				IdealResponse: "Set the page aside and book three interviews this week.",
			}}, nil
		},
		correctionsFunc: func(ctx context.Context, limit int) ([]models.CorrectedResponse, error) {
			return []models.CorrectedResponse{{
				AIResponse:        "Have you considered a rebrand?",
				CorrectedResponse: "Who did you talk to this week?",
				CorrectionNotes:   &notes,
			}}, nil
		},
		resourcesFunc: func(ctx context.Context, stage string) ([]models.Resource, error) {
			return []models.Resource{{
				Name:        "Lecture 7",
				Description: "Running problem interviews",
				Topics:      &topics,
			}}, nil
		},
	}

	var prompt string
	assistant := &mockAssistant{
		provider: &mockProvider{generateFunc: func(ctx context.Context, userContext string) (string, error) {
			prompt = userContext
			return "Book the interviews first.", nil
		}},
		evaluateFunc: func(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error) {
			return &ai.Evaluation{Confidence: 5, DetectedStage: userStage}, nil
		},
	}
	p := NewPipeline(users, convs, knowledge, assistant, quietLogger())

	if _, err := p.ProcessInbound(context.Background(), inboundMsg("still tweaking the site"), testPolicy()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if queriedStage != models.StageEarlyValidation {
		t.Errorf("expected model responses fetched for the member's stage, got %q", queriedStage)
	}
	for _, want := range []string{
		"## Available Resources",
		"- Lecture 7: Running problem interviews (Topics: problem interviews)",
		"## Model Responses",
		"Scenario: Member avoids talking to customers",
		"Ideal Response: Set the page aside and book three interviews this week.",
		"## Corrected Responses",
		"Wes corrected it to: Who did you talk to this week?",
		"Because: Too pushy for a first nudge",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestProcessInbound_SatisfactionFailureIsNotFatal(t *testing.T) {
	users := &mockUserStore{findByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
		return activeUser(), nil
	}}
	convs := &mockConversationStore{}
	assistant := &mockAssistant{
		provider: &mockProvider{generateFunc: func(ctx context.Context, userContext string) (string, error) {
			return "Keep going.", nil
		}},
		evaluateFunc: func(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error) {
			return &ai.Evaluation{Confidence: 5, DetectedStage: userStage}, nil
		},
		satisfactionFn: func(ctx context.Context, message string) (float64, error) {
			return 0, context.DeadlineExceeded
		},
	}
	p := newTestPipeline(users, convs, assistant)

	conv, err := p.ProcessInbound(context.Background(), inboundMsg("slow week but still moving"), testPolicy())
	if err != nil {
		t.Fatalf("expected satisfaction failure to be swallowed, got %v", err)
	}
	if conv == nil || conv.SatisfactionScore != nil {
		t.Error("expected conversation without a satisfaction score")
	}
	if _, ok := users.updates[0]["satisfaction_score"]; ok {
		t.Error("expected no satisfaction update on failure")
	}
}
