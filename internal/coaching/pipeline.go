package coaching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thelaunchpad/coach-worker/internal/ai"
	"github.com/thelaunchpad/coach-worker/internal/mailer"
	"github.com/thelaunchpad/coach-worker/internal/models"
	"github.com/thelaunchpad/coach-worker/internal/replyparser"
	"github.com/thelaunchpad/coach-worker/internal/repository"
)

// UserStore is the slice of the user repository the pipeline needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// ConversationStore is the slice of the conversation repository the
// pipeline needs.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	ExistsForMessageID(ctx context.Context, messageID string) (bool, error)
	CountThreadReplies(ctx context.Context, userID string) (int, error)
	ListRecentSent(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
}

// KnowledgeStore is the curated-material slice of the repository: model
// responses, coach corrections and the resource catalog.
type KnowledgeStore interface {
	ListModelResponsesByStage(ctx context.Context, stage string) ([]models.ModelResponse, error)
	ListRecentCorrections(ctx context.Context, limit int) ([]models.CorrectedResponse, error)
	ListResourcesForStage(ctx context.Context, stage string) ([]models.Resource, error)
}

// Assistant is the AI capability surface the pipeline uses.
type Assistant interface {
	ProviderFor(provider, model string) (ai.Provider, error)
	EvaluateResponse(ctx context.Context, userMessage, aiResponse, userStage string) (*ai.Evaluation, error)
	ConfirmIntent(ctx context.Context, message, candidate string) (bool, error)
	AnalyzeSatisfaction(ctx context.Context, message string) (float64, error)
	GenerateSummaryUpdate(ctx context.Context, currentSummary, userMessage, coachResponse string) (string, error)
	ParseEmailFallback(ctx context.Context, rawEmail string) (string, error)
}

// Addresses whose local part marks them as system senders, never members.
var systemPrefixes = map[string]bool{
	"noreply":  true,
	"no-reply": true,
	"no_reply": true,
	"support":  true,
}

// Pipeline turns one inbound email into a conversation record: dedup,
// onboarding, pause/resume, thread capping, generation, evaluation and
// routing.
type Pipeline struct {
	users     UserStore
	convs     ConversationStore
	knowledge KnowledgeStore
	assistant Assistant
	log       *logrus.Logger
}

func NewPipeline(users UserStore, convs ConversationStore, knowledge KnowledgeStore, assistant Assistant, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		users:     users,
		convs:     convs,
		knowledge: knowledge,
		assistant: assistant,
		log:       log,
	}
}

// ProcessInbound runs one email through the full pipeline. A nil, nil
// return is a clean skip (duplicate, system sender, unknown sender); the
// caller may mark the source message read either way.
func (p *Pipeline) ProcessInbound(ctx context.Context, msg mailer.Message, policy *Policy) (*models.Conversation, error) {
	messageID := msg.MessageID
	if messageID == "" {
		messageID = SyntheticMessageID(msg.FromEmail, msg.Subject, msg.Body)
		p.log.Infof("No Message-ID header, using synthetic key: %s", messageID)
	}

	exists, err := p.convs.ExistsForMessageID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}
	if exists {
		p.log.Infof("Already processed message %s, skipping", messageID)
		return nil, nil
	}

	if prefix := strings.ToLower(strings.SplitN(msg.FromEmail, "@", 2)[0]); systemPrefixes[prefix] {
		p.log.Infof("Ignoring system address: %s", msg.FromEmail)
		return nil, nil
	}

	// Invite-only: unknown senders get no user and no conversation. The
	// cleanup workflow flags their mail after the grace period.
	user, err := p.users.FindByEmail(ctx, msg.FromEmail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			p.log.Infof("Ignoring email from unknown sender: %s", msg.FromEmail)
			return nil, nil
		}
		return nil, err
	}

	if user.Status == models.UserStatusOnboarding {
		return p.processOnboardingReply(ctx, user, msg, messageID)
	}

	parsed, err := p.parseEmail(ctx, msg.Body)
	if err != nil {
		return nil, err
	}

	intent, err := DetectIntent(ctx, parsed, p.assistant)
	if err != nil {
		return nil, fmt.Errorf("intent detection failed: %w", err)
	}
	switch intent {
	case IntentPause:
		return p.processIntentReply(ctx, user, msg, messageID, parsed, models.UserStatusPaused, PauseBody())
	case IntentResume:
		return p.processIntentReply(ctx, user, msg, messageID, parsed, models.UserStatusActive, ResumeBody())
	}

	replies, err := p.convs.CountThreadReplies(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if replies >= policy.MaxThreadReplies {
		return p.processThreadCap(ctx, user, msg, messageID, parsed, policy.MaxThreadReplies)
	}

	recent, err := p.convs.ListRecentSent(ctx, user.ID, 5)
	if err != nil {
		return nil, err
	}
	messageType := MessageTypeFollowUpQuestion
	if len(recent) == 0 {
		messageType = MessageTypeCheckinResponse
	}

	kb, err := p.loadKnowledge(ctx, user.Stage)
	if err != nil {
		return nil, err
	}

	provider, err := p.assistant.ProviderFor(policy.AIProvider, policy.AIModel)
	if err != nil {
		return nil, err
	}
	aiResponse, err := provider.GenerateResponse(ctx, BuildContext(user, recent, kb, parsed, messageType))
	if err != nil {
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	eval, err := p.assistant.EvaluateResponse(ctx, parsed, aiResponse, user.Stage)
	if err != nil {
		return nil, fmt.Errorf("response evaluation failed: %w", err)
	}

	threshold := EffectiveThreshold(user.AutoApproveThreshold, policy.AutoApproveThreshold)
	status, approvedBy := RouteDecision(eval.Confidence, eval.Flag, threshold)

	// Satisfaction is best-effort; a failed call never blocks the reply.
	var satisfaction *float64
	if score, err := p.assistant.AnalyzeSatisfaction(ctx, parsed); err != nil {
		p.log.Warnf("Failed to analyze satisfaction for %s: %v", msg.FromEmail, err)
	} else {
		satisfaction = &score
	}

	convType := models.TypeFollowUp
	if messageType == MessageTypeCheckinResponse {
		convType = models.TypeCheckin
	}
	conv, err := models.NewConversation(&user.ID, convType)
	if err != nil {
		return nil, err
	}
	conv.UserMessageRaw = strPtr(msg.Body)
	conv.UserMessageParsed = strPtr(parsed)
	conv.AIResponse = strPtr(aiResponse)
	conv.Confidence = intPtr(eval.Confidence)
	conv.Status = status
	conv.FlagReason = optStrPtr(eval.FlagReason)
	conv.GmailMessageID = strPtr(messageID)
	conv.GmailThreadID = optStrPtr(msg.InReplyTo)
	conv.ResourceReferenced = optStrPtr(eval.ResourceReferenced)
	conv.StageDetected = optStrPtr(eval.DetectedStage)
	conv.StageChanged = eval.StageChanged
	conv.SatisfactionScore = satisfaction
	conv.EvaluationDetails = models.JSONB(eval.SubScores)
	if approvedBy != "" {
		conv.ApprovedBy = strPtr(approvedBy)
		conv.ApprovedAt = timePtr(time.Now().UTC())
	}
	if err := p.convs.Create(ctx, conv); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"last_response_date": time.Now().UTC(),
		"gmail_message_id":   messageID,
	}
	if msg.InReplyTo != "" {
		updates["gmail_thread_id"] = msg.InReplyTo
	}
	if eval.StageChanged && eval.DetectedStage != "" {
		updates["stage"] = eval.DetectedStage
		milestone := fmt.Sprintf("MILESTONE: Progressed from %s to %s", user.Stage, eval.DetectedStage)
		updates["summary"] = AppendSummary(user.Summary, milestone)
	}
	if satisfaction != nil {
		updates["satisfaction_score"] = BlendSatisfaction(user.SatisfactionScore, *satisfaction)
	}
	if err := p.users.Update(ctx, user.ID, updates); err != nil {
		return nil, err
	}

	p.log.Infof("Processed email from %s: status=%s, confidence=%d", msg.FromEmail, status, eval.Confidence)
	return conv, nil
}

// processOnboardingReply advances the two-step onboarding exchange: the
// first reply carries their stage/idea, the second their biggest
// challenge, after which the member goes Active.
func (p *Pipeline) processOnboardingReply(ctx context.Context, user *models.User, msg mailer.Message, messageID string) (*models.Conversation, error) {
	parsed, err := p.parseEmail(ctx, msg.Body)
	if err != nil {
		return nil, err
	}

	if user.OnboardingStep <= models.OnboardingAwaitingStage {
		conv, err := p.createCannedConversation(ctx, user, models.TypeOnboarding, msg.Body, parsed, OnboardingChallengeBody(user.FirstName), 8, messageID, "")
		if err != nil {
			return nil, err
		}
		if err := p.users.Update(ctx, user.ID, map[string]interface{}{
			"onboarding_step": models.OnboardingAwaitingChallenge,
		}); err != nil {
			return nil, err
		}
		p.log.Infof("Onboarding step 2 for %s — awaiting review", msg.FromEmail)
		return conv, nil
	}

	challenge := parsed
	if len(challenge) > 500 {
		challenge = challenge[:500]
	}
	if err := p.users.Update(ctx, user.ID, map[string]interface{}{
		"status":             models.UserStatusActive,
		"onboarding_step":    models.OnboardingComplete,
		"current_challenge":  challenge,
		"last_response_date": time.Now().UTC(),
		"gmail_message_id":   messageID,
	}); err != nil {
		return nil, err
	}
	conv, err := p.createCannedConversation(ctx, user, models.TypeOnboarding, msg.Body, parsed, WelcomeBody(user.FirstName), 8, messageID, "")
	if err != nil {
		return nil, err
	}
	p.log.Infof("Onboarding complete for %s — activated, awaiting review", msg.FromEmail)
	return conv, nil
}

func (p *Pipeline) processIntentReply(ctx context.Context, user *models.User, msg mailer.Message, messageID, parsed, newStatus, body string) (*models.Conversation, error) {
	if err := p.users.Update(ctx, user.ID, map[string]interface{}{"status": newStatus}); err != nil {
		return nil, err
	}
	conv, err := p.createCannedConversation(ctx, user, models.TypeFollowUp, msg.Body, parsed, body, 9, messageID, "")
	if err != nil {
		return nil, err
	}
	p.log.Infof("User %s requested %s — awaiting review", msg.FromEmail, strings.ToLower(newStatus))
	return conv, nil
}

func (p *Pipeline) processThreadCap(ctx context.Context, user *models.User, msg mailer.Message, messageID, parsed string, maxReplies int) (*models.Conversation, error) {
	p.log.Infof("Thread reply cap (%d) reached for %s, creating wrap-up", maxReplies, msg.FromEmail)
	flagReason := fmt.Sprintf("Thread reply cap (%d) reached", maxReplies)
	conv, err := p.createCannedConversation(ctx, user, models.TypeFollowUp, msg.Body, parsed, WrapUpBody(user.FirstName), 8, messageID, flagReason)
	if err != nil {
		return nil, err
	}
	// They're still engaged even if we cut the thread off.
	if err := p.users.Update(ctx, user.ID, map[string]interface{}{
		"last_response_date": time.Now().UTC(),
		"gmail_message_id":   messageID,
	}); err != nil {
		return nil, err
	}
	return conv, nil
}

func (p *Pipeline) createCannedConversation(ctx context.Context, user *models.User, convType, raw, parsed, body string, confidence int, messageID, flagReason string) (*models.Conversation, error) {
	conv, err := models.NewConversation(&user.ID, convType)
	if err != nil {
		return nil, err
	}
	conv.UserMessageRaw = strPtr(raw)
	conv.UserMessageParsed = strPtr(parsed)
	conv.AIResponse = strPtr(body)
	conv.Confidence = intPtr(confidence)
	conv.GmailMessageID = strPtr(messageID)
	conv.FlagReason = optStrPtr(flagReason)
	if err := p.convs.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// loadKnowledge gathers the curated prompt material for a member's stage.
func (p *Pipeline) loadKnowledge(ctx context.Context, stage string) (Knowledge, error) {
	modelResponses, err := p.knowledge.ListModelResponsesByStage(ctx, stage)
	if err != nil {
		return Knowledge{}, fmt.Errorf("loading model responses: %w", err)
	}
	corrections, err := p.knowledge.ListRecentCorrections(ctx, 10)
	if err != nil {
		return Knowledge{}, fmt.Errorf("loading corrections: %w", err)
	}
	resources, err := p.knowledge.ListResourcesForStage(ctx, stage)
	if err != nil {
		return Knowledge{}, fmt.Errorf("loading resources: %w", err)
	}
	return Knowledge{
		ModelResponses: modelResponses,
		Corrections:    corrections,
		Resources:      resources,
	}, nil
}

// parseEmail strips quoted history deterministically and falls back to AI
// parsing when almost nothing survives.
func (p *Pipeline) parseEmail(ctx context.Context, raw string) (string, error) {
	parsed := replyparser.Parse(raw)
	if len(parsed) < 5 {
		p.log.Info("Deterministic parser returned empty, falling back to AI")
		fallback, err := p.assistant.ParseEmailFallback(ctx, raw)
		if err != nil {
			return "", fmt.Errorf("fallback email parsing failed: %w", err)
		}
		return fallback, nil
	}
	return parsed, nil
}

// AppendSummary adds a dated line to a journey summary.
func AppendSummary(current *string, line string) string {
	date := time.Now().UTC().Format("2006-01-02")
	existing := ""
	if current != nil {
		existing = *current
	}
	return strings.TrimSpace(fmt.Sprintf("%s\n\n%s: %s", existing, date, line))
}

func strPtr(s string) *string { return &s }

func optStrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }
