package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thelaunchpad/coach-worker/internal/ai"
	"github.com/thelaunchpad/coach-worker/internal/coaching"
	"github.com/thelaunchpad/coach-worker/internal/config"
	"github.com/thelaunchpad/coach-worker/internal/database"
	"github.com/thelaunchpad/coach-worker/internal/logger"
	"github.com/thelaunchpad/coach-worker/internal/mailer"
	"github.com/thelaunchpad/coach-worker/internal/models"
	"github.com/thelaunchpad/coach-worker/internal/repository"
	"github.com/thelaunchpad/coach-worker/internal/scheduler"
	"github.com/thelaunchpad/coach-worker/internal/workflow"
)

const usage = `Usage:
  coach-worker              start the cron scheduler
  coach-worker run <name>   run one workflow and exit
                            (process_emails, check_in, re_engagement,
                             cleanup, send_approved)
  coach-worker invite <email> [first-name]
                            invite a new member
  coach-worker runs         show workflow runs from the last 24h`

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg)
	lg := logger.Get()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	lg.Info("Database connected successfully")

	// Run migrations
	lg.Info("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	lg.Info("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	runRepo := repository.NewWorkflowRunRepository(db)
	knowledgeRepo := repository.NewKnowledgeRepository(db)

	// Initialize the mailbox and AI clients
	mailClient := mailer.NewClient(cfg.CoachAddress, cfg.CoachName, cfg.MailPassword, cfg.IMAPHost, cfg.IMAPPort, cfg.SMTPHost, cfg.SMTPPort, lg)
	aiClient := ai.NewClient(cfg.OpenAIAPIKey, cfg.AnthropicAPIKey, lg)

	// Initialize the coaching pipeline and workflows
	pipeline := coaching.NewPipeline(userRepo, convRepo, knowledgeRepo, aiClient, lg)
	workflows := workflow.New(userRepo, convRepo, runRepo, settingRepo, mailClient, aiClient, pipeline, lg)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	args := os.Args[1:]
	if len(args) == 0 {
		return runScheduler(ctx, cfg, workflows)
	}

	switch args[0] {
	case "run":
		if len(args) < 2 {
			return fmt.Errorf("run requires a workflow name\n\n%s", usage)
		}
		return workflows.RunByName(ctx, args[1])

	case "invite":
		if len(args) < 2 {
			return fmt.Errorf("invite requires an email address\n\n%s", usage)
		}
		firstName := ""
		if len(args) > 2 {
			firstName = args[2]
		}
		return invite(ctx, userRepo, convRepo, mailClient, args[1], firstName)

	case "runs":
		return printRecentRuns(ctx, runRepo)

	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

// runScheduler blocks until a shutdown signal, then gives in-flight jobs a
// bounded window to finish.
func runScheduler(ctx context.Context, cfg *config.Config, workflows *workflow.Workflows) error {
	sched := scheduler.New(cfg, workflows, logger.Get())

	errChan := make(chan error, 1)
	go func() {
		errChan <- sched.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Get().Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			logger.Get().Warn("Shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				logger.Get().Errorf("Scheduler error: %v", err)
			}
		}
		logger.Get().Info("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}

// invite creates a member and sends their onboarding email. The sent invite
// is recorded as an Onboarding conversation so the dashboard shows it.
func invite(ctx context.Context, users *repository.UserRepository, convs *repository.ConversationRepository, mail *mailer.Client, email, firstName string) error {
	user, err := models.NewUser(email, firstName)
	if err != nil {
		return err
	}
	if err := users.Create(ctx, user); err != nil {
		return err
	}

	// The invite signs off "Talk soon," so the signature follows directly.
	body := coaching.OnboardingBody(user.FirstName) + "\n" + coaching.Signature
	messageID, err := mail.Send(ctx, user.Email, "Let's get you moving forward", body, "", "")
	if err != nil {
		return fmt.Errorf("user created but invite failed to send: %w", err)
	}

	conv, err := models.NewConversation(&user.ID, models.TypeOnboarding)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	conv.AIResponse = &body
	conv.SentResponse = &body
	conv.Status = models.StatusSent
	conv.SentAt = &now
	conv.GmailMessageID = &messageID
	if err := convs.Create(ctx, conv); err != nil {
		logger.Get().Warnf("Invite sent but conversation record failed: %v", err)
	}

	fmt.Printf("Invited %s (%s)\n", user.Email, user.ID)
	return nil
}

func printRecentRuns(ctx context.Context, runs *repository.WorkflowRunRepository) error {
	recent, err := runs.ListRecent(ctx, 24, 50)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No workflow runs in the last 24h")
		return nil
	}
	for _, r := range recent {
		line := fmt.Sprintf("%s  %-16s %-22s processed=%d failed=%d",
			r.StartedAt.Format("2006-01-02 15:04"), r.WorkflowName, r.Status, r.ItemsProcessed, r.ItemsFailed)
		if r.ErrorMessage != nil {
			line += "  error=" + *r.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}
