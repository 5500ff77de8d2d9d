package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusOnboarding = "Onboarding"
	UserStatusActive     = "Active"
	UserStatusPaused     = "Paused"
	UserStatusSilent     = "Silent"
)

// Coaching stage constants
const (
	StageIdeation        = "Ideation"
	StageEarlyValidation = "Early Validation"
	StageLateValidation  = "Late Validation"
	StageGrowth          = "Growth"
)

// Onboarding step markers. 0 means the invite has not gone out yet,
// 1 means we are waiting on their stage/idea reply, 2 on their biggest
// challenge, 3 means onboarding is complete.
const (
	OnboardingNotStarted        = 0
	OnboardingAwaitingStage     = 1
	OnboardingAwaitingChallenge = 2
	OnboardingComplete          = 3
)

// User is a member of the email coaching program.
type User struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	Email                string     `gorm:"column:email;uniqueIndex"`
	FirstName            string     `gorm:"column:first_name"`
	Status               string     `gorm:"column:status;index"`
	Stage                string     `gorm:"column:stage"`
	OnboardingStep       int        `gorm:"column:onboarding_step"`
	BusinessIdea         *string    `gorm:"column:business_idea"`
	CurrentChallenge     *string    `gorm:"column:current_challenge"`
	Notes                *string    `gorm:"column:notes"`
	Summary              *string    `gorm:"column:summary"`
	SatisfactionScore    *float64   `gorm:"column:satisfaction_score"`
	CheckinDays          *string    `gorm:"column:checkin_days"`
	AutoApproveThreshold *int       `gorm:"column:auto_approve_threshold"`
	LastResponseDate     *time.Time `gorm:"column:last_response_date"`
	GmailMessageID       *string    `gorm:"column:gmail_message_id"`
	GmailThreadID        *string    `gorm:"column:gmail_thread_id"`
	BounceCount          int        `gorm:"column:bounce_count"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

var ErrEmailRequired = errors.New("user email is required")

// NewUser creates an invited user at the start of onboarding.
// Emails are stored lowercased; lookups are case-insensitive.
func NewUser(email, firstName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	return &User{
		ID:             uuid.New().String(),
		Email:          email,
		FirstName:      strings.TrimSpace(firstName),
		Status:         UserStatusOnboarding,
		Stage:          StageIdeation,
		OnboardingStep: OnboardingAwaitingStage,
	}, nil
}

// CheckinDayList returns the user's personal check-in weekdays, or nil when
// the system default schedule should apply.
func (u *User) CheckinDayList() []string {
	if u.CheckinDays == nil || strings.TrimSpace(*u.CheckinDays) == "" {
		return nil
	}
	parts := strings.Split(*u.CheckinDays, ",")
	days := make([]string, 0, len(parts))
	for _, p := range parts {
		if d := strings.ToLower(strings.TrimSpace(p)); d != "" {
			days = append(days, d)
		}
	}
	return days
}
