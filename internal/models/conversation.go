package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Conversation status constants
const (
	StatusPendingReview = "Pending Review"
	StatusApproved      = "Approved"
	StatusRejected      = "Rejected"
	StatusFlagged       = "Flagged"
	StatusSent          = "Sent"
	StatusSendFailed    = "Send Failed"
)

// Conversation type constants
const (
	TypeOnboarding   = "Onboarding"
	TypeCheckin      = "Check-in"
	TypeFollowUp     = "Follow-up"
	TypeReEngagement = "Re-engagement"
)

// Approval source constants
const (
	ApprovedByAuto       = "auto"
	ApprovedByManual     = "manual"
	ApprovedByManualBulk = "manual_bulk"
)

// JSONB type for GORM to handle PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Conversation is one exchange in the coaching program: either an inbound
// member message with its drafted reply, or an outbound draft queued by a
// scheduler. UserID is nil only for orphaned records from unknown senders.
type Conversation struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	UserID             *string    `gorm:"column:user_id;index"`
	Type               string     `gorm:"column:type"`
	UserMessageRaw     *string    `gorm:"column:user_message_raw"`
	UserMessageParsed  *string    `gorm:"column:user_message_parsed"`
	AIResponse         *string    `gorm:"column:ai_response"`
	SentResponse       *string    `gorm:"column:sent_response"`
	ResourceReferenced *string    `gorm:"column:resource_referenced"`
	StageDetected      *string    `gorm:"column:stage_detected"`
	StageChanged       bool       `gorm:"column:stage_changed"`
	EvaluationDetails  JSONB      `gorm:"column:evaluation_details;type:jsonb"`
	SatisfactionScore  *float64   `gorm:"column:satisfaction_score"`
	Confidence         *int       `gorm:"column:confidence"`
	Status             string     `gorm:"column:status;index"`
	FlagReason         *string    `gorm:"column:flag_reason"`
	ApprovedBy         *string    `gorm:"column:approved_by"`
	ApprovedAt         *time.Time `gorm:"column:approved_at"`
	SentAt             *time.Time `gorm:"column:sent_at"`
	SendAttempts       int        `gorm:"column:send_attempts"`
	GmailMessageID     *string    `gorm:"column:gmail_message_id;index"`
	GmailThreadID      *string    `gorm:"column:gmail_thread_id"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Conversation) TableName() string {
	return "conversations"
}

var ErrInvalidConversationType = errors.New("invalid conversation type")

// NewConversation creates a conversation in its initial status. The initial
// state is always Pending Review unless the caller routes it elsewhere
// (Flagged for unsafe responses, Approved for auto-approval).
func NewConversation(userID *string, convType string) (*Conversation, error) {
	switch convType {
	case TypeOnboarding, TypeCheckin, TypeFollowUp, TypeReEngagement:
	default:
		return nil, ErrInvalidConversationType
	}
	return &Conversation{
		ID:     uuid.New().String(),
		UserID: userID,
		Type:   convType,
		Status: StatusPendingReview,
	}, nil
}

// statusTransitions encodes the conversation state machine. Sent and Rejected
// are terminal. Flagged only moves again through explicit human action.
var statusTransitions = map[string][]string{
	StatusPendingReview: {StatusApproved, StatusRejected, StatusFlagged},
	StatusApproved:      {StatusSent, StatusSendFailed, StatusRejected},
	StatusSendFailed:    {StatusSent, StatusSendFailed, StatusFlagged},
	StatusFlagged:       {StatusPendingReview, StatusApproved, StatusRejected},
}

// CanTransition reports whether a conversation may move from one status to
// another. Re-entering Send Failed counts a retry attempt, not a new state.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
