package models

import "time"

// ModelResponse is a curated example of ideal coaching for a stage: a
// scenario, a sample member message, and the response the coach considers
// exemplary. Fed into the generation prompt.
type ModelResponse struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Stage         string    `gorm:"column:stage;index"`
	Scenario      string    `gorm:"column:scenario"`
	UserExample   string    `gorm:"column:user_example"`
	IdealResponse string    `gorm:"column:ideal_response"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ModelResponse) TableName() string {
	return "model_responses"
}

// CorrectedResponse records a coach edit of a drafted reply: what the
// generator wrote, what actually went out, and why. Recent corrections are
// fed back into the generation prompt.
type CorrectedResponse struct {
	ID                string    `gorm:"column:id;primaryKey"`
	ConversationID    *string   `gorm:"column:conversation_id;index"`
	AIResponse        string    `gorm:"column:ai_response"`
	CorrectedResponse string    `gorm:"column:corrected_response"`
	CorrectionNotes   *string   `gorm:"column:correction_notes"`
	Stage             *string   `gorm:"column:stage"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (CorrectedResponse) TableName() string {
	return "corrected_responses"
}

// Resource is a named course material (lecture, chapter, worksheet) the
// coach can point members to by name. A nil stage means the resource
// applies to every stage.
type Resource struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	Description string    `gorm:"column:description"`
	Topics      *string   `gorm:"column:topics"`
	Stage       *string   `gorm:"column:stage"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Resource) TableName() string {
	return "resources"
}
