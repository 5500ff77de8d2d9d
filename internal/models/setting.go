package models

import "time"

// Setting keys read by the core workflows. Values are strings with typed
// accessors on the settings repository.
const (
	SettingAutoApproveThreshold = "global_auto_approve_threshold"
	SettingMaxThreadReplies     = "max_thread_replies"
	SettingSendDelayMaxMinutes  = "send_delay_max_minutes"
	SettingReEngagementDays     = "re_engagement_days"
	SettingDefaultCheckinDays   = "default_checkin_days"
	SettingNotificationEmail    = "notification_email"
	SettingCoachTimezone        = "coach_timezone"
	SettingAIProvider           = "ai_provider"
	SettingAIModel              = "ai_model"
)

// Setting is one key/value policy knob.
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Setting) TableName() string {
	return "settings"
}
