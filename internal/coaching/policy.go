package coaching

import (
	"context"
	"strings"

	"github.com/thelaunchpad/coach-worker/internal/models"
)

// SettingsStore reads the coach-tunable settings.
type SettingsStore interface {
	Get(ctx context.Context, key, def string) (string, error)
	GetInt(ctx context.Context, key string, def int) (int, error)
}

// Policy is a snapshot of the mutable settings, read once at the start of a
// workflow run so a batch sees consistent values throughout.
type Policy struct {
	AutoApproveThreshold int
	MaxThreadReplies     int
	SendDelayMaxMinutes  int
	ReEngagementDays     int
	DefaultCheckinDays   []string
	NotificationEmail    string
	CoachTimezone        string
	AIProvider           string
	AIModel              string
}

// LoadPolicy reads the current settings with their defaults.
func LoadPolicy(ctx context.Context, settings SettingsStore) (*Policy, error) {
	threshold, err := settings.GetInt(ctx, models.SettingAutoApproveThreshold, 10)
	if err != nil {
		return nil, err
	}
	maxReplies, err := settings.GetInt(ctx, models.SettingMaxThreadReplies, 4)
	if err != nil {
		return nil, err
	}
	sendDelayMax, err := settings.GetInt(ctx, models.SettingSendDelayMaxMinutes, 100)
	if err != nil {
		return nil, err
	}
	if sendDelayMax < 1 {
		sendDelayMax = 1
	}
	reEngagementDays, err := settings.GetInt(ctx, models.SettingReEngagementDays, 10)
	if err != nil {
		return nil, err
	}
	checkinDays, err := settings.Get(ctx, models.SettingDefaultCheckinDays, "mon,thu")
	if err != nil {
		return nil, err
	}
	notificationEmail, err := settings.Get(ctx, models.SettingNotificationEmail, "coachwes@thelaunchpadincubator.com")
	if err != nil {
		return nil, err
	}
	timezone, err := settings.Get(ctx, models.SettingCoachTimezone, "America/New_York")
	if err != nil {
		return nil, err
	}
	provider, err := settings.Get(ctx, models.SettingAIProvider, "openai")
	if err != nil {
		return nil, err
	}
	model, err := settings.Get(ctx, models.SettingAIModel, "gpt-4o")
	if err != nil {
		return nil, err
	}

	return &Policy{
		AutoApproveThreshold: threshold,
		MaxThreadReplies:     maxReplies,
		SendDelayMaxMinutes:  sendDelayMax,
		ReEngagementDays:     reEngagementDays,
		DefaultCheckinDays:   splitDays(checkinDays),
		NotificationEmail:    notificationEmail,
		CoachTimezone:        timezone,
		AIProvider:           provider,
		AIModel:              model,
	}, nil
}

func splitDays(csv string) []string {
	var days []string
	for _, p := range strings.Split(csv, ",") {
		if d := strings.ToLower(strings.TrimSpace(p)); d != "" {
			days = append(days, d)
		}
	}
	return days
}
