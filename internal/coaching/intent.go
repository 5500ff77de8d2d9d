package coaching

import (
	"context"
	"strings"
)

// Member intents detected from inbound messages.
const (
	IntentNormal = "normal"
	IntentPause  = "pause"
	IntentResume = "resume"
)

var (
	pauseKeywords  = []string{"pause", "break", "stop", "unsubscribe", "take a break", "stepping back"}
	resumeKeywords = []string{"resume", "i'm back", "start again", "ready"}
)

// IntentConfirmer double-checks a keyword hit against the full message.
type IntentConfirmer interface {
	ConfirmIntent(ctx context.Context, message, candidate string) (bool, error)
}

// DetectIntent classifies a message as a pause request, a resume request,
// or a normal coaching message. Short messages (<= 20 words) trust keyword
// matching directly; longer ones get AI confirmation to avoid false
// positives like "I need to stop overthinking and just start".
func DetectIntent(ctx context.Context, message string, confirmer IntentConfirmer) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(message))

	isPause := containsAny(lower, pauseKeywords)
	isResume := containsAny(lower, resumeKeywords)

	var keywordIntent string
	switch {
	case isResume:
		keywordIntent = IntentResume
	case isPause:
		keywordIntent = IntentPause
	default:
		return IntentNormal, nil
	}

	if len(strings.Fields(message)) <= 20 {
		return keywordIntent, nil
	}

	confirmed, err := confirmer.ConfirmIntent(ctx, message, keywordIntent)
	if err != nil {
		return "", err
	}
	if confirmed {
		return keywordIntent, nil
	}
	return IntentNormal, nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
