package coaching

import "github.com/thelaunchpad/coach-worker/internal/models"

// RouteDecision maps an evaluation onto a conversation status. A flag
// always wins over confidence; only unflagged responses at or above the
// threshold skip human review. The returned approvedBy is non-empty only
// for auto-approvals.
func RouteDecision(confidence int, flagged bool, threshold int) (status, approvedBy string) {
	if flagged {
		return models.StatusFlagged, ""
	}
	if confidence >= threshold {
		return models.StatusApproved, models.ApprovedByAuto
	}
	return models.StatusPendingReview, ""
}

// EffectiveThreshold picks the user's personal auto-approve threshold when
// set, otherwise the global one.
func EffectiveThreshold(userThreshold *int, globalThreshold int) int {
	if userThreshold != nil {
		return *userThreshold
	}
	return globalThreshold
}
