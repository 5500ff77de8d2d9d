package models

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to approved", StatusPendingReview, StatusApproved, true},
		{"pending to rejected", StatusPendingReview, StatusRejected, true},
		{"pending to flagged", StatusPendingReview, StatusFlagged, true},
		{"pending to sent directly", StatusPendingReview, StatusSent, false},
		{"approved to sent", StatusApproved, StatusSent, true},
		{"approved to send failed", StatusApproved, StatusSendFailed, true},
		{"approved to rejected", StatusApproved, StatusRejected, true},
		{"send failed retry", StatusSendFailed, StatusSendFailed, true},
		{"send failed to sent", StatusSendFailed, StatusSent, true},
		{"send failed escalates to flagged", StatusSendFailed, StatusFlagged, true},
		{"flagged back to pending", StatusFlagged, StatusPendingReview, true},
		{"flagged to approved", StatusFlagged, StatusApproved, true},
		{"sent is terminal", StatusSent, StatusApproved, false},
		{"rejected is terminal", StatusRejected, StatusPendingReview, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestNewConversation(t *testing.T) {
	userID := "user-123"
	conv, err := NewConversation(&userID, TypeFollowUp)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if conv.Status != StatusPendingReview {
		t.Errorf("expected initial status %q, got %q", StatusPendingReview, conv.Status)
	}
	if conv.ID == "" {
		t.Error("expected generated ID")
	}
	if conv.UserID == nil || *conv.UserID != userID {
		t.Errorf("expected UserID %q, got %v", userID, conv.UserID)
	}
}

func TestNewConversation_InvalidType(t *testing.T) {
	if _, err := NewConversation(nil, "Broadcast"); err == nil {
		t.Fatal("expected error for invalid conversation type, got nil")
	}
}
