package coaching

import (
	"context"
	"strings"
	"testing"

	"github.com/thelaunchpad/coach-worker/internal/models"
)

func TestSyntheticMessageID(t *testing.T) {
	a := SyntheticMessageID("jen@example.com", "Re: Coaching", "quick update")
	b := SyntheticMessageID("jen@example.com", "Re: Coaching", "quick update")
	if a != b {
		t.Errorf("expected identical inputs to produce identical keys: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "synthetic-") {
		t.Errorf("expected synthetic- prefix, got %s", a)
	}
	if len(a) != len("synthetic-")+24 {
		t.Errorf("expected 24-char hash suffix, got %s", a)
	}

	c := SyntheticMessageID("jen@example.com", "Re: Coaching", "different update")
	if a == c {
		t.Error("expected different bodies to produce different keys")
	}

	// Only the first 500 bytes of the body participate.
	long := strings.Repeat("x", 500)
	d := SyntheticMessageID("jen@example.com", "Re: Coaching", long+"tail one")
	e := SyntheticMessageID("jen@example.com", "Re: Coaching", long+"tail two")
	if d != e {
		t.Error("expected bodies differing only after 500 bytes to produce the same key")
	}
}

func TestRouteDecision(t *testing.T) {
	tests := []struct {
		name           string
		confidence     int
		flagged        bool
		threshold      int
		wantStatus     string
		wantApprovedBy string
	}{
		{"flag overrides high confidence", 9, true, 7, models.StatusFlagged, ""},
		{"flag overrides at threshold", 10, true, 10, models.StatusFlagged, ""},
		{"confidence at threshold auto-approves", 7, false, 7, models.StatusApproved, models.ApprovedByAuto},
		{"confidence above threshold auto-approves", 9, false, 7, models.StatusApproved, models.ApprovedByAuto},
		{"confidence below threshold pends", 6, false, 7, models.StatusPendingReview, ""},
		{"default threshold ten pends most", 9, false, 10, models.StatusPendingReview, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, approvedBy := RouteDecision(tt.confidence, tt.flagged, tt.threshold)
			if status != tt.wantStatus || approvedBy != tt.wantApprovedBy {
				t.Errorf("RouteDecision(%d, %v, %d) = (%q, %q), want (%q, %q)",
					tt.confidence, tt.flagged, tt.threshold, status, approvedBy, tt.wantStatus, tt.wantApprovedBy)
			}
		})
	}
}

func TestEffectiveThreshold(t *testing.T) {
	personal := 6
	if got := EffectiveThreshold(&personal, 10); got != 6 {
		t.Errorf("expected personal threshold 6, got %d", got)
	}
	if got := EffectiveThreshold(nil, 10); got != 10 {
		t.Errorf("expected global threshold 10, got %d", got)
	}
}

func TestBlendSatisfaction(t *testing.T) {
	current := 8.0
	if got := BlendSatisfaction(&current, 7.0); got != 7.7 {
		t.Errorf("expected 0.7*8.0 + 0.3*7.0 = 7.7, got %v", got)
	}
	if got := BlendSatisfaction(nil, 6.5); got != 6.5 {
		t.Errorf("expected first reading to stand alone, got %v", got)
	}
	low := 2.0
	if got := BlendSatisfaction(&low, 10.0); got != 4.4 {
		t.Errorf("expected 0.7*2.0 + 0.3*10.0 = 4.4, got %v", got)
	}
}

type mockConfirmer struct {
	confirmFunc func(ctx context.Context, message, candidate string) (bool, error)
	calls       int
}

func (m *mockConfirmer) ConfirmIntent(ctx context.Context, message, candidate string) (bool, error) {
	m.calls++
	return m.confirmFunc(ctx, message, candidate)
}

func TestDetectIntent(t *testing.T) {
	t.Run("short pause message trusts keywords without AI", func(t *testing.T) {
		confirmer := &mockConfirmer{confirmFunc: func(ctx context.Context, message, candidate string) (bool, error) {
			t.Fatal("AI confirmation should not run for short messages")
			return false, nil
		}}
		intent, err := DetectIntent(context.Background(), "Please pause my check-ins for now", confirmer)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != IntentPause {
			t.Errorf("expected pause, got %s", intent)
		}
	})

	t.Run("long message with keyword needs AI confirmation", func(t *testing.T) {
		longMsg := "I keep telling myself I need to stop overthinking the product and just start talking to customers, because every week I plan and plan and never actually pick up the phone to call any of the prospects on my list."
		confirmer := &mockConfirmer{confirmFunc: func(ctx context.Context, message, candidate string) (bool, error) {
			return false, nil
		}}
		intent, err := DetectIntent(context.Background(), longMsg, confirmer)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != IntentNormal {
			t.Errorf("expected AI-rejected keyword hit to be normal, got %s", intent)
		}
		if confirmer.calls != 1 {
			t.Errorf("expected one confirmation call, got %d", confirmer.calls)
		}
	})

	t.Run("long message confirmed by AI keeps intent", func(t *testing.T) {
		longMsg := "Things have gotten really hectic with my day job and family stuff lately, so I think the right move is to take a break from coaching for a month or two until the dust settles and I can give this real attention again."
		confirmer := &mockConfirmer{confirmFunc: func(ctx context.Context, message, candidate string) (bool, error) {
			if candidate != IntentPause {
				t.Errorf("expected pause candidate, got %s", candidate)
			}
			return true, nil
		}}
		intent, err := DetectIntent(context.Background(), longMsg, confirmer)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != IntentPause {
			t.Errorf("expected confirmed pause, got %s", intent)
		}
	})

	t.Run("resume wins over pause keywords", func(t *testing.T) {
		intent, err := DetectIntent(context.Background(), "break's over, ready to resume", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != IntentResume {
			t.Errorf("expected resume, got %s", intent)
		}
	})

	t.Run("ordinary message is normal", func(t *testing.T) {
		intent, err := DetectIntent(context.Background(), "I interviewed two plumbers about scheduling pain", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent != IntentNormal {
			t.Errorf("expected normal, got %s", intent)
		}
	})
}
