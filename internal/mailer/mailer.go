package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	maxRetries     = 3
	retryDelayBase = 2 * time.Second
)

// Message is one inbound email as seen by the pipeline.
type Message struct {
	IMAPID     uint32
	MessageID  string
	FromEmail  string
	FromName   string
	Subject    string
	Body       string
	InReplyTo  string
	References string
	Date       time.Time
}

// Transport is the mailbox contract the workflows depend on.
type Transport interface {
	FetchUnread(ctx context.Context, max int) ([]Message, error)
	FetchUnreadOlderThan(ctx context.Context, hours, max int) ([]Message, error)
	MarkRead(ctx context.Context, imapID uint32) error
	MarkReadBatch(ctx context.Context, imapIDs []uint32) error
	Send(ctx context.Context, to, subject, body, inReplyTo, references string) (string, error)
}

// BounceError is a hard delivery failure: the recipient address is presumed
// permanently invalid. Callers check for it with errors.As and must not
// retry.
type BounceError struct {
	Recipient string
	Err       error
}

func (e *BounceError) Error() string {
	return fmt.Sprintf("recipient rejected for %s: %v", e.Recipient, e.Err)
}

func (e *BounceError) Unwrap() error {
	return e.Err
}

// Addresses matching these patterns never enter the coaching pipeline.
var ignoredSenders = []string{
	"noreply", "no-reply", "no_reply",
	"support@",
	"mailer-daemon", "postmaster",
	"notifications", "notify",
	"calendar-notification",
	"workspace-noreply",
	"admin@google", "admin@workspace",
	"googleworkspace",
	"accounts.google",
}

// IsIgnoredSender reports whether this address is a no-reply/system sender.
func IsIgnoredSender(fromAddr string) bool {
	addr := strings.ToLower(fromAddr)
	for _, pattern := range ignoredSenders {
		if strings.Contains(addr, pattern) {
			return true
		}
	}
	return false
}

// withRetry runs a mailbox operation with exponential backoff. Bounces are
// definitive and break out immediately.
func withRetry(log *logrus.Logger, op string, fn func() error) error {
	var lastErr error
	delay := retryDelayBase
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if _, isBounce := lastErr.(*BounceError); isBounce {
			return lastErr
		}
		if attempt < maxRetries {
			log.Warnf("%s failed (attempt %d/%d): %v. Retrying in %s...", op, attempt, maxRetries, lastErr, delay)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, lastErr)
}
