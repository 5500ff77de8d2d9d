package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTP reply fragments that indicate the recipient address itself was
// rejected, as opposed to a transient relay problem.
var bounceMarkers = []string{
	"550", "551", "553",
	"recipient address rejected",
	"user unknown",
	"no such user",
	"does not exist",
	"address not found",
}

func isBounceReply(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range bounceMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Send delivers one plain-text email, optionally threaded into an existing
// conversation via In-Reply-To/References. Returns the generated Message-ID.
// A permanently invalid recipient surfaces as *BounceError.
func (c *Client) Send(ctx context.Context, to, subject, body, inReplyTo, references string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", fmt.Errorf("send called with empty recipient")
	}
	if err := checkmail.ValidateFormat(to); err != nil {
		return "", &BounceError{Recipient: to, Err: err}
	}

	domain := c.address
	if at := strings.LastIndex(c.address, "@"); at != -1 {
		domain = c.address[at+1:]
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", c.address, c.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	if inReplyTo != "" {
		m.SetHeader("In-Reply-To", inReplyTo)
		if references == "" {
			references = inReplyTo
		}
		m.SetHeader("References", references)
	}
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(c.smtpHost, c.smtpPort, c.address, c.password)

	err := withRetry(c.log, "SMTP send", func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.DialAndSend(m); err != nil {
			if isBounceReply(err) {
				return &BounceError{Recipient: to, Err: err}
			}
			return fmt.Errorf("error sending email: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.Infof("Email sent to %s: %s", to, subject)
	return messageID, nil
}
