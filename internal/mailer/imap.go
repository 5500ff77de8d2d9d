package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// Client drives one personal inbox over IMAP (fetch/mark-read) and SMTP
// (send). It implements Transport.
type Client struct {
	address  string
	fromName string
	password string
	imapAddr string
	smtpHost string
	smtpPort int
	log      *logrus.Logger
}

func NewClient(address, fromName, password, imapHost string, imapPort int, smtpHost string, smtpPort int, log *logrus.Logger) *Client {
	return &Client{
		address:  strings.ToLower(address),
		fromName: fromName,
		password: password,
		imapAddr: fmt.Sprintf("%s:%d", imapHost, imapPort),
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		log:      log,
	}
}

func (c *Client) connect() (*client.Client, error) {
	imapClient, err := client.DialTLS(c.imapAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	if err := imapClient.Login(c.address, c.password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	return imapClient, nil
}

// FetchUnread returns unread inbox messages, skipping mail from our own
// address. System senders are marked read on the spot so they don't pile up.
func (c *Client) FetchUnread(ctx context.Context, max int) ([]Message, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	return c.fetch(ctx, criteria, max)
}

// FetchUnreadOlderThan returns unread messages older than the given number
// of hours. Used by the cleanup safety net.
func (c *Client) FetchUnreadOlderThan(ctx context.Context, hours, max int) ([]Message, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	// IMAP BEFORE has date granularity; anything before today-1d is >24h old.
	criteria.Before = time.Now().Add(-time.Duration(hours) * time.Hour)
	return c.fetch(ctx, criteria, max)
}

func (c *Client) fetch(ctx context.Context, criteria *imap.SearchCriteria, max int) ([]Message, error) {
	var messages []Message
	err := withRetry(c.log, "IMAP fetch", func() error {
		messages = nil

		imapClient, err := c.connect()
		if err != nil {
			return err
		}
		defer imapClient.Logout()

		if _, err := imapClient.Select("INBOX", false); err != nil {
			return fmt.Errorf("failed to select mailbox: %w", err)
		}

		ids, err := imapClient.Search(criteria)
		if err != nil {
			return fmt.Errorf("failed to search messages: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if len(ids) > max {
			ids = ids[:max]
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(ids...)

		fetched := make(chan *imap.Message, 10)
		done := make(chan error, 1)
		go func() {
			done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, fetched)
		}()

		var systemIDs []uint32
		for msg := range fetched {
			if err := ctx.Err(); err != nil {
				return err
			}

			parsed, fromAddr, err := c.parseMessage(msg)
			if err != nil {
				c.log.Warnf("Failed to parse message %d: %v", msg.SeqNum, err)
				continue
			}
			if fromAddr == c.address {
				continue
			}
			if IsIgnoredSender(fromAddr) {
				systemIDs = append(systemIDs, msg.SeqNum)
				c.log.Infof("Ignoring system email from %s", fromAddr)
				continue
			}
			messages = append(messages, parsed)
		}

		if err := <-done; err != nil {
			return fmt.Errorf("error during fetch: %w", err)
		}

		if len(systemIDs) > 0 {
			if err := storeSeen(imapClient, systemIDs); err != nil {
				c.log.Warnf("Failed to mark system emails read: %v", err)
			}
		}
		return nil
	})
	return messages, err
}

func (c *Client) parseMessage(msg *imap.Message) (Message, string, error) {
	out := Message{IMAPID: msg.SeqNum}

	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.InReplyTo = msg.Envelope.InReplyTo
		out.Subject = msg.Envelope.Subject
		out.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			out.FromEmail = strings.ToLower(from.Address())
			out.FromName = from.PersonalName
		}
	}

	literal := msg.GetBody(&imap.BodySectionName{Peek: true})
	if literal == nil {
		// Some servers key the body under a section name GetBody doesn't
		// match; fall back to any literal present.
		for _, l := range msg.Body {
			literal = l
			break
		}
	}
	if literal == nil {
		return out, out.FromEmail, fmt.Errorf("message body not found")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return out, out.FromEmail, fmt.Errorf("failed to create message reader: %w", err)
	}
	out.References = mr.Header.Get("References")
	if out.InReplyTo == "" {
		out.InReplyTo = mr.Header.Get("In-Reply-To")
	}

	var bodyText, bodyHTML string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return out, out.FromEmail, fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			if strings.Contains(contentType, "text/plain") && bodyText == "" {
				bodyText = string(b)
			} else if strings.Contains(contentType, "text/html") && bodyHTML == "" {
				bodyHTML = string(b)
			}
		}
	}

	out.Body = bodyText
	if out.Body == "" {
		out.Body = bodyHTML
	}
	return out, out.FromEmail, nil
}

// MarkRead sets the Seen flag on a single message.
func (c *Client) MarkRead(ctx context.Context, imapID uint32) error {
	return c.MarkReadBatch(ctx, []uint32{imapID})
}

// MarkReadBatch sets the Seen flag on several messages in one connection.
func (c *Client) MarkReadBatch(ctx context.Context, imapIDs []uint32) error {
	if len(imapIDs) == 0 {
		return nil
	}
	return withRetry(c.log, "IMAP mark read", func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		imapClient, err := c.connect()
		if err != nil {
			return err
		}
		defer imapClient.Logout()

		if _, err := imapClient.Select("INBOX", false); err != nil {
			return fmt.Errorf("failed to select mailbox: %w", err)
		}
		return storeSeen(imapClient, imapIDs)
	})
}

func storeSeen(imapClient *client.Client, ids []uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return imapClient.Store(seqset, item, []interface{}{imap.SeenFlag}, nil)
}
