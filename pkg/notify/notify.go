// Package notify emails import summaries through Resend. The notifier is
// optional: without an API key every call is a logged no-op.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ImportSummaryMail is the data rendered into the summary email.
type ImportSummaryMail struct {
	FileName   string
	Imported   int
	Duplicates int
	Errors     int
	Status     string
}

// Notifier sends import summaries. Safe to use with a nil client.
type Notifier struct {
	client    *resend.Client
	fromEmail string
	logger    *slog.Logger
}

func New(apiKey, fromEmail string, logger *slog.Logger) *Notifier {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	if fromEmail == "" {
		fromEmail = "Trade Ledger <imports@trade-ledger.dev>"
	}
	return &Notifier{client: client, fromEmail: fromEmail, logger: logger}
}

// SendImportSummary emails one import's outcome to the given address.
func (n *Notifier) SendImportSummary(to string, summary ImportSummaryMail) error {
	if n == nil || n.client == nil || to == "" {
		if n != nil && n.logger != nil {
			n.logger.Debug("notifier not configured, skipping import summary email")
		}
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Import %s</h1>", summary.Status)
	fmt.Fprintf(&b, "<p>File: %s</p>", summary.FileName)
	fmt.Fprintf(&b, "<ul><li>Imported: %d</li><li>Duplicates skipped: %d</li><li>Errors: %d</li></ul>",
		summary.Imported, summary.Duplicates, summary.Errors)

	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      []string{to},
		Subject: fmt.Sprintf("Import %s: %s", summary.Status, summary.FileName),
		Html:    b.String(),
	})
	if err != nil {
		return fmt.Errorf("send import summary: %w", err)
	}
	return nil
}
