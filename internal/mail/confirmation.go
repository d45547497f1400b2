package mail

import (
	"fmt"
	"time"

	"github.com/treechat-dev/treechat/internal/domain"
)

// LinkBuilder renders the confirmation links and mail bodies pointing back at
// this server's confirm endpoint.
type LinkBuilder struct {
	protocol string
	host     string
	port     int
}

func NewLinkBuilder(protocol, host string, port int) *LinkBuilder {
	return &LinkBuilder{protocol: protocol, host: host, port: port}
}

// ConfirmationLink builds the one-shot link mailed to the recipient. The
// confirm endpoint parses the three path segments back out.
func (b *LinkBuilder) ConfirmationLink(code, recipient string, kind domain.ActionKind) string {
	return fmt.Sprintf("%s://%s:%d/api/utility/task/confirm/%s/%s/%s",
		b.protocol, b.host, b.port, code, recipient, kind.Key())
}

// ConfirmationSubject is the subject line for a confirmation mail.
func (b *LinkBuilder) ConfirmationSubject(kind domain.ActionKind) string {
	return fmt.Sprintf("Confirm your request %s", kind.ProcessDescription())
}

// ConfirmationBodyHTML renders the HTML confirmation mail.
func (b *LinkBuilder) ConfirmationBodyHTML(code, recipient string, kind domain.ActionKind, ttl time.Duration) string {
	link := b.ConfirmationLink(code, recipient, kind)
	return fmt.Sprintf(
		"<html><body>"+
			"<p>You requested %s.</p>"+
			"<p><a href=%q>Click here to confirm</a></p>"+
			"<p>The link expires in %s. If you did not request this, ignore this message.</p>"+
			"</body></html>",
		kind.ProcessDescription(), link, formatTTL(ttl))
}

// ConfirmationBodyPlain renders the plain-text fallback.
func (b *LinkBuilder) ConfirmationBodyPlain(code, recipient string, kind domain.ActionKind, ttl time.Duration) string {
	link := b.ConfirmationLink(code, recipient, kind)
	return fmt.Sprintf(
		"You requested %s.\r\n\r\n"+
			"Open this link to confirm: %s\r\n\r\n"+
			"The link expires in %s. If you did not request this, ignore this message.\r\n",
		kind.ProcessDescription(), link, formatTTL(ttl))
}

func formatTTL(ttl time.Duration) string {
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		hours := int(ttl / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(ttl / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
