// Package email delivers account emails.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/dom/autosalon/internal/logging"
)

const VerificationSubject = "Verify Your Email"

// Sender delivers the verification link for encodedToken to an address.
type Sender interface {
	SendVerificationEmail(ctx context.Context, to, encodedToken string) error
}

var verificationTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body>
  <h2>Verify Your Email</h2>
  <p>Thank you for registering with AutoSalon. Please confirm your email address by clicking the link below:</p>
  <p><a href="{{.Link}}">Verify Email</a></p>
  <p>This link expires in 24 hours. If you did not create an account, you can ignore this message.</p>
</body>
</html>`))

// VerificationURL builds the frontend link for an already URL-encoded token.
func VerificationURL(frontendOrigin, encodedToken string) string {
	return strings.TrimRight(frontendOrigin, "/") + "/verify-email?token=" + encodedToken
}

// RenderVerificationBody renders the HTML body carrying link.
func RenderVerificationBody(link string) (string, error) {
	if _, err := url.Parse(link); err != nil {
		return "", fmt.Errorf("invalid verification link: %w", err)
	}
	var buf bytes.Buffer
	// the token is already escaped, template.URL keeps it from being escaped twice
	err := verificationTemplate.Execute(&buf, struct{ Link template.URL }{template.URL(link)})
	if err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}

// LogSender writes verification links to the log instead of sending mail.
// Used when no SMTP relay is configured.
type LogSender struct {
	frontendOrigin string
	logger         logging.Logger
}

func NewLogSender(frontendOrigin string, logger logging.Logger) *LogSender {
	return &LogSender{frontendOrigin: frontendOrigin, logger: logger}
}

func (s *LogSender) SendVerificationEmail(ctx context.Context, to, encodedToken string) error {
	s.logger.Info(ctx, "verification email not sent, smtp disabled",
		"to", to,
		"link", VerificationURL(s.frontendOrigin, encodedToken),
	)
	return nil
}
