package email

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/dom/autosalon/internal/config"
)

const implicitTLSPort = 465

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg            config.SMTPConfig
	frontendOrigin string
	dial           func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPSender(cfg config.SMTPConfig, frontendOrigin string) *SMTPSender {
	s := &SMTPSender{cfg: cfg, frontendOrigin: frontendOrigin}
	s.dial = s.dialAndSend
	return s
}

func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to, encodedToken string) error {
	msg, err := s.buildVerificationMessage(to, encodedToken)
	if err != nil {
		return err
	}
	if err := s.dial(ctx, msg); err != nil {
		return fmt.Errorf("send verification email to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) buildVerificationMessage(to, encodedToken string) (*mail.Msg, error) {
	body, err := RenderVerificationBody(VerificationURL(s.frontendOrigin, encodedToken))
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.Sender()); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(VerificationSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	switch {
	case s.cfg.EnableSSL && s.cfg.Port == implicitTLSPort:
		opts = append(opts, mail.WithSSL())
	case s.cfg.EnableSSL:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
