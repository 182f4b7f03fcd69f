package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dom/autosalon/internal/verification"
)

// SentEmail is one verification email captured by RecordingMailer.
type SentEmail struct {
	To           string
	EncodedToken string
}

// Token returns the raw token the way the storefront would submit it.
func (e SentEmail) Token() string {
	return verification.Decode(e.EncodedToken)
}

// RecordingMailer captures verification emails instead of sending them. Set
// Err to make every send fail.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) SendVerificationEmail(_ context.Context, to, encodedToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentEmail{To: to, EncodedToken: encodedToken})
	return nil
}

// Fail makes subsequent sends return an SMTP-like error.
func (m *RecordingMailer) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = errors.New("smtp: connection refused")
}

func (m *RecordingMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.Err = nil
}

func (m *RecordingMailer) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.sent...)
}

// Last returns the most recent email sent to address.
func (m *RecordingMailer) Last(address string) (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if strings.EqualFold(m.sent[i].To, address) {
			return m.sent[i], true
		}
	}
	return SentEmail{}, false
}
