package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farm2market/internal/services"
)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: make(map[string]string)}
}

func (s *captureSender) SendCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

func (s *captureSender) codeFor(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone]
}

func TestOTPIssueAndVerify(t *testing.T) {
	sender := newCaptureSender()
	svc := services.NewOTPService(10*time.Minute, sender)
	ctx := context.Background()
	phone := "+911111111111"

	require.NoError(t, svc.Issue(ctx, phone))

	code := sender.codeFor(phone)
	require.Len(t, code, 6)

	assert.NoError(t, svc.Verify(ctx, phone, code))
}

func TestOTPWrongCode(t *testing.T) {
	sender := newCaptureSender()
	svc := services.NewOTPService(10*time.Minute, sender)
	ctx := context.Background()
	phone := "+911111111111"

	require.NoError(t, svc.Issue(ctx, phone))

	err := svc.Verify(ctx, phone, "000000")
	if sender.codeFor(phone) == "000000" {
		t.Skip("generated code collided with the guess")
	}
	assert.ErrorIs(t, err, services.ErrCodeMismatch)
}

func TestOTPSingleUse(t *testing.T) {
	sender := newCaptureSender()
	svc := services.NewOTPService(10*time.Minute, sender)
	ctx := context.Background()
	phone := "+911111111111"

	require.NoError(t, svc.Issue(ctx, phone))
	code := sender.codeFor(phone)

	require.NoError(t, svc.Verify(ctx, phone, code))
	assert.ErrorIs(t, svc.Verify(ctx, phone, code), services.ErrCodeNotFound)
}

func TestOTPUnknownPhone(t *testing.T) {
	svc := services.NewOTPService(10*time.Minute, newCaptureSender())
	assert.ErrorIs(t, svc.Verify(context.Background(), "+910000000000", "123456"), services.ErrCodeNotFound)
}

func TestOTPExpiry(t *testing.T) {
	sender := newCaptureSender()
	svc := services.NewOTPService(-time.Second, sender)
	ctx := context.Background()
	phone := "+911111111111"

	require.NoError(t, svc.Issue(ctx, phone))
	code := sender.codeFor(phone)

	assert.ErrorIs(t, svc.Verify(ctx, phone, code), services.ErrCodeExpired)
	// The expired entry is discarded, not retried.
	assert.ErrorIs(t, svc.Verify(ctx, phone, code), services.ErrCodeNotFound)
}

func TestOTPReissueReplacesCode(t *testing.T) {
	sender := newCaptureSender()
	svc := services.NewOTPService(10*time.Minute, sender)
	ctx := context.Background()
	phone := "+911111111111"

	require.NoError(t, svc.Issue(ctx, phone))
	first := sender.codeFor(phone)

	require.NoError(t, svc.Issue(ctx, phone))
	second := sender.codeFor(phone)

	if first == second {
		t.Skip("consecutive codes collided")
	}
	assert.ErrorIs(t, svc.Verify(ctx, phone, first), services.ErrCodeMismatch)
	assert.NoError(t, svc.Verify(ctx, phone, second))
}
