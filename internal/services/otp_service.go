package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/example/farm2market/internal/utils"
)

var (
	ErrCodeNotFound = errors.New("no verification code for this phone number")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("invalid verification code")
)

// CodeSender delivers a one-time code to a phone number. SMS/WhatsApp
// transport is an external collaborator; the default sender only logs.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the application log. Used in development and
// whenever no real delivery channel is configured.
type LogSender struct{}

func (LogSender) SendCode(_ context.Context, phone, code string) error {
	log.Printf("[OTP] code for %s: %s", phone, code)
	return nil
}

type otpEntry struct {
	codeHash  string
	expiresAt time.Time
}

// OTPService issues and verifies one-time codes, keyed by phone number.
// Codes are stored bcrypt-hashed, expire after the configured TTL, and are
// single-use. Storage is in-memory with a background cleanup sweep.
type OTPService struct {
	mu      sync.Mutex
	entries map[string]*otpEntry
	ttl     time.Duration
	sender  CodeSender
}

func NewOTPService(ttl time.Duration, sender CodeSender) *OTPService {
	s := &OTPService{
		entries: make(map[string]*otpEntry),
		ttl:     ttl,
		sender:  sender,
	}
	go s.cleanupLoop()
	return s
}

// Issue generates a six-digit code for the phone, stores its hash, and
// hands the plaintext to the sender. A newer code replaces any pending one.
func (s *OTPService) Issue(ctx context.Context, phone string) error {
	code, err := generateCode(6)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	hash, err := utils.HashCode(code)
	if err != nil {
		return fmt.Errorf("hash verification code: %w", err)
	}

	s.mu.Lock()
	s.entries[phone] = &otpEntry{
		codeHash:  hash,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return s.sender.SendCode(ctx, phone, code)
}

// Verify checks the code against the pending entry for the phone. The entry
// is consumed on success and discarded on expiry.
func (s *OTPService) Verify(_ context.Context, phone, code string) error {
	s.mu.Lock()
	entry, ok := s.entries[phone]
	s.mu.Unlock()

	if !ok {
		return ErrCodeNotFound
	}

	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, phone)
		s.mu.Unlock()
		return ErrCodeExpired
	}

	if !utils.CheckCode(entry.codeHash, code) {
		return ErrCodeMismatch
	}

	s.mu.Lock()
	delete(s.entries, phone)
	s.mu.Unlock()
	return nil
}

func (s *OTPService) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for phone, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, phone)
			}
		}
		s.mu.Unlock()
	}
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}
