package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const otpLength = 6

// OTPService issues and checks short-lived email verification codes.
// Codes live in process memory with a TTL and are consumed on first
// successful verification.
type OTPService struct {
	mu    sync.Mutex
	codes map[string]otpEntry
	ttl   time.Duration
	now   func() time.Time
}

type otpEntry struct {
	code      string
	expiresAt time.Time
}

func NewOTPService(ttl time.Duration) *OTPService {
	return &OTPService{
		codes: make(map[string]otpEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func GenerateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}

func (s *OTPService) Store(email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = otpEntry{
		code:      code,
		expiresAt: s.now().Add(s.ttl),
	}
}

// Verify reports whether code matches the stored one for email. A match
// consumes the code so it cannot be replayed.
func (s *OTPService) Verify(email, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[email]
	if !ok {
		return false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.codes, email)
		return false
	}
	if entry.code != code {
		return false
	}

	delete(s.codes, email)
	return true
}

func (s *OTPService) Delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, email)
}
