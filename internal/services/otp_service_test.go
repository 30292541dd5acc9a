package services

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateOTPProducesSixDigits(t *testing.T) {
	for i := 0; i < 20; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("expected 6 characters, got %q", otp)
		}
		for _, r := range otp {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits only, got %q", otp)
			}
		}
	}
}

func TestOTPVerifyConsumesCode(t *testing.T) {
	service := NewOTPService(10 * time.Minute)
	service.Store("student@nyu.edu", "123456")

	if service.Verify("student@nyu.edu", "000000") {
		t.Fatalf("expected wrong code to fail")
	}
	if !service.Verify("student@nyu.edu", "123456") {
		t.Fatalf("expected correct code to pass")
	}
	if service.Verify("student@nyu.edu", "123456") {
		t.Fatalf("expected consumed code to fail on replay")
	}
}

func TestOTPVerifyUnknownEmail(t *testing.T) {
	service := NewOTPService(10 * time.Minute)
	if service.Verify("nobody@nyu.edu", "123456") {
		t.Fatalf("expected verification without a stored code to fail")
	}
}

func TestOTPVerifyExpiredCode(t *testing.T) {
	service := NewOTPService(10 * time.Minute)

	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return current }

	service.Store("student@nyu.edu", "123456")

	current = current.Add(11 * time.Minute)
	if service.Verify("student@nyu.edu", "123456") {
		t.Fatalf("expected expired code to fail")
	}

	// Expiry removes the entry entirely.
	current = current.Add(-11 * time.Minute)
	if service.Verify("student@nyu.edu", "123456") {
		t.Fatalf("expected expired code to stay gone")
	}
}

func TestOTPEmailBodyMentionsCodeAndTTL(t *testing.T) {
	subject, body := OTPEmailBody("654321", 10)
	if subject == "" {
		t.Fatalf("expected non-empty subject")
	}
	if !strings.Contains(body, "654321") || !strings.Contains(body, "10 minutes") {
		t.Fatalf("expected body to mention code and expiry, got %q", body)
	}
}
