package services

import (
	"fmt"
	"net/smtp"
	"strings"
)

type EmailSender interface {
	Send(to, subject, body string) error
}

type SMTPEmailSender struct {
	host     string
	port     string
	username string
	password string
	sender   string
}

func NewSMTPEmailSender(host, port, username, password, sender string) *SMTPEmailSender {
	return &SMTPEmailSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		sender:   sender,
	}
}

func (s *SMTPEmailSender) Send(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func OTPEmailBody(otp string, ttlMinutes int) (subject, body string) {
	subject = "Campus Marketplace - Email Verification Code"
	body = fmt.Sprintf(
		"Your email verification code is: %s\n\n"+
			"This code will expire in %d minutes.\n\n"+
			"If you didn't request this code, please ignore this email.\n",
		otp, ttlMinutes,
	)
	return subject, body
}
