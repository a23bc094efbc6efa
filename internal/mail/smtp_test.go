package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSMTPMailerUnconfigured(t *testing.T) {
	assert.Nil(t, NewSMTPMailer(SMTPConfig{}))
	assert.NotNil(t, NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587}))
}

func TestEnvelopeAddr(t *testing.T) {
	assert.Equal(t, "no-reply@example.com", envelopeAddr("Marketplace <no-reply@example.com>"))
	assert.Equal(t, "plain@example.com", envelopeAddr("plain@example.com"))
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("a@x.io", "b@y.io", "Hola", "Gracias")
	assert.Contains(t, msg, "Subject: Hola\r\n")
	assert.Contains(t, msg, "charset=UTF-8\r\n\r\nGracias\r\n")
}
