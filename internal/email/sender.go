package email

import (
	"context"
	"errors"
)

// Message es un correo listo para enviar, con cuerpo en texto plano y HTML.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender define la interfaz para el envio de correos.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
