package email

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const productName = "Authkeeper"

const (
	SubjectEmailVerification = "Email Verification"
	SubjectPasswordReset     = "Password Reset"
)

type actionContent struct {
	Product      string
	Name         string
	Intro        string
	Instructions string
	ButtonText   string
	ButtonColor  string
	Link         string
	Outro        string
}

var htmlLayout = htmltemplate.Must(htmltemplate.New("action").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Hi {{.Name}},</h2>
  <p>{{.Intro}}</p>
  <p>{{.Instructions}}</p>
  <p><a href="{{.Link}}" style="background: {{.ButtonColor}}; color: #fff; padding: 10px 18px; border-radius: 4px; text-decoration: none;">{{.ButtonText}}</a></p>
  <p>{{.Outro}}</p>
  <p>{{.Product}}</p>
</body>
</html>
`))

var textLayout = texttemplate.Must(texttemplate.New("action").Parse(`Hi {{.Name}},

{{.Intro}}

{{.Instructions}}
{{.Link}}

{{.Outro}}

{{.Product}}
`))

func render(to, subject string, c actionContent) (Message, error) {
	c.Product = productName
	var html, text bytes.Buffer
	if err := htmlLayout.Execute(&html, c); err != nil {
		return Message{}, err
	}
	if err := textLayout.Execute(&text, c); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// VerificationMessage construye el correo con el enlace de verificacion.
func VerificationMessage(to, username, verificationURL string) (Message, error) {
	return render(to, SubjectEmailVerification, actionContent{
		Name:         username,
		Intro:        "Welcome to " + productName + "! We're very excited to have you on board.",
		Instructions: "To get started, please confirm your email address:",
		ButtonText:   "Confirm your email",
		ButtonColor:  "#22BC66",
		Link:         verificationURL,
		Outro:        "Need help, or have questions? Just reply to this email, we'd love to help.",
	})
}

// PasswordResetMessage construye el correo con el enlace de reseteo.
func PasswordResetMessage(to, username, resetURL string) (Message, error) {
	return render(to, SubjectPasswordReset, actionContent{
		Name:         username,
		Intro:        "Forgot your password? No problem! Use the link below to reset it.",
		Instructions: "To reset your password, please click here:",
		ButtonText:   "Reset your password",
		ButtonColor:  "#C62222",
		Link:         resetURL,
		Outro:        "If you did not request a password reset, you can ignore this email.",
	})
}

// JoinLink concatena base y token sin duplicar barras.
func JoinLink(base, token string) string {
	return strings.TrimRight(base, "/") + "/" + token
}
