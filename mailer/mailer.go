package mailer

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/go-mail/mail"

	"github.com/karvelis/authflow"
)

// Config carries SMTP connection settings and the sender identity.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type template struct {
	subject string
	body    string
}

// The %s slot receives the code. Bodies are deliberately plain text.
var templates = map[authflow.CodeKind]template{
	authflow.CodeKindSignUp: {
		subject: "Confirm your email address",
		body:    "Your sign-up verification code is %s. It expires in a few minutes.",
	},
	authflow.CodeKindLogin2FA: {
		subject: "Your sign-in code",
		body:    "Your sign-in verification code is %s. If you did not try to sign in, change your password.",
	},
	authflow.CodeKindPasswordReset: {
		subject: "Password reset code",
		body:    "Your password reset code is %s. If you did not request a reset, you can ignore this message.",
	},
	authflow.CodeKindEmailChange: {
		subject: "Confirm your new email address",
		body:    "Your email change verification code is %s.",
	},
}

// Sender delivers one-time codes over SMTP. Safe for concurrent use; each
// send dials its own connection.
type Sender struct {
	cfg    Config
	dialer *gomail.Dialer
}

var _ authflow.CodeSender = (*Sender)(nil)

func New(cfg Config) (*Sender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("mailer: host and port required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: from address required")
	}

	return &Sender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// SendCode renders the template for kind and delivers it to email. The
// underlying SMTP dial has no context plumbing, so cancellation is only
// honored between messages.
func (s *Sender) SendCode(ctx context.Context, email, code string, kind authflow.CodeKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tpl, ok := templates[kind]
	if !ok {
		return fmt.Errorf("mailer: unknown code kind %q", kind)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", tpl.subject)
	m.SetBody("text/plain", fmt.Sprintf(tpl.body, code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mailer: send failed: %w", err)
	}
	return nil
}
