package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/snagtrack/snagtrack/internal/config"
)

// Sender delivers transactional email over SMTP. A Sender with no configured
// host drops messages silently, which keeps local development working without
// a mail server.
type Sender struct {
	cfg     config.SMTPConfig
	baseURL string
}

func NewSender(cfg config.SMTPConfig, baseURL string) *Sender {
	return &Sender{cfg: cfg, baseURL: baseURL}
}

// Enabled reports whether an SMTP host is configured.
func (s *Sender) Enabled() bool {
	return s.cfg.Host != ""
}

// SendInvite emails a team invite code with a join link.
func (s *Sender) SendInvite(ctx context.Context, to, teamName, code string) error {
	if !s.Enabled() {
		return nil
	}

	joinURL := fmt.Sprintf("%s/join?code=%s", s.baseURL, code)

	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}
	msg.Subject(fmt.Sprintf("You've been invited to %s", teamName))
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"You've been invited to join %s.\n\nYour invite code is %s.\n\nJoin here: %s\n\nThe code expires in 7 days.\n",
		teamName, code, joinURL))

	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending invite to %s: %w", to, err)
	}
	return nil
}
