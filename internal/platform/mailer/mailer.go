package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v5"

	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/common/logger"
)

type Service struct {
	client  mailgun.Mailgun
	domain  string
	from    string
	enabled bool
}

func NewService(cfg *config.Config) *Service {
	enabled := cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != ""

	var client mailgun.Mailgun
	if enabled {
		client = mailgun.NewMailgun(cfg.Mailgun.APIKey)
	}

	return &Service{
		client:  client,
		domain:  cfg.Mailgun.Domain,
		from:    cfg.Mailgun.From,
		enabled: enabled,
	}
}

func (s *Service) IsEnabled() bool {
	return s.enabled
}

// SendVerificationCode отправляет шестизначный код подтверждения почты
func (s *Service) SendVerificationCode(email, code string) error {
	if !s.enabled {
		return fmt.Errorf("email service is not configured")
	}

	subject := "Код подтверждения MergeVerse"
	textBody := fmt.Sprintf("Ваш код подтверждения: %s\n\nКод действителен 10 минут.", code)

	message := mailgun.NewMessage(s.domain, s.from, subject, textBody, email)
	message.SetHTML(fmt.Sprintf(
		"<p>Ваш код подтверждения: <b>%s</b></p><p>Код действителен 10 минут.</p>",
		code,
	))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send verification code to %s: %w", email, err)
	}

	logger.Debug().Str("email", email).Interface("response", resp).Msg("verification code sent")
	return nil
}

// SendPayoutCode отправляет код подтверждения вывода средств
func (s *Service) SendPayoutCode(email, code string) error {
	if !s.enabled {
		return fmt.Errorf("email service is not configured")
	}

	subject := "Подтверждение вывода MergeVerse"
	textBody := fmt.Sprintf("Код подтверждения вывода: %s\n\nКод действителен 10 минут.", code)

	message := mailgun.NewMessage(s.domain, s.from, subject, textBody, email)
	message.SetHTML(fmt.Sprintf(
		"<p>Код подтверждения вывода: <b>%s</b></p><p>Код действителен 10 минут.</p>",
		code,
	))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send payout code to %s: %w", email, err)
	}

	logger.Debug().Str("email", email).Interface("response", resp).Msg("payout code sent")
	return nil
}
