package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"nomadHubAPI/internal/config"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrEmailNotConfigured = errors.New("SendGrid API key not configured")

const welcomeSubject = "Добро пожаловать в НОМАД ХАБ! 🚀"

type WelcomeEmail struct {
	Email     string
	Name      string
	PromoCode string
	ChatLink  string
}

type EmailService struct {
	apiKey    string
	host      string
	fromEmail string
	fromName  string
	welcome   *template.Template
}

func NewEmailService(cfg config.SendGrid) *EmailService {
	return &EmailService{
		apiKey:    cfg.APIKey,
		host:      cfg.APIHost,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		welcome:   template.Must(template.New("welcome").Parse(welcomeTemplate)),
	}
}

// SendWelcome delivers the welcome letter with the chat link and promo code.
// Anything but 202 Accepted from SendGrid is an error.
func (s *EmailService) SendWelcome(ctx context.Context, email WelcomeEmail) error {
	if s.apiKey == "" {
		return ErrEmailNotConfigured
	}
	var body bytes.Buffer
	if err := s.welcome.Execute(&body, email); err != nil {
		return fmt.Errorf("failed to render welcome email: %w", err)
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail(email.Name, email.Email))
	personalization.Subject = welcomeSubject
	message.AddPersonalizations(personalization)
	message.AddContent(mail.NewContent("text/html", body.String()))

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	client := &sendgrid.Client{Request: request}

	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to call SendGrid: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("SendGrid rejected email: status %d: %s", resp.StatusCode, resp.Body)
	}

	return nil
}

const welcomeTemplate = `<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h1 style="color: #E07A5F;">Добро пожаловать в НОМАД ХАБ!</h1>
    <p>Привет, {{.Name}}! 👋</p>
    <p>Спасибо за подписку на Core Member. Теперь у вас есть доступ ко всем возможностям клуба!</p>

    <h2 style="color: #0F1A2B;">Ваша ссылка для вступления в закрытый чат:</h2>
    <p><a href="{{.ChatLink}}" style="background: #E07A5F; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px; display: inline-block;">Вступить в Telegram-чат</a></p>

    <h2 style="color: #0F1A2B;">Ваш личный код для скидок у партнёров:</h2>
    <p style="font-size: 24px; font-weight: bold; color: #E07A5F; background: #F4F1DE; padding: 16px; border-radius: 8px; display: inline-block;">{{.PromoCode}}</p>

    <p>Используйте этот код для получения скидок 5-15% у наших партнёров!</p>

    <hr style="border: none; border-top: 1px solid #ddd; margin: 32px 0;">

    <h3>Что дальше?</h3>
    <ul>
        <li>Присоединяйтесь к Telegram-чату и знакомьтесь с сообществом</li>
        <li>Изучайте базу эксклюзивных проектов</li>
        <li>Смотрите записи вебинаров в архиве</li>
        <li>Пользуйтесь скидками от партнёров</li>
    </ul>

    <p>Если у вас есть вопросы, просто ответьте на это письмо!</p>

    <p style="margin-top: 32px;">С уважением,<br><strong>Команда НОМАД ХАБ</strong></p>
</body>
</html>`
