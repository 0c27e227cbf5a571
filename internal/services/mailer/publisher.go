// Package mailer отправляет письма по шаблонам: Publisher ставит письмо
// в очередь RabbitMQ, Sender забирает его, рендерит шаблон и доставляет
// по SMTP или сохраняет в файл.
package mailer

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/rabbitmq"
)

// Имена шаблонов писем.
const (
	TemplateConfirmMail   = "ConfirmMail"
	TemplateResetPassword = "ResetPassword"
)

// Message — письмо в очереди.
type Message struct {
	Template  string            `json:"template"`
	Subject   string            `json:"subject"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
}

// Publisher публикует письма в exchange уведомлений.
type Publisher struct {
	ch rabbitmq.Publisher
}

// NewPublisher создаёт Publisher поверх канала ch.
func NewPublisher(ch rabbitmq.Publisher) *Publisher {
	return &Publisher{ch: ch}
}

// SendTemplatedMail ставит письмо в очередь доставки.
func (p *Publisher) SendTemplatedMail(ctx context.Context, template, subject string, data map[string]string, recipient string) error {
	const op = "mailer.SendTemplatedMail"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	msg := Message{
		Template:  template,
		Subject:   subject,
		Recipient: recipient,
		Data:      data,
	}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.ExchangeNotifications, rabbitmq.MailRoutingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
