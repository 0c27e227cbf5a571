// Package mailsender собирает воркер доставки писем: читает очередь писем
// из RabbitMQ и отправляет их по SMTP или складывает файлами.
package mailsender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/smtp"
	"github.com/magabrotheeeer/software-marketplace/internal/services/mailer"
)

// App — воркер доставки писем.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *mailer.Sender
	logger *slog.Logger
}

// New подключается к брокеру и готовит отправителя.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "mailsender.New"

	sender, err := mailer.NewSender(smtp.NewTransport(cfg.SMTP, logger), mailer.SenderOptions{
		From:         cfg.MailFrom,
		TemplatesDir: cfg.TemplatesDir,
		SaveToDir:    cfg.SaveToDir,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMailQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:   conn,
		ch:     ch,
		sender: sender,
		logger: logger,
	}, nil
}

// Run обрабатывает очередь писем, пока ctx не отменён.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumeMessages(ctx, a.ch, rabbitmq.MailQueue, a.sender.Handle, a.logger)
	if err != nil {
		a.logger.Error("failed to consume mail queue", sl.Err(err))
	}

	a.logger.Info("mail sender shutting down gracefully")
	if cerr := a.ch.Close(); cerr != nil {
		a.logger.Error("failed to close channel", sl.Err(cerr))
	}
	if cerr := a.conn.Close(); cerr != nil {
		a.logger.Error("failed to close connection", sl.Err(cerr))
	}
	return err
}
