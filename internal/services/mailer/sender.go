package mailer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/smtp"
)

// ErrUnknownTemplate — шаблон письма не найден.
var ErrUnknownTemplate = errors.New("unknown mail template")

// Sender рендерит письма из очереди и доставляет их.
type Sender struct {
	transport smtp.TransportInterface
	templates *template.Template
	from      string
	saveToDir string
	log       *slog.Logger
	now       func() time.Time
}

// SenderOptions — настройки Sender.
type SenderOptions struct {
	From         string
	TemplatesDir string
	// SaveToDir — если задан, письма пишутся в .eml файлы вместо SMTP.
	SaveToDir string
}

// NewSender загружает шаблоны *.html из каталога opts.TemplatesDir.
func NewSender(transport smtp.TransportInterface, opts SenderOptions, log *slog.Logger) (*Sender, error) {
	const op = "mailer.NewSender"
	tmpl, err := template.ParseGlob(filepath.Join(opts.TemplatesDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if opts.SaveToDir != "" {
		if err := os.MkdirAll(opts.SaveToDir, 0o750); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Sender{
		transport: transport,
		templates: tmpl,
		from:      opts.From,
		saveToDir: opts.SaveToDir,
		log:       log,
		now:       time.Now,
	}, nil
}

// Handle обрабатывает сообщение из очереди.
func (s *Sender) Handle(body []byte) error {
	const op = "mailer.Handle"
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	raw, err := s.render(&msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.saveToDir != "" {
		return s.saveToFile(&msg, raw)
	}
	return s.sendEmail(msg.Recipient, raw)
}

// render собирает письмо в формате RFC 5322 с HTML‑телом.
func (s *Sender) render(msg *Message) ([]byte, error) {
	tmpl := s.templates.Lookup(msg.Template + ".html")
	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, msg.Template)
	}
	var html bytes.Buffer
	if err := tmpl.Execute(&html, msg.Data); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	headers := []string{
		"From: " + s.from,
		"To: " + msg.Recipient,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: " + s.now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}
	b.WriteString(strings.Join(headers, "\r\n"))
	b.WriteString("\r\n\r\n")
	b.Write(html.Bytes())
	return b.Bytes(), nil
}

func (s *Sender) saveToFile(msg *Message, raw []byte) error {
	const op = "mailer.saveToFile"
	name := fmt.Sprintf("%s_%s_%s.eml", s.now().UTC().Format("20060102T150405"), msg.Template, uuid.NewString())
	path := filepath.Join(s.saveToDir, name)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email saved to file", slog.String("path", path), slog.String("template", msg.Template))
	return nil
}

func (s *Sender) sendEmail(to string, raw []byte) error {
	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.from), sl.Err(err))
		return err
	}
	if err := client.Rcpt(to); err != nil {
		s.log.Error("failed to set RCPT TO", slog.String("recipient", to), sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write(raw); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.String("to", to))
	return nil
}
