package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
)

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func(body []byte) error

// maxInFlight ограничивает число одновременно обрабатываемых сообщений.
const maxInFlight = 10

// ConsumeMessages читает очередь queueName, пока не отменён ctx или не закрыт
// канал доставки. Сообщения обрабатываются параллельно, не более maxInFlight
// одновременно. Возвращается после завершения всех начатых обработчиков.
func ConsumeMessages(ctx context.Context, ch *amqp.Channel, queueName string, handler Handler, log *slog.Logger) error {
	const op = "rabbitmq.ConsumeMessages"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-delivery:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				handleDelivery(d, handler, log)
			}(d)
		}
	}
}

// Acknowledger — подтверждение доставки, реализуется amqp.Delivery.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(d amqp.Delivery, handler Handler, log *slog.Logger) {
	settle(d, d.Body, d.Redelivered, handler, log)
}

// settle вызывает handler и подтверждает сообщение либо возвращает его
// в очередь. Повторно доставленное сообщение при ошибке отбрасывается.
func settle(a Acknowledger, body []byte, redelivered bool, handler Handler, log *slog.Logger) {
	if err := handler(body); err != nil {
		requeue := !redelivered
		log.Error("failed to handle message", slog.Bool("requeue", requeue), sl.Err(err))
		if nackErr := a.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := a.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
