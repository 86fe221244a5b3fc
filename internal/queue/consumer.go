package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartConsumer connects to RabbitMQ and consumes both core queues,
// appending each event to a per-queue log file under logs/. It runs a
// reconnect loop with exponential backoff and never returns under
// normal operation; processing failures reject the offending message
// without requeueing so a poison message cannot loop forever.
func StartConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("queue-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("queue-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("queue-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{BookingConfirmedQueue, AssetIncidentQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	bookings, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingConfirmedQueue, err)
	}
	incidents, err := ch.Consume(AssetIncidentQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", AssetIncidentQueue, err)
	}

	for {
		select {
		case d, ok := <-bookings:
			if !ok {
				return errors.New("booking deliveries channel closed")
			}
			ackOrReject(d, handleBooking(d.Body))
		case d, ok := <-incidents:
			if !ok {
				return errors.New("incident deliveries channel closed")
			}
			ackOrReject(d, handleIncident(d.Body))
		}
	}
}

func ackOrReject(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("queue-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func handleBooking(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Booking confirmed | occurrence_id=%d | seat_id=%d | code=%s | studio_id=%d | starts_at=%s\n",
		ev.ConfirmedAt, ev.OccurrenceID, ev.SeatID, ev.SeatCode, ev.StudioID, ev.StartsAt)
	return appendLog("booking.log", line)
}

func handleIncident(body []byte) error {
	var ev AssetIncidentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Asset incident | loan=%s | asset=%s | kind=%s | reason=%q\n",
		ev.ReportedAt, ev.LoanCode, ev.AssetCode, ev.Kind, ev.Reason)
	return appendLog("incidents.log", line)
}

func appendLog(name, line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
