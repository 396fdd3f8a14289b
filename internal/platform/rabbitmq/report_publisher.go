package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"buildscope/internal/model"
)

// ReportPublisher enqueues client error and CSP reports for the persist
// worker.
type ReportPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewReportPublisher(conn *amqp.Connection, queueName string) *ReportPublisher {
	return &ReportPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ReportPublisher) Publish(ctx context.Context, report model.ErrorReport) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    report.ReportedAt,
			Type:         report.Kind,
		},
	); err != nil {
		return fmt.Errorf("publish report failed: %w", err)
	}
	return nil
}
