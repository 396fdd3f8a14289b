package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"buildscope/internal/logger"
	"buildscope/internal/model"
	"buildscope/internal/platform/rabbitmq"
)

type ReportStore interface {
	Create(ctx context.Context, report *model.ErrorReport) error
}

var errMalformedReport = errors.New("malformed error report")

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ErrorReportWorker drains the report queue into the error_reports table.
// Malformed deliveries are dropped; store failures are requeued.
type ErrorReportWorker struct {
	conn      *amqp.Connection
	store     ReportStore
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewErrorReportWorker(conn *amqp.Connection, store ReportStore, queueName string, log *logger.Logger) *ErrorReportWorker {
	return &ErrorReportWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log.With("service", "ErrorReportWorker", "queue", queueName),
	}
}

func (w *ErrorReportWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				w.process(workerCtx, d.Body, d)
			}
		}
	}()

	w.log.Info("error report worker started")
	return nil
}

func (w *ErrorReportWorker) process(ctx context.Context, body []byte, d acknowledger) {
	err := w.handle(ctx, body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformedReport):
		w.log.Error("drop error report", "error", err)
		_ = d.Nack(false, false)
	default:
		w.log.Warn("store error report failed, requeueing", "error", err)
		_ = d.Nack(false, true)
	}
}

func (w *ErrorReportWorker) handle(ctx context.Context, body []byte) error {
	var report model.ErrorReport
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("%w: %w", errMalformedReport, err)
	}
	report.ID = 0
	if report.Kind == "" || report.Message == "" {
		return fmt.Errorf("%w: missing kind or message", errMalformedReport)
	}
	if err := w.store.Create(ctx, &report); err != nil {
		return fmt.Errorf("store error report failed: %w", err)
	}
	if report.Severity == model.SeverityHigh {
		w.log.Warn("high severity report stored", "kind", report.Kind, "message", report.Message, "page_url", report.PageURL)
	}
	return nil
}

func (w *ErrorReportWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
