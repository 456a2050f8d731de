package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dispatcher envia notificações fora do caminho da requisição, num pool limitado.
// Falhas são logadas e contadas, nunca propagadas para o checkout.
type Dispatcher struct {
	notifier Notifier
	pool     *ants.Pool
	timeout  time.Duration
	failures metric.Int64Counter

	// mu protege closed e ordena wg.Add antes do wg.Wait de Close
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// ErrDispatcherClosed indica Dispatch depois de Close
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// NewDispatcher cria o pool de workers. notifier nil desliga as notificações.
func NewDispatcher(notifier Notifier, workers int, timeout time.Duration, meter metric.Meter) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"notifications.failed",
		metric.WithDescription("Sale confirmations that could not be delivered"),
	)
	if err != nil {
		pool.Release()
		return nil, err
	}
	return &Dispatcher{
		notifier: notifier,
		pool:     pool,
		timeout:  timeout,
		failures: failures,
	}, nil
}

// Dispatch agenda o envio e devolve na hora
func (d *Dispatcher) Dispatch(ctx context.Context, msg SaleConfirmation) Status {
	if d == nil || d.notifier == nil {
		return StatusDisabled
	}

	// o envio sobrevive ao fim da requisição
	sendCtx := context.WithoutCancel(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.recordFailure(ctx, "pool", msg, ErrDispatcherClosed)
		return StatusFailed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	err := d.pool.Submit(func() {
		defer d.wg.Done()
		d.send(sendCtx, msg)
	})
	if err != nil {
		d.wg.Done()
		d.recordFailure(ctx, "pool", msg, err)
		return StatusFailed
	}
	return StatusQueued
}

func (d *Dispatcher) send(ctx context.Context, msg SaleConfirmation) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.notifier.SendSaleConfirmation(ctx, msg); err != nil {
		d.recordFailure(ctx, d.notifier.Channel(), msg, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"folio":   msg.Sale.Folio,
		"user_id": msg.CustomerID,
	}).Info("📧 [NOTIFY] sale confirmation sent")
}

func (d *Dispatcher) recordFailure(ctx context.Context, channel string, msg SaleConfirmation, err error) {
	logrus.WithFields(logrus.Fields{
		"folio":   msg.Sale.Folio,
		"user_id": msg.CustomerID,
		"channel": channel,
	}).WithError(err).Warn("⚠️ [NOTIFY] sale confirmation failed")
	d.failures.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// Close recusa novos envios, espera os em andamento e libera o pool.
// Chamadas repetidas são no-op.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	d.pool.Release()
}
