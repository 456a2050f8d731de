package notification

import (
	"context"
	"errors"

	"github.com/matheusmosca/supplements-store/services/store/ledger"
)

// Status é o status secundário da notificação devolvido junto com a venda
type Status string

const (
	StatusQueued   Status = "queued"
	StatusFailed   Status = "failed"
	StatusDisabled Status = "disabled"
)

// SaleConfirmation é a mensagem de confirmação de uma venda
type SaleConfirmation struct {
	Sale       ledger.Sale
	CustomerID int64
	Email      string
	Name       string
}

// Notifier envia a confirmação por algum canal
type Notifier interface {
	Channel() string
	SendSaleConfirmation(ctx context.Context, msg SaleConfirmation) error
}

// Multi envia por todos os canais e junta os erros
type Multi []Notifier

func (m Multi) Channel() string {
	return "multi"
}

func (m Multi) SendSaleConfirmation(ctx context.Context, msg SaleConfirmation) error {
	var errs []error
	for _, n := range m {
		if err := n.SendSaleConfirmation(ctx, msg); err != nil {
			errs = append(errs, &ChannelError{Channel: n.Channel(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// ChannelError identifica o canal que falhou
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return e.Channel + ": " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
