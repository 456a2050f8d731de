package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("customer has no email address")

// Sender é satisfeito por *gomail.Dialer
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier envia a confirmação de compra por SMTP
type EmailNotifier struct {
	sender Sender
	from   string
}

// NewEmailNotifier cria uma nova instância de EmailNotifier
func NewEmailNotifier(sender Sender, from string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from}
}

// NewSMTPDialer monta o dialer do gomail a partir da configuração
func NewSMTPDialer(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

func (n *EmailNotifier) Channel() string {
	return "email"
}

func (n *EmailNotifier) SendSaleConfirmation(ctx context.Context, msg SaleConfirmation) error {
	if msg.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.DialAndSend(n.BuildMessage(msg)); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}

// BuildMessage monta o e-mail com as linhas e o total da venda
func (n *EmailNotifier) BuildMessage(msg SaleConfirmation) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetAddressHeader("To", msg.Email, msg.Name)
	m.SetHeader("Subject", fmt.Sprintf("Order #%d confirmed", msg.Sale.Folio))
	m.SetBody("text/plain", confirmationBody(msg))
	return m
}

func confirmationBody(msg SaleConfirmation) string {
	var b strings.Builder
	name := msg.Name
	if name == "" {
		name = "customer"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Thanks for your purchase. Order #%d, %s.\n\n", msg.Sale.Folio, msg.Sale.Date.Format("2006-01-02 15:04"))
	for _, item := range msg.Sale.Items {
		fmt.Fprintf(&b, "- %s x%d @ $%d = $%d\n", item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal)
	}
	fmt.Fprintf(&b, "\nTotal: $%d\n", msg.Sale.Total)
	if msg.Sale.ExternalTransactionID != "" {
		fmt.Fprintf(&b, "Payment reference: %s\n", msg.Sale.ExternalTransactionID)
	}
	return b.String()
}
