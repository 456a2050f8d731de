package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/matheusmosca/supplements-store/services/store/ledger"
)

const SaleConfirmedTopic = "sale.confirmed"

// MessageWriter é satisfeito por *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SaleConfirmedEvent é o payload publicado no tópico sale.confirmed
type SaleConfirmedEvent struct {
	EventID               string            `json:"event_id"`
	Type                  string            `json:"type"`
	OccurredAt            time.Time         `json:"occurred_at"`
	Folio                 int64             `json:"folio"`
	CustomerID            int64             `json:"customer_id"`
	Total                 int64             `json:"total"`
	ExternalTransactionID string            `json:"external_transaction_id,omitempty"`
	Items                 []ledger.LineItem `json:"items"`
}

// KafkaNotifier publica a venda confirmada para outros consumidores
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaNotifier cria uma nova instância de KafkaNotifier
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// ParseBrokers separa a lista CSV de brokers; vazia desliga o canal
func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaWriter cria o writer do tópico com chave por folio
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (n *KafkaNotifier) Channel() string {
	return "kafka"
}

func (n *KafkaNotifier) SendSaleConfirmation(ctx context.Context, msg SaleConfirmation) error {
	event := SaleConfirmedEvent{
		EventID:               uuid.NewString(),
		Type:                  SaleConfirmedTopic,
		OccurredAt:            time.Now().UTC(),
		Folio:                 msg.Sale.Folio,
		CustomerID:            msg.CustomerID,
		Total:                 msg.Sale.Total,
		ExternalTransactionID: msg.Sale.ExternalTransactionID,
		Items:                 msg.Sale.Items,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.Sale.Folio, 10)),
		Value: data,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", SaleConfirmedTopic, err)
	}
	return nil
}
