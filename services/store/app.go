package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/checkout"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
	"github.com/matheusmosca/supplements-store/services/store/memstore"
	"github.com/matheusmosca/supplements-store/services/store/notification"
	"github.com/matheusmosca/supplements-store/services/store/payments"
	"github.com/matheusmosca/supplements-store/services/store/payments/mercadopago"
	"github.com/matheusmosca/supplements-store/services/store/payments/paypal"
)

// stores agrupa os repositórios de um mesmo backend
type stores struct {
	tx      storage.Beginner
	catalog catalog.Repository
	carts   cart.Repository
	sales   ledger.Repository
	intents payments.IntentRepository
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		tx:      storage.NewPostgresBeginner(pool),
		catalog: catalog.NewPostgresRepository(pool),
		carts:   cart.NewPostgresRepository(pool),
		sales:   ledger.NewPostgresRepository(pool),
		intents: payments.NewPostgresIntentRepository(pool),
	}
}

func memoryStores(store *memstore.Store) stores {
	return stores{
		tx:      store,
		catalog: store,
		carts:   store,
		sales:   store,
		intents: store,
	}
}

// application reúne o que o serve precisa para subir e desligar
type application struct {
	router     *routes
	dispatcher *notification.Dispatcher
	sweeper    *payments.Sweeper
}

func newApplication(
	cfg Config,
	st stores,
	notifier notification.Notifier,
	processors []payments.Processor,
	tracer trace.Tracer,
	meter metric.Meter,
) (*application, error) {
	dispatcher, err := notification.NewDispatcher(notifier, cfg.NotificationWorkers, cfg.NotificationTimeout, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification dispatcher: %w", err)
	}

	engine, err := checkout.NewEngine(st.tx, st.catalog, st.sales, st.carts, dispatcher, tracer, meter)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create checkout engine: %w", err)
	}

	cartUseCase := cart.NewCartUseCase(st.carts, st.catalog)
	ledgerUseCase := ledger.NewLedgerUseCase(st.sales)

	converter := payments.NewConverter(cfg.StoreCurrency, map[string]decimal.Decimal{
		"USD": cfg.PayPal.CLPPerUSD,
	})
	adapter, err := payments.NewAdapter(processors, st.intents, cartUseCase, ledgerUseCase, engine, converter, meter)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create payment adapter: %w", err)
	}

	r := &routes{
		verifier: auth.NewVerifier(cfg.JWTSecret),
		catalog:  catalog.NewCatalogHandler(catalog.NewCatalogUseCase(st.catalog), tracer),
		cart:     cart.NewCartHandler(cartUseCase, tracer),
		checkout: checkout.NewCheckoutHandler(engine),
		ledger:   ledger.NewLedgerHandler(ledgerUseCase),
		payments: payments.NewPaymentHandler(adapter, tracer),
	}

	return &application{
		router:     r,
		dispatcher: dispatcher,
		sweeper:    payments.NewSweeper(st.intents, cfg.IntentTTL),
	}, nil
}

// buildNotifier liga os canais configurados; nenhum canal devolve nil
func buildNotifier(cfg Config) (notification.Notifier, func() error) {
	var channels notification.Multi
	closeFn := func() error { return nil }

	if cfg.SMTP.Enabled() {
		dialer := notification.NewSMTPDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		channels = append(channels, notification.NewEmailNotifier(dialer, cfg.SMTP.From))
		logrus.WithField("host", cfg.SMTP.Host).Info("📧 Email notifications enabled")
	}

	if brokers := notification.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		writer := notification.NewKafkaWriter(brokers, cfg.KafkaTopic)
		channels = append(channels, notification.NewKafkaNotifier(writer))
		closeFn = writer.Close
		logrus.WithFields(logrus.Fields{
			"brokers": brokers,
			"topic":   cfg.KafkaTopic,
		}).Info("📨 Kafka sale events enabled")
	}

	switch len(channels) {
	case 0:
		logrus.Warn("⚠️ No notification channel configured, confirmations disabled")
		return nil, closeFn
	case 1:
		return channels[0], closeFn
	default:
		return channels, closeFn
	}
}

// buildProcessors cria só os processadores com credenciais
func buildProcessors(cfg Config) []payments.Processor {
	var processors []payments.Processor

	if cfg.PayPal.Enabled() {
		processors = append(processors, paypal.New(paypal.Config{
			BaseURL:   cfg.PayPal.BaseURL,
			ClientID:  cfg.PayPal.ClientID,
			Secret:    cfg.PayPal.Secret,
			ReturnURL: cfg.PayPal.ReturnURL,
			CancelURL: cfg.PayPal.CancelURL,
			Timeout:   cfg.ProcessorTimeout,
		}))
		logrus.Info("💳 PayPal enabled")
	}

	if cfg.MercadoPago.Enabled() {
		processors = append(processors, mercadopago.New(mercadopago.Config{
			BaseURL:         cfg.MercadoPago.BaseURL,
			AccessToken:     cfg.MercadoPago.AccessToken,
			SuccessURL:      cfg.MercadoPago.SuccessURL,
			FailureURL:      cfg.MercadoPago.FailureURL,
			PendingURL:      cfg.MercadoPago.PendingURL,
			NotificationURL: cfg.MercadoPago.NotificationURL,
			Timeout:         cfg.ProcessorTimeout,
		}))
		logrus.Info("💳 Mercado Pago enabled")
	}

	return processors
}

// openStores abre o backend escolhido em STORE_DRIVER
func openStores(ctx context.Context, cfg Config) (stores, func(), error) {
	if cfg.StoreDriver == driverMemory {
		store := memstore.New()
		seedCatalog(store)
		logrus.Warn("⚠️ Using in-memory storage, data is lost on restart")
		return memoryStores(store), func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.Database.DSN()); err != nil {
			return stores{}, nil, err
		}
	}

	pool, err := initDB(ctx, cfg.Database)
	if err != nil {
		return stores{}, nil, err
	}
	return postgresStores(pool), pool.Close, nil
}
