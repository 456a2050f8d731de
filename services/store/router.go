package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/checkout"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
	"github.com/matheusmosca/supplements-store/services/store/payments"
)

type routes struct {
	verifier *auth.Verifier
	catalog  *catalog.CatalogHandler
	cart     *cart.CartHandler
	checkout *checkout.CheckoutHandler
	ledger   *ledger.LedgerHandler
	payments *payments.PaymentHandler
}

func (rt *routes) engine(serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	api := r.Group("/api")
	rt.catalog.Register(api)
	rt.payments.RegisterWebhooks(api)

	private := api.Group("", rt.verifier.Middleware())
	rt.cart.Register(private)
	rt.checkout.Register(private)
	rt.ledger.Register(private)
	rt.payments.Register(private)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if p, ok := auth.FromContext(c); ok {
			entry = entry.WithField("user_id", p.UserID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
