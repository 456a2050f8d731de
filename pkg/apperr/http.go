package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Render escreve a resposta de erro. Erros 4xx carregam mensagem e código;
// erros 5xx são genéricos e o detalhe fica só no log do servidor.
func Render(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Wrap(KindInternal, "internal_error", err, "internal error")
	}

	status := HTTPStatus(appErr.Kind)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"code":   appErr.Code,
			"kind":   appErr.Kind,
		}).WithError(err).Error("❌ request failed")

		c.JSON(status, gin.H{"error": "internal server error", "code": "internal_error"})
		return
	}

	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.JSON(status, body)
}
