package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
)

const principalKey = "auth.principal"

var (
	ErrUnauthenticated = apperr.New(apperr.KindForbidden, "unauthenticated", "missing or invalid bearer token")
	ErrInvalidToken    = errors.New("invalid token")
)

// Principal é o usuário autenticado da requisição
type Principal struct {
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Claims são as claims emitidas pelo serviço de identidade
type Claims struct {
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Verifier valida tokens HS256
type Verifier struct {
	secret []byte
}

// NewVerifier cria uma nova instância de Verifier
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify valida o token e devolve o Principal
func (v *Verifier) Verify(raw string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return Principal{}, ErrInvalidToken
	}

	return Principal{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Name:    claims.Name,
		IsAdmin: claims.IsAdmin,
	}, nil
}

// Middleware exige um bearer token válido
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": ErrUnauthenticated.Message, "code": ErrUnauthenticated.Code})
			return
		}

		principal, err := v.Verify(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": ErrUnauthenticated.Message, "code": ErrUnauthenticated.Code})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// Sign emite um token para o Principal (usado por ferramentas e testes)
func (v *Verifier) Sign(p Principal, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           p.UserID,
		Email:            p.Email,
		Name:             p.Name,
		IsAdmin:          p.IsAdmin,
		RegisteredClaims: claims,
	})
	return token.SignedString(v.secret)
}

// FromContext devolve o Principal posto pelo Middleware
func FromContext(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := value.(Principal)
	return p, ok
}

// WithPrincipal injeta o Principal no contexto gin
func WithPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}
