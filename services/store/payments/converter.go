package payments

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
)

var ErrUnsupportedCurrency = apperr.New(apperr.KindInternal, "unsupported_currency", "no conversion rate configured for currency")

// Converter converte valores da moeda da loja (unidade mínima inteira) para a
// moeda do processador. As taxas vêm da configuração, em unidades da loja por
// unidade da moeda de destino.
type Converter struct {
	storeCurrency string
	rates         map[string]decimal.Decimal
}

// NewConverter cria uma nova instância de Converter
func NewConverter(storeCurrency string, rates map[string]decimal.Decimal) *Converter {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for currency, rate := range rates {
		normalized[strings.ToUpper(currency)] = rate
	}
	return &Converter{
		storeCurrency: strings.ToUpper(storeCurrency),
		rates:         normalized,
	}
}

// StoreCurrency devolve a moeda da loja
func (c *Converter) StoreCurrency() string {
	return c.storeCurrency
}

// Convert devolve o valor na moeda pedida, com duas casas quando há conversão
func (c *Converter) Convert(amount int64, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == c.storeCurrency {
		return decimal.NewFromInt(amount), nil
	}
	rate, ok := c.rates[currency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, ErrUnsupportedCurrency.With("currency", currency)
	}
	return decimal.NewFromInt(amount).DivRound(rate, 2), nil
}
