package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// LedgerUseCase contém as operações de leitura e recálculo do livro de vendas
type LedgerUseCase struct {
	repository Repository
}

// NewLedgerUseCase cria uma nova instância de LedgerUseCase
func NewLedgerUseCase(repository Repository) *LedgerUseCase {
	return &LedgerUseCase{repository: repository}
}

// RecomputeTotal recalcula o total a partir das linhas. Idempotente.
func (uc *LedgerUseCase) RecomputeTotal(ctx context.Context, folio int64) (int64, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	total, err := uc.repository.RecomputeTotal(ctx, tx, folio)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("erro ao comitar recálculo: %w", err)
	}

	logrus.WithFields(logrus.Fields{"folio": folio, "total": total}).Debug("🧮 [RECOMPUTE] total persisted")
	return total, nil
}

func (uc *LedgerUseCase) ListForCustomer(ctx context.Context, customerID int64) ([]Sale, error) {
	return uc.repository.ListForCustomer(ctx, customerID)
}

// GetForCustomer devolve a venda apenas para o próprio cliente
func (uc *LedgerUseCase) GetForCustomer(ctx context.Context, customerID, folio int64) (*Sale, error) {
	sale, err := uc.repository.GetSale(ctx, folio)
	if err != nil {
		return nil, err
	}
	if sale.CustomerID != customerID {
		return nil, ErrSaleNotFound.With("folio", folio)
	}
	return sale, nil
}

func (uc *LedgerUseCase) FindByExternalTransactionID(ctx context.Context, externalID string) (*Sale, error) {
	return uc.repository.GetByExternalTransactionID(ctx, externalID)
}
