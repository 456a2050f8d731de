package cart

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

// ProductReader é o que o carrinho precisa do catálogo
type ProductReader interface {
	GetProduct(ctx context.Context, ref catalog.ProductRef) (*catalog.Product, error)
}

// CartUseCase contém a lógica de negócio do carrinho
type CartUseCase struct {
	repository Repository
	products   ProductReader
}

// NewCartUseCase cria uma nova instância de CartUseCase
func NewCartUseCase(repository Repository, products ProductReader) *CartUseCase {
	return &CartUseCase{
		repository: repository,
		products:   products,
	}
}

// View devolve os itens e o total derivado, criando o carrinho se preciso
func (uc *CartUseCase) View(ctx context.Context, userID int64) (View, error) {
	if err := uc.repository.EnsureCart(ctx, userID); err != nil {
		return View{}, err
	}
	items, err := uc.repository.ListItems(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return NewView(items), nil
}

// Items devolve o snapshot atual dos itens do carrinho
func (uc *CartUseCase) Items(ctx context.Context, userID int64) ([]Item, error) {
	return uc.repository.ListItems(ctx, userID)
}

// AddItem adiciona o produto ou soma a quantidade ao item existente.
// A checagem de estoque aqui é só antecipada; o checkout valida de novo.
func (uc *CartUseCase) AddItem(ctx context.Context, userID int64, ref catalog.ProductRef, quantity int) (View, error) {
	if err := ref.Validate(); err != nil {
		return View{}, err
	}
	if err := catalog.ValidateQuantity(quantity); err != nil {
		return View{}, err
	}

	product, err := uc.products.GetProduct(ctx, ref)
	if err != nil {
		return View{}, err
	}

	inCart, err := uc.repository.QuantityFor(ctx, userID, ref, 0)
	if err != nil {
		return View{}, err
	}
	if inCart+quantity > product.Stock {
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"product":   ref.String(),
			"in_cart":   inCart,
			"requested": quantity,
			"stock":     product.Stock,
		}).Info("ℹ️ [CART ADD] insufficient stock")
		return View{}, catalog.InsufficientStock(ref, product.Name, max(product.Stock-inCart, 0), quantity)
	}

	if err := uc.repository.EnsureCart(ctx, userID); err != nil {
		return View{}, err
	}

	item := &Item{
		UserID:    userID,
		Product:   ref,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		ImageRef:  product.ImageRef,
	}
	if err := uc.repository.UpsertItem(ctx, item); err != nil {
		return View{}, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"item_id":  item.ID,
		"product":  ref.String(),
		"quantity": item.Quantity,
	}).Debug("✅ [CART ADD] item saved")

	return uc.View(ctx, userID)
}

// UpdateQuantity troca a quantidade do item; quantidade <= 0 remove o item
func (uc *CartUseCase) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (View, error) {
	if quantity <= 0 {
		if err := uc.RemoveItem(ctx, userID, itemID); err != nil {
			return View{}, err
		}
		return uc.View(ctx, userID)
	}

	item, err := uc.repository.GetItem(ctx, userID, itemID)
	if err != nil {
		return View{}, err
	}

	product, err := uc.products.GetProduct(ctx, item.Product)
	if err != nil {
		return View{}, err
	}

	others, err := uc.repository.QuantityFor(ctx, userID, item.Product, item.ID)
	if err != nil {
		return View{}, err
	}
	if others+quantity > product.Stock {
		return View{}, catalog.InsufficientStock(item.Product, product.Name, max(product.Stock-others, 0), quantity)
	}

	if err := uc.repository.UpdateQuantity(ctx, userID, itemID, quantity); err != nil {
		return View{}, err
	}
	return uc.View(ctx, userID)
}

// RemoveItem remove o item; um segundo delete devolve ErrItemNotFound
func (uc *CartUseCase) RemoveItem(ctx context.Context, userID, itemID int64) error {
	deleted, err := uc.repository.DeleteItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if !deleted {
		return ItemNotFound(itemID)
	}
	return nil
}

// Clear remove todos os itens e devolve quantos foram removidos
func (uc *CartUseCase) Clear(ctx context.Context, userID int64) (int, error) {
	removed, err := uc.repository.Clear(ctx, userID)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "removed": removed}).Info("🧹 [CART CLEAR] done")
	return removed, nil
}

func (uc *CartUseCase) Summary(ctx context.Context, userID int64) (Summary, error) {
	return uc.repository.Summary(ctx, userID)
}
