package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/pkg/db/models"
	pkgerrors "github.com/mvickers/tradepost-backend/pkg/errors"
	"github.com/mvickers/tradepost-backend/pkg/logger"
)

type driverSource interface {
	Driver(ctx context.Context, name string) payments.Driver
}

// Syncer mirrors local catalog rows to the payment provider. Every method
// tolerates re-delivery: a mirror that already exists (or is already gone)
// is left alone.
type Syncer struct {
	repo       Repository
	drivers    driverSource
	driverName string
	logg       *logger.Logger
}

// NewSyncer builds the catalog syncer.
func NewSyncer(repo Repository, drivers driverSource, driverName string, logg *logger.Logger) (*Syncer, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if drivers == nil {
		return nil, fmt.Errorf("driver source required")
	}
	if driverName == "" {
		return nil, fmt.Errorf("driver name required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Syncer{repo: repo, drivers: drivers, driverName: driverName, logg: logg}, nil
}

// SyncProductCreated mirrors a new product to the provider.
func (s *Syncer) SyncProductCreated(ctx context.Context, productID uuid.UUID) error {
	product, err := s.loadProduct(ctx, productID)
	if err != nil || product == nil {
		return err
	}
	if product.ProviderProductID != nil {
		return nil
	}
	_, err = s.createProviderProduct(ctx, product)
	return err
}

// SyncProductUpdated pushes local product changes to the provider,
// creating the mirror first when it does not exist yet.
func (s *Syncer) SyncProductUpdated(ctx context.Context, productID uuid.UUID) error {
	product, err := s.loadProduct(ctx, productID)
	if err != nil || product == nil {
		return err
	}
	if product.ProviderProductID == nil {
		_, err = s.createProviderProduct(ctx, product)
		return err
	}
	driver := s.drivers.Driver(ctx, s.driverName)
	if mirrored := driver.UpdateProduct(ctx, product); mirrored == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider product update failed")
	}
	return nil
}

// SyncProductDeleted removes the provider mirror of a product.
func (s *Syncer) SyncProductDeleted(ctx context.Context, productID uuid.UUID) error {
	product, err := s.loadProduct(ctx, productID)
	if err != nil || product == nil {
		return err
	}
	if product.ProviderProductID == nil {
		return nil
	}
	driver := s.drivers.Driver(ctx, s.driverName)
	if ok := driver.DeleteProduct(ctx, *product.ProviderProductID); !ok {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider product delete failed")
	}
	return s.repo.SetProviderProductID(ctx, product.ID, nil)
}

// SyncPriceCreated mirrors a new price, ensuring its product mirror exists.
func (s *Syncer) SyncPriceCreated(ctx context.Context, priceID uuid.UUID) error {
	price, err := s.loadPrice(ctx, priceID)
	if err != nil || price == nil {
		return err
	}
	if price.ProviderPriceID != nil {
		return nil
	}
	return s.createProviderPrice(ctx, price)
}

// SyncPriceUpdated rotates the provider mirror of a price. Provider prices
// are immutable, so an update deactivates the old mirror and creates a
// fresh one.
func (s *Syncer) SyncPriceUpdated(ctx context.Context, priceID uuid.UUID) error {
	price, err := s.loadPrice(ctx, priceID)
	if err != nil || price == nil {
		return err
	}
	driver := s.drivers.Driver(ctx, s.driverName)
	if price.ProviderPriceID != nil {
		if ok := driver.DeactivatePrice(ctx, *price.ProviderPriceID); !ok {
			return pkgerrors.New(pkgerrors.CodeDependency, "provider price deactivation failed")
		}
	}
	return s.createProviderPrice(ctx, price)
}

// SyncPriceDeleted deactivates the provider mirror of a price.
func (s *Syncer) SyncPriceDeleted(ctx context.Context, priceID uuid.UUID) error {
	price, err := s.loadPrice(ctx, priceID)
	if err != nil || price == nil {
		return err
	}
	if price.ProviderPriceID == nil {
		return nil
	}
	driver := s.drivers.Driver(ctx, s.driverName)
	if ok := driver.DeactivatePrice(ctx, *price.ProviderPriceID); !ok {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider price deactivation failed")
	}
	return s.repo.SetProviderPriceID(ctx, price.ID, nil)
}

func (s *Syncer) createProviderProduct(ctx context.Context, product *models.Product) (string, error) {
	driver := s.drivers.Driver(ctx, s.driverName)
	mirrored := driver.CreateProduct(ctx, product)
	if mirrored == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "provider product create failed")
	}
	if err := s.repo.SetProviderProductID(ctx, product.ID, &mirrored.ID); err != nil {
		return "", err
	}
	return mirrored.ID, nil
}

func (s *Syncer) createProviderPrice(ctx context.Context, price *models.Price) error {
	product, err := s.loadProduct(ctx, price.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "price has no product")
	}

	providerProductID := ""
	if product.ProviderProductID != nil {
		providerProductID = *product.ProviderProductID
	} else {
		providerProductID, err = s.createProviderProduct(ctx, product)
		if err != nil {
			return err
		}
	}

	driver := s.drivers.Driver(ctx, s.driverName)
	mirrored := driver.CreatePrice(ctx, price, providerProductID)
	if mirrored == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider price create failed")
	}
	return s.repo.SetProviderPriceID(ctx, price.ID, &mirrored.ID)
}

// loadProduct returns nil, nil for rows that no longer exist. Stale sync
// events for deleted rows are dropped rather than retried.
func (s *Syncer) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logCtx := s.logg.WithField(ctx, "product_id", productID.String())
		s.logg.Info(logCtx, "skipping sync for missing product")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Syncer) loadPrice(ctx context.Context, priceID uuid.UUID) (*models.Price, error) {
	price, err := s.repo.FindPriceByID(ctx, priceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logCtx := s.logg.WithField(ctx, "price_id", priceID.String())
		s.logg.Info(logCtx, "skipping sync for missing price")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return price, nil
}
