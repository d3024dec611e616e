package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/api"
	"github.com/dreamsneakers/storeclient/internal/notify"
)

// CatalogAPI is the slice of the backend client the catalog store drives.
type CatalogAPI interface {
	GetProducts(ctx context.Context) ([]api.Product, error)
}

// Catalog holds the product listing. Reads coalesce the same way cart reads
// do; the listing is replaced wholesale on every successful fetch.
type Catalog struct {
	api      CatalogAPI
	notifier notify.Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	products []api.Product
	loading  bool
	err      string
}

func NewCatalog(backend CatalogAPI, notifier notify.Notifier, logger *zap.Logger) *Catalog {
	return &Catalog{
		api:      backend,
		notifier: notifier,
		logger:   logger,
	}
}

// Products returns the last successfully fetched listing. Read-only.
func (c *Catalog) Products() []api.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products
}

func (c *Catalog) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Catalog) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// FetchProducts refreshes the listing from the backend. Malformed entries
// fail the whole fetch with a decode error; the previous listing is kept.
func (c *Catalog) FetchProducts(ctx context.Context, force bool) {
	c.mu.Lock()
	if c.loading && !force {
		c.mu.Unlock()
		return
	}
	c.loading = true
	c.err = ""
	c.mu.Unlock()

	products, err := c.api.GetProducts(ctx)

	if err != nil {
		msg := api.Message(err)
		c.mu.Lock()
		c.loading = false
		c.err = msg
		c.mu.Unlock()
		c.logger.Warn("products fetch failed", zap.Error(err))
		c.notifier.Error(msg)
		return
	}

	c.mu.Lock()
	c.loading = false
	c.products = products
	c.mu.Unlock()
}
