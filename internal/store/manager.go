package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/api"
	"github.com/dreamsneakers/storeclient/internal/notify"
)

// CartAPI is the slice of the backend client the manager drives.
type CartAPI interface {
	GetCart(ctx context.Context) (*api.CartSnapshot, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, itemID int64, quantity int) error
	RemoveCartItem(ctx context.Context, itemID int64) error
	CreateOrder(ctx context.Context) error
	GetOrders(ctx context.Context) ([]api.OrderSnapshot, error)
}

// Manager owns the authoritative local view of the cart and order history.
// All mutating intents go through the backend; after every successful
// mutation the cart is refetched wholesale, so the local view always
// reflects server-computed totals rather than a local guess.
//
// Create one Manager per application and share it; every state transition is
// atomic under its mutex, and failed operations never wipe previously
// fetched state.
type Manager struct {
	api      CartAPI
	notifier notify.Notifier
	logger   *zap.Logger

	mu            sync.Mutex
	cart          *api.CartSnapshot
	orders        []api.OrderSnapshot
	cartLoading   bool
	ordersLoading bool
	mutating      bool
	err           string

	// Monotonic mutation sequence. Every cart refresh carries the sequence
	// current when it was issued; a response older than the newest issued
	// mutation is discarded, so the snapshot left in place corresponds to
	// the latest mutation rather than the latest-arriving response.
	seq uint64
}

func New(backend CartAPI, notifier notify.Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		api:      backend,
		notifier: notifier,
		logger:   logger,
	}
}

// Cart returns the last successfully fetched cart snapshot, or nil before
// the first fetch. Callers must treat it as read-only.
func (m *Manager) Cart() *api.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart
}

// Orders returns the last successfully fetched order history. Read-only.
func (m *Manager) Orders() []api.OrderSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders
}

// Loading reports whether a cart read is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartLoading
}

// OrdersLoading reports whether an order-history read is in flight.
func (m *Manager) OrdersLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordersLoading
}

// Mutating reports whether a mutating operation is in flight. UI affordances
// are expected to disable while true.
func (m *Manager) Mutating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutating
}

// Err returns the normalized message of the most recent failure, or "".
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// FetchCart refreshes the cart from the backend. A call issued while another
// cart read is in flight is dropped unless force is set, so many observers
// requesting a refresh at once cost a single request. On failure the
// previous cart is kept and the error is recorded and reported.
func (m *Manager) FetchCart(ctx context.Context, force bool) {
	m.mu.Lock()
	if m.cartLoading && !force {
		m.mu.Unlock()
		return
	}
	m.cartLoading = true
	m.err = ""
	seq := m.seq
	m.mu.Unlock()

	m.refreshCart(ctx, seq)
}

// refreshCart issues the cart read and applies the result unless a newer
// mutation was issued while it was in flight.
func (m *Manager) refreshCart(ctx context.Context, seq uint64) {
	snapshot, err := m.api.GetCart(ctx)

	if err != nil {
		msg := api.Message(err)
		m.mu.Lock()
		m.cartLoading = false
		m.err = msg
		m.mu.Unlock()
		m.logger.Warn("cart fetch failed", zap.Error(err))
		m.notifier.Error(msg)
		return
	}

	m.mu.Lock()
	m.cartLoading = false
	if seq < m.seq {
		// A newer mutation's refresh supersedes this response.
		m.mu.Unlock()
		return
	}
	m.cart = snapshot
	m.mu.Unlock()
}

// AddItem adds quantity units of a product to the cart. Non-positive
// quantities are corrected to 1 rather than rejected. The new line becomes
// visible only through the forced refresh that follows a successful create.
func (m *Manager) AddItem(ctx context.Context, productID int64, quantity int) {
	quantity = clampQuantity(quantity)
	m.mutate(ctx, "add item", func(ctx context.Context) error {
		return m.api.AddCartItem(ctx, productID, quantity)
	})
}

// UpdateItem sets the quantity of a cart line, addressed by its line ID.
// Non-positive quantities are corrected to 1; lines leave the cart only
// through RemoveItem.
func (m *Manager) UpdateItem(ctx context.Context, itemID int64, quantity int) {
	quantity = clampQuantity(quantity)
	m.mutate(ctx, "update item", func(ctx context.Context) error {
		return m.api.UpdateCartItem(ctx, itemID, quantity)
	})
}

// RemoveItem deletes a cart line, addressed by its line ID.
func (m *Manager) RemoveItem(ctx context.Context, itemID int64) {
	m.mutate(ctx, "remove item", func(ctx context.Context) error {
		return m.api.RemoveCartItem(ctx, itemID)
	})
}

// Checkout converts the cart into an order. Callers should not invoke it
// while Mutating() is true or the cart is empty. On success the ensuing
// refresh is expected to come back empty and a success notification is
// emitted.
func (m *Manager) Checkout(ctx context.Context) {
	if m.mutate(ctx, "checkout", m.api.CreateOrder) {
		m.notifier.Success("order placed")
	}
}

// FetchOrders refreshes the order history, with the same coalescing
// contract as FetchCart. The list is replaced wholesale on success.
func (m *Manager) FetchOrders(ctx context.Context, force bool) {
	m.mu.Lock()
	if m.ordersLoading && !force {
		m.mu.Unlock()
		return
	}
	m.ordersLoading = true
	m.err = ""
	m.mu.Unlock()

	orders, err := m.api.GetOrders(ctx)

	if err != nil {
		msg := api.Message(err)
		m.mu.Lock()
		m.ordersLoading = false
		m.err = msg
		m.mu.Unlock()
		m.logger.Warn("orders fetch failed", zap.Error(err))
		m.notifier.Error(msg)
		return
	}

	m.mu.Lock()
	m.ordersLoading = false
	m.orders = orders
	m.mu.Unlock()
}

// mutate runs one mutating call under the mutating flag and, on success,
// issues exactly one forced cart refresh before clearing the flag. On
// failure the previous cart is untouched and the error is recorded and
// reported. The flag is restored on every path.
func (m *Manager) mutate(ctx context.Context, op string, call func(context.Context) error) bool {
	m.mu.Lock()
	m.mutating = true
	m.err = ""
	m.mu.Unlock()

	if err := call(ctx); err != nil {
		msg := api.Message(err)
		m.mu.Lock()
		m.mutating = false
		m.err = msg
		m.mu.Unlock()
		m.logger.Warn("cart mutation failed", zap.String("op", op), zap.Error(err))
		m.notifier.Error(msg)
		return false
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.cartLoading = true
	m.mu.Unlock()

	m.refreshCart(ctx, seq)

	m.mu.Lock()
	m.mutating = false
	m.mu.Unlock()
	return true
}

func clampQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}
