package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/api"
	"github.com/dreamsneakers/storeclient/internal/notify"
)

// fakeBackend is a stateful in-memory CartAPI. Mutations change its cart the
// way the real backend would; GetCart returns a fresh snapshot so the
// manager's wholesale-replace behavior is observable.
type fakeBackend struct {
	mu         sync.Mutex
	lines      []api.CartLine
	orders     []api.OrderSnapshot
	nextItemID int64
	nextOrder  int64

	getCartErr error
	addErr     error
	updateErr  error
	removeErr  error
	orderErr   error
	ordersErr  error

	getCartCalls int
	lastAddQty   int
	lastUpdQty   int
}

func (f *fakeBackend) GetCart(context.Context) (*api.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCartCalls++
	if f.getCartErr != nil {
		return nil, f.getCartErr
	}
	snapshot := &api.CartSnapshot{ID: 1, Items: append([]api.CartLine(nil), f.lines...)}
	for _, line := range f.lines {
		snapshot.TotalItems += line.Quantity
		snapshot.TotalPrice += line.Price * float64(line.Quantity)
	}
	return snapshot, nil
}

func (f *fakeBackend) AddCartItem(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAddQty = quantity
	if f.addErr != nil {
		return f.addErr
	}
	f.nextItemID++
	f.lines = append(f.lines, api.CartLine{ItemID: f.nextItemID, ProductID: productID, Quantity: quantity, Price: 10})
	return nil
}

func (f *fakeBackend) UpdateCartItem(_ context.Context, itemID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdQty = quantity
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.lines {
		if f.lines[i].ItemID == itemID {
			f.lines[i].Quantity = quantity
			return nil
		}
	}
	return &api.Error{Status: 404, Message: "cart item not found"}
}

func (f *fakeBackend) RemoveCartItem(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	for i, line := range f.lines {
		if line.ItemID == itemID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return &api.Error{Status: 404, Message: "cart item not found"}
}

func (f *fakeBackend) CreateOrder(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return f.orderErr
	}
	f.nextOrder++
	order := api.OrderSnapshot{ID: f.nextOrder, Status: "pending"}
	for _, line := range f.lines {
		order.Items = append(order.Items, api.OrderLine{ID: line.ItemID, Quantity: line.Quantity, PriceAtPurchase: line.Price})
		order.TotalPrice += line.Price * float64(line.Quantity)
	}
	f.orders = append(f.orders, order)
	f.lines = nil
	return nil
}

func (f *fakeBackend) GetOrders(context.Context) ([]api.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return append([]api.OrderSnapshot(nil), f.orders...), nil
}

func (f *fakeBackend) cartReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCartCalls
}

func newTestManager(backend CartAPI) (*Manager, *notify.Recorder) {
	recorder := &notify.Recorder{}
	return New(backend, recorder, zap.NewNop()), recorder
}

func TestAddItem_AppearsAfterRefresh(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestManager(backend)

	m.AddItem(context.Background(), 42, 1)

	cart := m.Cart()
	require.NotNil(t, cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(42), cart.Items[0].ProductID)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.False(t, m.Mutating())
	assert.Empty(t, m.Err())
}

func TestAddItem_QuantityFloor(t *testing.T) {
	for _, q := range []int{0, -1, -100} {
		backend := &fakeBackend{}
		m, _ := newTestManager(backend)

		m.AddItem(context.Background(), 42, q)

		assert.Equal(t, 1, backend.lastAddQty, "quantity %d should be clamped to 1", q)
	}
}

func TestUpdateItem_QuantityFloor(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestManager(backend)
	m.AddItem(context.Background(), 42, 2)

	m.UpdateItem(context.Background(), 1, 0)

	assert.Equal(t, 1, backend.lastUpdQty)
	require.Len(t, m.Cart().Items, 1)
	assert.Equal(t, 1, m.Cart().Items[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestManager(backend)
	m.AddItem(context.Background(), 42, 1)
	m.AddItem(context.Background(), 43, 1)

	m.RemoveItem(context.Background(), 1)

	require.Len(t, m.Cart().Items, 1)
	assert.Equal(t, int64(43), m.Cart().Items[0].ProductID)
}

func TestMutation_IssuesExactlyOneRefresh(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestManager(backend)

	m.AddItem(context.Background(), 42, 1)
	assert.Equal(t, 1, backend.cartReads())

	m.UpdateItem(context.Background(), 1, 3)
	assert.Equal(t, 2, backend.cartReads())

	m.RemoveItem(context.Background(), 1)
	assert.Equal(t, 3, backend.cartReads())
}

func TestMutation_FailureKeepsPriorCart(t *testing.T) {
	backend := &fakeBackend{}
	m, recorder := newTestManager(backend)
	m.AddItem(context.Background(), 42, 1)
	before := m.Cart()
	require.NotNil(t, before)
	reads := backend.cartReads()

	backend.addErr = &api.Error{Status: 400, Message: "Out of stock"}
	m.AddItem(context.Background(), 43, 1)

	assert.Same(t, before, m.Cart())
	assert.Equal(t, "Out of stock", m.Err())
	assert.Contains(t, recorder.Errors(), "Out of stock")
	assert.False(t, m.Mutating())
	// No refresh follows a failed mutation.
	assert.Equal(t, reads, backend.cartReads())
}

func TestFetchCart_FailureKeepsPriorCart(t *testing.T) {
	backend := &fakeBackend{}
	m, recorder := newTestManager(backend)
	m.AddItem(context.Background(), 42, 1)
	before := m.Cart()

	backend.mu.Lock()
	backend.getCartErr = &api.Error{Status: 500, Message: "boom"}
	backend.mu.Unlock()
	m.FetchCart(context.Background(), false)

	assert.Same(t, before, m.Cart())
	assert.Equal(t, "boom", m.Err())
	assert.Contains(t, recorder.Errors(), "boom")
	assert.False(t, m.Loading())
}

func TestCheckout_ClearsCartAndNotifies(t *testing.T) {
	backend := &fakeBackend{}
	m, recorder := newTestManager(backend)
	m.AddItem(context.Background(), 42, 2)

	m.Checkout(context.Background())

	require.NotNil(t, m.Cart())
	assert.Empty(t, m.Cart().Items)
	assert.Contains(t, recorder.Successes(), "order placed")

	m.FetchOrders(context.Background(), false)
	require.Len(t, m.Orders(), 1)
	assert.Equal(t, "pending", m.Orders()[0].Status)
	require.Len(t, m.Orders()[0].Items, 1)
	assert.Equal(t, 2, m.Orders()[0].Items[0].Quantity)
}

func TestCheckout_FailureNotifiesAndKeepsCart(t *testing.T) {
	backend := &fakeBackend{}
	m, recorder := newTestManager(backend)
	m.AddItem(context.Background(), 42, 1)
	before := m.Cart()

	backend.mu.Lock()
	backend.orderErr = &api.Error{Status: 500, Message: "payment declined"}
	backend.mu.Unlock()
	m.Checkout(context.Background())

	assert.Same(t, before, m.Cart())
	assert.Contains(t, recorder.Errors(), "payment declined")
	assert.Empty(t, recorder.Successes())
	assert.False(t, m.Mutating())
}

// gatedBackend routes each GetCart call to its own gate channel so tests can
// release in-flight reads in a chosen order.
type gatedBackend struct {
	fakeBackend
	gmu   sync.Mutex
	gates []chan *api.CartSnapshot
	calls int
}

func (g *gatedBackend) GetCart(context.Context) (*api.CartSnapshot, error) {
	g.gmu.Lock()
	n := g.calls
	g.calls++
	gate := g.gates[n]
	g.gmu.Unlock()
	return <-gate, nil
}

func (g *gatedBackend) inFlight() int {
	g.gmu.Lock()
	defer g.gmu.Unlock()
	return g.calls
}

func TestFetchCart_CoalescesConcurrentReads(t *testing.T) {
	backend := &gatedBackend{gates: []chan *api.CartSnapshot{make(chan *api.CartSnapshot, 1)}}
	m, recorder := newTestManager(backend)

	done := make(chan struct{})
	go func() {
		m.FetchCart(context.Background(), false)
		close(done)
	}()

	require.Eventually(t, func() bool { return backend.inFlight() == 1 }, time.Second, time.Millisecond)

	// Issued while the first read is pending: dropped without a request and
	// without touching the error.
	m.FetchCart(context.Background(), false)
	m.FetchCart(context.Background(), false)
	assert.Equal(t, 1, backend.inFlight())
	assert.Empty(t, m.Err())
	assert.Empty(t, recorder.Errors())

	backend.gates[0] <- &api.CartSnapshot{ID: 7}
	<-done
	assert.False(t, m.Loading())
	assert.Equal(t, int64(7), m.Cart().ID)
}

func TestFetchCart_ForceOverridesCoalescing(t *testing.T) {
	backend := &gatedBackend{gates: []chan *api.CartSnapshot{
		make(chan *api.CartSnapshot, 1),
		make(chan *api.CartSnapshot, 1),
	}}
	m, _ := newTestManager(backend)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.FetchCart(context.Background(), false)
	}()
	require.Eventually(t, func() bool { return backend.inFlight() == 1 }, time.Second, time.Millisecond)

	go func() {
		defer wg.Done()
		m.FetchCart(context.Background(), true)
	}()
	require.Eventually(t, func() bool { return backend.inFlight() == 2 }, time.Second, time.Millisecond)

	backend.gates[0] <- &api.CartSnapshot{ID: 1}
	backend.gates[1] <- &api.CartSnapshot{ID: 2}
	wg.Wait()
	assert.False(t, m.Loading())
}

func TestMutation_StaleRefreshDiscarded(t *testing.T) {
	backend := &gatedBackend{gates: []chan *api.CartSnapshot{
		make(chan *api.CartSnapshot, 1),
		make(chan *api.CartSnapshot, 1),
	}}
	m, _ := newTestManager(backend)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.AddItem(context.Background(), 1, 1)
	}()
	require.Eventually(t, func() bool { return backend.inFlight() == 1 }, time.Second, time.Millisecond)

	go func() {
		defer wg.Done()
		m.AddItem(context.Background(), 2, 1)
	}()
	require.Eventually(t, func() bool { return backend.inFlight() == 2 }, time.Second, time.Millisecond)

	// The second mutation's refresh lands first and wins.
	backend.gates[1] <- &api.CartSnapshot{ID: 2}
	require.Eventually(t, func() bool {
		cart := m.Cart()
		return cart != nil && cart.ID == 2
	}, time.Second, time.Millisecond)

	// The first mutation's refresh is older than the latest issued mutation
	// and must be discarded.
	backend.gates[0] <- &api.CartSnapshot{ID: 1}
	wg.Wait()
	assert.Equal(t, int64(2), m.Cart().ID)
	assert.False(t, m.Mutating())
}

func TestFetchOrders_Coalesces(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestManager(backend)

	// Sequential calls both go through; coalescing only gates overlap.
	m.FetchOrders(context.Background(), false)
	m.FetchOrders(context.Background(), false)
	assert.False(t, m.OrdersLoading())
	assert.Empty(t, m.Err())
	assert.Empty(t, m.Orders())
}

func TestBusyFlags_RestoredOnEveryPath(t *testing.T) {
	backend := &fakeBackend{
		getCartErr: &api.Error{Status: 500, Message: "down"},
		addErr:     &api.Error{Status: 500, Message: "down"},
		updateErr:  &api.Error{Status: 500, Message: "down"},
		removeErr:  &api.Error{Status: 500, Message: "down"},
		orderErr:   &api.Error{Status: 500, Message: "down"},
		ordersErr:  &api.Error{Status: 500, Message: "down"},
	}
	m, _ := newTestManager(backend)

	ctx := context.Background()
	m.FetchCart(ctx, false)
	m.AddItem(ctx, 1, 1)
	m.UpdateItem(ctx, 1, 1)
	m.RemoveItem(ctx, 1)
	m.Checkout(ctx)
	m.FetchOrders(ctx, false)

	assert.False(t, m.Loading())
	assert.False(t, m.OrdersLoading())
	assert.False(t, m.Mutating())
}
