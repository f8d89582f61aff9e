package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"techwire-be/internal/client"
	"techwire-be/internal/db"
	"techwire-be/internal/notify"
	"techwire-be/internal/stock"
)

// memStore is an in-memory ledger and order store. Transactions run one at a
// time and roll back by restoring a snapshot, like row-locked transactions
// that all touch the same variant. Cross-row lock behavior of Postgres is
// covered by the integration test, not here.
type memStore struct {
	mu       sync.Mutex
	variants map[int64]stock.Variant
	orders   []Order
	nextID   int64

	txErr     error
	lastOpts  db.TxOptions
	insertErr error
}

func newMemStore(variants ...stock.Variant) *memStore {
	m := &memStore{variants: map[int64]stock.Variant{}}
	for _, v := range variants {
		m.variants[v.ID] = v
	}
	return m
}

func (m *memStore) WithinTx(ctx context.Context, opts db.TxOptions, fn func(ctx context.Context, tx db.DBTX) error) error {
	m.mu.Lock()
	m.lastOpts = opts
	m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	variants := make(map[int64]stock.Variant, len(m.variants))
	for k, v := range m.variants {
		variants[k] = v
	}
	orders := append([]Order(nil), m.orders...)
	nextID := m.nextID

	if err := fn(ctx, nil); err != nil {
		m.variants, m.orders, m.nextID = variants, orders, nextID
		return err
	}
	return nil
}

func (m *memStore) txOptions() db.TxOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

func (m *memStore) quantity(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variants[id].Quantity
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) setPrice(productID string, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.variants {
		if v.ProductID == productID {
			v.Price = mustDecimal(price)
			m.variants[id] = v
		}
	}
}

// stock.Repository, called with m.mu held by WithinTx.

func (m *memStore) ResolveForUpdate(_ context.Context, _ db.DBTX, keys []stock.Key) (map[stock.Key]stock.Variant, error) {
	want := map[stock.Key]bool{}
	for _, k := range keys {
		want[k] = true
	}
	out := map[stock.Key]stock.Variant{}
	for _, v := range m.variants {
		k := stock.Key{ProductID: v.ProductID, Size: v.Size}
		if want[k] {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) Resolve(ctx context.Context, q db.DBTX, keys []stock.Key) (map[stock.Key]stock.Variant, error) {
	return m.ResolveForUpdate(ctx, q, keys)
}

func (m *memStore) LookupProducts(context.Context, db.DBTX, []string) (map[string]stock.ProductRef, error) {
	return map[string]stock.ProductRef{}, nil
}

func (m *memStore) Decrement(_ context.Context, _ db.DBTX, id int64, qty int) (bool, error) {
	v, ok := m.variants[id]
	if !ok || v.Quantity < qty {
		return false, nil
	}
	v.Quantity -= qty
	m.variants[id] = v
	return true, nil
}

func (m *memStore) DecrementBySize(context.Context, db.DBTX, string, string, int) (stock.Outcome, error) {
	return stock.Missing, nil
}

func (m *memStore) DecrementProductStock(context.Context, db.DBTX, string, int) (stock.Outcome, error) {
	return stock.Missing, nil
}

// Repository

func (m *memStore) Insert(_ context.Context, _ db.DBTX, o *Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.orders {
		if existing.OrderID == o.OrderID {
			return ErrConflict
		}
	}
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	cp.Products = append(LineItems(nil), o.Products...)
	m.orders = append(m.orders, cp)
	return nil
}

func (m *memStore) Delete(context.Context, db.DBTX, int64) error { return nil }

func (m *memStore) SetProviderOrderID(context.Context, db.DBTX, int64, string) error { return nil }

func (m *memStore) GetByProviderOrderIDForUpdate(context.Context, db.DBTX, string) (*Order, error) {
	return nil, ErrOrderNotFound
}

func (m *memStore) MarkPaid(context.Context, db.DBTX, int64, string, string) error { return nil }

func (m *memStore) MarkStockApplied(context.Context, db.DBTX, int64) error { return nil }

func (m *memStore) MarkFailed(context.Context, string) (bool, error) { return false, nil }

func (m *memStore) GetByOrderID(_ context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderID == orderID {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *memStore) SetStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].OrderID == orderID {
			m.orders[i].Status = status
			cp := m.orders[i]
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *memStore) UpdateDetails(_ context.Context, orderID string, p DetailsPatch) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].OrderID == orderID {
			if p.Name != nil {
				m.orders[i].Name = *p.Name
			}
			if p.ShippingAddress != nil {
				m.orders[i].ShippingAddress = p.ShippingAddress
			}
			cp := m.orders[i]
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		if f.ClientID != "" && o.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeClients struct {
	clients map[string]*client.Client
}

func (f fakeClients) Create(context.Context, *client.Client) error { return nil }

func (f fakeClients) FindByEmail(context.Context, string) (*client.Client, error) {
	return nil, client.ErrClientNotFound
}

func (f fakeClients) GetByID(_ context.Context, id string) (*client.Client, error) {
	if c, ok := f.clients[id]; ok {
		return c, nil
	}
	return nil, client.ErrClientNotFound
}

func (f fakeClients) List(context.Context) ([]client.Client, error) { return nil, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Dispatch(_ context.Context, e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
