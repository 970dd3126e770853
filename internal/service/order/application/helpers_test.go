package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice/internal/pkg/retry"
	"backoffice/internal/service/order/application/ledger"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/domain/port"
	"backoffice/internal/service/order/infrastructure"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var testPolicy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

type fixture struct {
	store     *infrastructure.MemoryStore
	uow       domain.UnitOfWork
	customers *CustomerResolver
	orders    *OrderApplicationService
	inventory *InventoryApplicationService
}

type fixtureOptions struct {
	uow         func(domain.UnitOfWork) domain.UnitOfWork
	idempotency port.IdempotencyStore
	adjuster    port.LineAdjuster
	notifier    port.NotificationProducer
	timeout     time.Duration
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	store := infrastructure.NewMemoryStore()
	var uow domain.UnitOfWork = store
	if opts.uow != nil {
		uow = opts.uow(store)
	}
	if opts.timeout == 0 {
		opts.timeout = 5 * time.Second
	}
	l := ledger.NewLedger(tracer)
	customers := NewCustomerResolver(uow, tracer)
	return &fixture{
		store:     store,
		uow:       uow,
		customers: customers,
		orders:    NewOrderApplicationService(uow, l, customers, opts.timeout, testPolicy, tracer, opts.idempotency, opts.adjuster, opts.notifier),
		inventory: NewInventoryApplicationService(uow, l, testPolicy, tracer),
	}
}

func (f *fixture) intake(t *testing.T, name string, qty int, price string) *domain.Product {
	t.Helper()
	p, err := f.inventory.Intake(context.Background(), name, qty, decimal.RequireFromString(price))
	require.NoError(t, err)
	return p
}

func (f *fixture) product(t *testing.T, id int64) *domain.Product {
	t.Helper()
	var p *domain.Product
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		var err error
		p, err = repos.Products.FindForUpdate(ctx, id)
		return err
	}))
	return p
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	views, err := f.orders.ListOrders(context.Background())
	require.NoError(t, err)
	return len(views)
}

func (f *fixture) customerCount(t *testing.T, email string) int {
	t.Helper()
	n := 0
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		_, err := repos.Customers.FindByEmail(ctx, email)
		if err == nil {
			n = 1
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}))
	return n
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// conflictingUoW 让前 failures 个写入订单的工作单元在 fn 执行完后返回 ErrConflict 并回滚
type conflictingUoW struct {
	next     domain.UnitOfWork
	mu       sync.Mutex
	failures int
	attempts int
}

type flaggingOrders struct {
	domain.OrderRepository
	created *bool
}

func (o flaggingOrders) Create(ctx context.Context, order *domain.Order) error {
	*o.created = true
	return o.OrderRepository.Create(ctx, order)
}

func (u *conflictingUoW) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return u.next.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		created := false
		repos.Orders = flaggingOrders{OrderRepository: repos.Orders, created: &created}
		if err := fn(ctx, repos); err != nil {
			return err
		}
		if !created {
			return nil
		}
		u.mu.Lock()
		defer u.mu.Unlock()
		u.attempts++
		if u.failures > 0 {
			u.failures--
			return domain.ErrConflict
		}
		return nil
	})
}

// memoryIdempotency 是 port.IdempotencyStore 的进程内实现
type memoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]int64 // 0 表示处理中
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{entries: make(map[string]int64)}
}

func (m *memoryIdempotency) Claim(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[key]
	switch {
	case !ok:
		m.entries[key] = 0
		return 0, true, nil
	case id == 0:
		return 0, false, port.ErrRequestInFlight
	default:
		return id, false, nil
	}
}

func (m *memoryIdempotency) Complete(_ context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = orderID
	return nil
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] == 0 {
		delete(m.entries, key)
	}
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	placed    []int64
	cancelled []int64
	err       error
}

func (n *recordingNotifier) SendOrderPlaced(_ context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, order.ID)
	return n.err
}

func (n *recordingNotifier) SendOrderCancelled(_ context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, order.ID)
	return n.err
}

type fixedAdjuster struct {
	tax, discount decimal.Decimal
	seen          []port.LineFacts
}

func (a *fixedAdjuster) Adjust(_ context.Context, facts port.LineFacts) (decimal.Decimal, decimal.Decimal, bool, error) {
	a.seen = append(a.seen, facts)
	return a.tax, a.discount, true, nil
}
