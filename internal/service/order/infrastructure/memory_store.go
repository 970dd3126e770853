package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"backoffice/internal/service/order/domain"
)

// MemoryStore 是进程内的 UnitOfWork 实现，用于本地运行与测试。
// 所有工作单元串行执行：fn 在状态快照上运行，成功后整体替换，失败则丢弃快照。
// Do 不可嵌套调用。
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	items     map[int64][]domain.LineItem
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		products:  make(map[int64]domain.Product),
		customers: make(map[int64]domain.Customer),
		orders:    make(map[int64]domain.Order),
		items:     make(map[int64][]domain.LineItem),
	}}
}

func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	repos := domain.Repositories{
		Products:  &memoryProducts{st: snapshot},
		Customers: &memoryCustomers{st: snapshot},
		Orders:    &memoryOrders{st: snapshot},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	// 提交前再检查一次，超时的工作单元不能留下任何写入
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		products:  make(map[int64]domain.Product, len(st.products)),
		customers: make(map[int64]domain.Customer, len(st.customers)),
		orders:    make(map[int64]domain.Order, len(st.orders)),
		items:     make(map[int64][]domain.LineItem, len(st.items)),
		nextID:    st.nextID,
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.orders {
		v.Items = nil
		c.orders[k] = v
	}
	for k, v := range st.items {
		c.items[k] = append([]domain.LineItem(nil), v...)
	}
	return c
}

func (st *memoryState) newID() int64 {
	st.nextID++
	return st.nextID
}

type memoryProducts struct{ st *memoryState }

func (r *memoryProducts) FindForUpdate(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r *memoryProducts) FindByNameForUpdate(_ context.Context, name string) (*domain.Product, error) {
	for _, p := range r.st.products {
		if p.Name == name {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (r *memoryProducts) Create(_ context.Context, product *domain.Product) error {
	for _, p := range r.st.products {
		if p.Name == product.Name {
			return domain.ErrConflict
		}
	}
	product.ID = r.st.newID()
	r.st.products[product.ID] = *product
	return nil
}

func (r *memoryProducts) Save(_ context.Context, product *domain.Product) error {
	if _, ok := r.st.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	r.st.products[product.ID] = *product
	return nil
}

func (r *memoryProducts) List(_ context.Context) ([]*domain.Product, error) {
	products := make([]*domain.Product, 0, len(r.st.products))
	for _, p := range r.st.products {
		p := p
		products = append(products, &p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

type memoryCustomers struct{ st *memoryState }

func (r *memoryCustomers) FindByID(_ context.Context, id int64) (*domain.Customer, error) {
	c, ok := r.st.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (r *memoryCustomers) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	for _, c := range r.st.customers {
		if c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrCustomerNotFound
}

func (r *memoryCustomers) Create(_ context.Context, customer *domain.Customer) error {
	for _, c := range r.st.customers {
		if c.Email == customer.Email {
			return domain.ErrConflict
		}
	}
	customer.ID = r.st.newID()
	r.st.customers[customer.ID] = *customer
	return nil
}

type memoryOrders struct{ st *memoryState }

func (r *memoryOrders) Create(_ context.Context, order *domain.Order) error {
	order.ID = r.st.newID()
	stored := *order
	stored.Items = nil
	r.st.orders[order.ID] = stored
	return nil
}

func (r *memoryOrders) AddItem(_ context.Context, item *domain.LineItem) error {
	if _, ok := r.st.orders[item.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	item.ID = r.st.newID()
	r.st.items[item.OrderID] = append(r.st.items[item.OrderID], *item)
	return nil
}

func (r *memoryOrders) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return r.assemble(o), nil
}

func (r *memoryOrders) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryOrders) UpdateState(_ context.Context, id int64, state domain.State) error {
	o, ok := r.st.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.State = state
	o.UpdatedAt = time.Now()
	r.st.orders[id] = o
	return nil
}

func (r *memoryOrders) List(_ context.Context) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(r.st.orders))
	for _, o := range r.st.orders {
		orders = append(orders, r.assemble(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (r *memoryOrders) assemble(o domain.Order) *domain.Order {
	stored := r.st.items[o.ID]
	o.Items = make([]*domain.LineItem, 0, len(stored))
	for i := range stored {
		item := stored[i]
		o.Items = append(o.Items, &item)
	}
	return &o
}
