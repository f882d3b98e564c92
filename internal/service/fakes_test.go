package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store that honours the same
// sentinel errors and conditional updates.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	users     map[int64]*models.User
	addresses map[int64]*models.Address
	products  map[int64]*models.Product
	promos    map[int64]*models.PromoCode
	orders    map[int64]*models.Order
	events    map[string]string
	admin     *models.AdminSettings
	charges   *models.ChargeConfig

	listAddressErr map[int64]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:          map[int64]*models.User{},
		addresses:      map[int64]*models.Address{},
		products:       map[int64]*models.Product{},
		promos:         map[int64]*models.PromoCode{},
		orders:         map[int64]*models.Order{},
		events:         map[string]string{},
		listAddressErr: map[int64]error{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func copyCart(c models.Cart) models.Cart {
	out := models.Cart{}
	for pid, sizes := range c {
		out[pid] = map[string]int{}
		for size, n := range sizes {
			out[pid][size] = n
		}
	}
	return out
}

// users

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.ID = f.id()
	user.CreatedAt = time.Now()
	c := *user
	f.users[user.ID] = &c
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	c.Cart = copyCart(u.Cart)
	return &c, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) SetSelectedAddress(ctx context.Context, userID int64, addressID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.SelectedAddressID = addressID
	return nil
}

func (f *fakeStore) UpdateCart(ctx context.Context, userID int64, fn func(models.Cart) (models.Cart, bool, error)) (models.Cart, error) {
	f.mu.Lock()
	u, ok := f.users[userID]
	if !ok {
		f.mu.Unlock()
		return nil, store.ErrNotFound
	}
	current := copyCart(u.Cart)
	f.mu.Unlock()

	next, changed, err := fn(current)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !changed {
		return copyCart(u.Cart), nil
	}
	u.Cart = copyCart(next)
	return copyCart(next), nil
}

// addresses

func (f *fakeStore) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listAddressErr[userID]; err != nil {
		return nil, err
	}
	var out []models.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetAddress(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeStore) clearDefault(userID, keep int64) {
	for _, a := range f.addresses {
		if a.UserID == userID && a.ID != keep {
			a.IsDefault = false
		}
	}
}

func (f *fakeStore) CreateAddress(ctx context.Context, addr *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr.ID = f.id()
	if addr.IsDefault {
		f.clearDefault(addr.UserID, addr.ID)
	}
	c := *addr
	f.addresses[addr.ID] = &c
	return nil
}

func (f *fakeStore) UpdateAddress(ctx context.Context, addr *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.addresses[addr.ID]
	if !ok || existing.UserID != addr.UserID {
		return store.ErrNotFound
	}
	if addr.IsDefault {
		f.clearDefault(addr.UserID, addr.ID)
	}
	c := *addr
	f.addresses[addr.ID] = &c
	return nil
}

func (f *fakeStore) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	_, err := f.RemoveAddresses(ctx, userID, []int64{addressID})
	return err
}

func (f *fakeStore) RemoveAddresses(ctx context.Context, userID int64, ids []int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	cleared := false
	for _, id := range ids {
		a, ok := f.addresses[id]
		if !ok || a.UserID != userID {
			continue
		}
		delete(f.addresses, id)
		removed++
		if u := f.users[userID]; u != nil && u.SelectedAddressID != nil && *u.SelectedAddressID == id {
			u.SelectedAddressID = nil
			cleared = true
		}
	}
	if removed == 0 {
		return false, store.ErrNotFound
	}
	return cleared, nil
}

func (f *fakeStore) ListAddressOwners(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, a := range f.addresses {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	for id := range f.listAddressErr {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// products

func (f *fakeStore) CreateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	c := *p
	f.products[p.ID] = &c
	return nil
}

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	c := *p
	f.products[p.ID] = &c
	return nil
}

func (f *fakeStore) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

// promos

func (f *fakeStore) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.promos {
		if p.Code == promo.Code {
			return store.ErrDuplicate
		}
	}
	promo.ID = f.id()
	c := *promo
	f.promos[promo.ID] = &c
	return nil
}

func (f *fakeStore) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.promos {
		if p.Code == code {
			c := *p
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PromoCode
	for _, p := range f.promos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeletePromo(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.promos[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.promos, id)
	return nil
}

// settings

func (f *fakeStore) GetAdminSettings(ctx context.Context) (*models.AdminSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admin == nil {
		return nil, store.ErrNotFound
	}
	c := *f.admin
	c.ServiceAreas = append(models.ServiceAreas(nil), f.admin.ServiceAreas...)
	return &c, nil
}

func (f *fakeStore) CreateAdminSettings(ctx context.Context, s *models.AdminSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admin != nil {
		return store.ErrDuplicate
	}
	s.ID = 1
	c := *s
	f.admin = &c
	return nil
}

func (f *fakeStore) UpdateAdminCredentials(ctx context.Context, s *models.AdminSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admin == nil {
		return store.ErrNotFound
	}
	f.admin.Username = s.Username
	f.admin.PasswordHash = s.PasswordHash
	f.admin.CompanyEmail = s.CompanyEmail
	f.admin.CompanyAppPassword = s.CompanyAppPassword
	f.admin.DeliveryAgentEmails = s.DeliveryAgentEmails
	return nil
}

func (f *fakeStore) MutateServiceAreas(ctx context.Context, fn func(models.ServiceAreas) (models.ServiceAreas, error)) (models.ServiceAreas, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admin == nil {
		return nil, store.ErrNotFound
	}
	next, err := fn(append(models.ServiceAreas(nil), f.admin.ServiceAreas...))
	if err != nil {
		return nil, err
	}
	f.admin.ServiceAreas = next
	return next, nil
}

func (f *fakeStore) setAreas(areas ...models.ServiceArea) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admin == nil {
		f.admin = &models.AdminSettings{ID: 1}
	}
	f.admin.ServiceAreas = areas
}

// charges

func (f *fakeStore) GetChargeConfig(ctx context.Context) (*models.ChargeConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.charges == nil {
		return nil, store.ErrNotFound
	}
	c := *f.charges
	c.OtherCharges = append([]models.OtherCharge(nil), f.charges.OtherCharges...)
	return &c, nil
}

func (f *fakeStore) SaveChargeConfig(ctx context.Context, cfg models.ChargeConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg.OtherCharges = append([]models.OtherCharge(nil), cfg.OtherCharges...)
	f.charges = &cfg
	return nil
}

func (f *fakeStore) MutateChargeConfig(ctx context.Context, fn func(models.ChargeConfig) (models.ChargeConfig, error)) (*models.ChargeConfig, error) {
	current, err := f.GetChargeConfig(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	if err := f.SaveChargeConfig(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// orders

func (f *fakeStore) CreateOrder(ctx context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.GatewayOrderID != nil {
		for _, existing := range f.orders {
			if existing.GatewayOrderID != nil && *existing.GatewayOrderID == *o.GatewayOrderID {
				return store.ErrDuplicate
			}
		}
	}
	o.ID = f.id()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = o.CreatedAt
	c := *o
	f.orders[o.ID] = &c
	return nil
}

func (f *fakeStore) putOrder(o models.Order) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.id()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	f.orders[o.ID] = &o
	c := o
	return &c
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (f *fakeStore) GetOrderByGatewayOrderID(ctx context.Context, gid string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.GatewayOrderID != nil && *o.GatewayOrderID == gid {
			c := *o
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) listOrders(keep func(*models.Order) bool) []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeStore) ListOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	return f.listOrders(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (f *fakeStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	return f.listOrders(func(*models.Order) bool { return true }), nil
}

func (f *fakeStore) ListPlacedOrdersSince(ctx context.Context, since time.Time) ([]models.Order, error) {
	return f.listOrders(func(o *models.Order) bool {
		return o.Status != models.OrderStatusPending && !o.CreatedAt.Before(since)
	}), nil
}

func (f *fakeStore) MarkOrderPaid(ctx context.Context, gid, pid, sig string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.GatewayOrderID != nil && *o.GatewayOrderID == gid && o.Status == models.OrderStatusPending {
			o.Status = models.OrderStatusPaid
			o.GatewayPaymentID = &pid
			o.GatewaySignature = &sig
			c := *o
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) DeletePendingOrder(ctx context.Context, gid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, o := range f.orders {
		if o.GatewayOrderID != nil && *o.GatewayOrderID == gid && o.Status == models.OrderStatusPending {
			delete(f.orders, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecordRefund(ctx context.Context, id int64, status string, refund *models.Refund) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != models.OrderStatusPaid {
		return nil, store.ErrNotFound
	}
	o.Status = status
	o.Refund = refund
	c := *o
	return &c, nil
}

func (f *fakeStore) UpdateDeliveryStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o.DeliveryStatus = status
	c := *o
	return &c, nil
}

// setOrderStatus simulates a write landing from another process.
func (f *fakeStore) setOrderStatus(id int64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id].Status = status
}

// processed events

func (f *fakeStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[eventID]
	return ok, nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[eventID] = eventType
	return nil
}

// fakeKV mimics the redis client: plain keys, idempotency keys and locks.
type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	locks  map[string]string
	tokens int
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, locks: map[string]string{}}
}

func (k *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.values[key] = value
	return nil
}

func (k *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.values[key]
	return v, ok, nil
}

func (k *fakeKV) Del(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.values, key)
	}
	return nil
}

func (k *fakeKV) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return k.Set(ctx, "idempotency:"+key, fmt.Sprint(value), ttl)
}

func (k *fakeKV) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	return k.Get(ctx, "idempotency:"+key)
}

func (k *fakeKV) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, held := k.locks[key]; held {
		return "", false, nil
	}
	k.tokens++
	token := fmt.Sprintf("token-%d", k.tokens)
	k.locks[key] = token
	return token, true, nil
}

func (k *fakeKV) ReleaseLock(ctx context.Context, key, token string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks[key] == token {
		delete(k.locks, key)
	}
	return nil
}

// fakeGateway records calls and answers with canned results.
type fakeGateway struct {
	mu        sync.Mutex
	orders    []gateway.CreateOrderRequest
	refunds   []gateway.RefundRequest
	paymentID string
	refundErr error
	orderErr  error
	onRefund  func()
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders = append(g.orders, req)
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", len(g.orders)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) RefundPayment(ctx context.Context, paymentID string, req gateway.RefundRequest) (*gateway.Refund, error) {
	if g.onRefund != nil {
		g.onRefund()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.paymentID = paymentID
	g.refunds = append(g.refunds, req)

	amount := int64(0)
	if req.Amount != nil {
		amount = *req.Amount
	}
	return &gateway.Refund{
		ID:        fmt.Sprintf("rfnd_%d", len(g.refunds)),
		Amount:    amount,
		Status:    models.RefundStatusProcessed,
		PaymentID: paymentID,
		CreatedAt: 1700000000,
	}, nil
}

type sentMail struct {
	to       []string
	subject  string
	template string
	data     map[string]any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]error
}

func (m *fakeMailer) Send(ctx context.Context, to []string, subject, template string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[template]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, template: template, data: data})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type fakePublisher struct {
	mu       sync.Mutex
	placed   []*models.OrderPlacedEvent
	paid     []*models.OrderPaidEvent
	refunded []*models.OrderRefundedEvent
	delivery []*models.OrderDeliveryStatusChangedEvent
	err      error
}

func (p *fakePublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return p.err
}

func (p *fakePublisher) PublishOrderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return p.err
}

func (p *fakePublisher) PublishOrderRefunded(ctx context.Context, e *models.OrderRefundedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunded = append(p.refunded, e)
	return p.err
}

func (p *fakePublisher) PublishOrderDeliveryStatusChanged(ctx context.Context, e *models.OrderDeliveryStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivery = append(p.delivery, e)
	return p.err
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

func addUser(f *fakeStore, name string) *models.User {
	u := &models.User{Name: name, Email: strings.ToLower(name) + "@example.com"}
	if err := f.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}
