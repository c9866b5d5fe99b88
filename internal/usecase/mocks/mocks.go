package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/usecase"
)

// MockPayeeRepository is a mock implementation of PayeeRepository.
type MockPayeeRepository struct {
	mu     sync.RWMutex
	payees map[string]*domain.Payee
	notes  []*domain.PayeeNote

	GetByIDFunc                func(ctx context.Context, id string) (*domain.Payee, error)
	ListFunc                   func(ctx context.Context, limit, offset int) ([]*domain.Payee, error)
	ListPayoutCandidateIDsFunc func(ctx context.Context, cutoff time.Time) ([]string, error)
	AddNoteFunc                func(ctx context.Context, note *domain.PayeeNote) error
	ListNotesFunc              func(ctx context.Context, payeeID string, limit, offset int) ([]*domain.PayeeNote, error)
	SetPayoutsPausedByFunc     func(ctx context.Context, id string, pausedBy domain.PausedBy, updatedAt time.Time) error
}

func NewMockPayeeRepository() *MockPayeeRepository {
	return &MockPayeeRepository{
		payees: make(map[string]*domain.Payee),
	}
}

func (m *MockPayeeRepository) Add(payee *domain.Payee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payees[payee.ID] = payee
}

func (m *MockPayeeRepository) GetByID(ctx context.Context, id string) (*domain.Payee, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payees[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPayeeNotFound
}

func (m *MockPayeeRepository) List(ctx context.Context, limit, offset int) ([]*domain.Payee, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var payees []*domain.Payee
	for _, p := range m.payees {
		payees = append(payees, p)
	}
	return payees, nil
}

func (m *MockPayeeRepository) ListPayoutCandidateIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	if m.ListPayoutCandidateIDsFunc != nil {
		return m.ListPayoutCandidateIDsFunc(ctx, cutoff)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.payees {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockPayeeRepository) AddNote(ctx context.Context, note *domain.PayeeNote) error {
	if m.AddNoteFunc != nil {
		return m.AddNoteFunc(ctx, note)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, note)
	return nil
}

func (m *MockPayeeRepository) ListNotes(ctx context.Context, payeeID string, limit, offset int) ([]*domain.PayeeNote, error) {
	if m.ListNotesFunc != nil {
		return m.ListNotesFunc(ctx, payeeID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var notes []*domain.PayeeNote
	for _, n := range m.notes {
		if n.PayeeID == payeeID {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

// Notes returns every recorded note, for assertions.
func (m *MockPayeeRepository) Notes() []*domain.PayeeNote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.PayeeNote(nil), m.notes...)
}

func (m *MockPayeeRepository) SetPayoutsPausedBy(ctx context.Context, id string, pausedBy domain.PausedBy, updatedAt time.Time) error {
	if m.SetPayoutsPausedByFunc != nil {
		return m.SetPayoutsPausedByFunc(ctx, id, pausedBy, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payees[id]; ok {
		p.PayoutsPausedBy = pausedBy
		p.UpdatedAt = updatedAt
		return nil
	}
	return domain.ErrPayeeNotFound
}

// MockMerchantAccountRepository is a mock implementation of MerchantAccountRepository.
type MockMerchantAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.MerchantAccount

	GetByIDFunc                 func(ctx context.Context, id string) (*domain.MerchantAccount, error)
	GetByProcessorAccountIDFunc func(ctx context.Context, processor domain.ProcessorID, processorAccountID string) (*domain.MerchantAccount, error)
	ListByPayeeFunc             func(ctx context.Context, payeeID string) ([]*domain.MerchantAccount, error)
}

func NewMockMerchantAccountRepository() *MockMerchantAccountRepository {
	return &MockMerchantAccountRepository{
		accounts: make(map[string]*domain.MerchantAccount),
	}
}

func (m *MockMerchantAccountRepository) Add(account *domain.MerchantAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

func (m *MockMerchantAccountRepository) GetByID(ctx context.Context, id string) (*domain.MerchantAccount, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, domain.ErrMerchantAccountNotFound
}

func (m *MockMerchantAccountRepository) GetByProcessorAccountID(ctx context.Context, processor domain.ProcessorID, processorAccountID string) (*domain.MerchantAccount, error) {
	if m.GetByProcessorAccountIDFunc != nil {
		return m.GetByProcessorAccountIDFunc(ctx, processor, processorAccountID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Processor == processor && a.ProcessorAccountID == processorAccountID {
			return a, nil
		}
	}
	return nil, domain.ErrMerchantAccountNotFound
}

func (m *MockMerchantAccountRepository) ListByPayee(ctx context.Context, payeeID string) ([]*domain.MerchantAccount, error) {
	if m.ListByPayeeFunc != nil {
		return m.ListByPayeeFunc(ctx, payeeID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.MerchantAccount
	for _, a := range m.accounts {
		if a.PayeeID == payeeID {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// MockBalanceRepository is a mock implementation of BalanceRepository.
type MockBalanceRepository struct {
	mu       sync.RWMutex
	balances map[string]*domain.Balance

	CreateFunc            func(ctx context.Context, balance *domain.Balance) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Balance, error)
	ListUnpaidFunc        func(ctx context.Context, payeeID string, cutoff time.Time) ([]*domain.Balance, error)
	ListByPaymentFunc     func(ctx context.Context, paymentID string) ([]*domain.Balance, error)
	LockForProcessingFunc func(ctx context.Context, tx usecase.Transaction, ids []string, paymentID string, updatedAt time.Time) ([]*domain.Balance, error)
	UpdateStateFunc       func(ctx context.Context, tx usecase.Transaction, id string, state domain.BalanceState, paymentID string, updatedAt time.Time) error
}

func NewMockBalanceRepository() *MockBalanceRepository {
	return &MockBalanceRepository{
		balances: make(map[string]*domain.Balance),
	}
}

func (m *MockBalanceRepository) Add(balance *domain.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balance.ID] = balance
}

func (m *MockBalanceRepository) Create(ctx context.Context, balance *domain.Balance) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, balance)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balance.ID] = balance
	return nil
}

func (m *MockBalanceRepository) GetByID(ctx context.Context, id string) (*domain.Balance, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[id]; ok {
		return b, nil
	}
	return nil, domain.ErrBalanceNotFound
}

func (m *MockBalanceRepository) ListUnpaid(ctx context.Context, payeeID string, cutoff time.Time) ([]*domain.Balance, error) {
	if m.ListUnpaidFunc != nil {
		return m.ListUnpaidFunc(ctx, payeeID, cutoff)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var balances []*domain.Balance
	for _, b := range m.balances {
		if b.PayeeID == payeeID && b.State == domain.BalanceUnpaid && !b.SettlementDate.After(cutoff) {
			balances = append(balances, b)
		}
	}
	return balances, nil
}

func (m *MockBalanceRepository) ListByPayment(ctx context.Context, paymentID string) ([]*domain.Balance, error) {
	if m.ListByPaymentFunc != nil {
		return m.ListByPaymentFunc(ctx, paymentID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var balances []*domain.Balance
	for _, b := range m.balances {
		if b.PaymentID == paymentID {
			balances = append(balances, b)
		}
	}
	return balances, nil
}

func (m *MockBalanceRepository) LockForProcessing(ctx context.Context, tx usecase.Transaction, ids []string, paymentID string, updatedAt time.Time) ([]*domain.Balance, error) {
	if m.LockForProcessingFunc != nil {
		return m.LockForProcessingFunc(ctx, tx, ids, paymentID, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var locked []*domain.Balance
	for _, id := range ids {
		b, ok := m.balances[id]
		if !ok || b.State != domain.BalanceUnpaid {
			continue
		}
		if err := b.MarkProcessing(paymentID); err != nil {
			continue
		}
		b.UpdatedAt = updatedAt
		locked = append(locked, b)
	}
	return locked, nil
}

func (m *MockBalanceRepository) UpdateState(ctx context.Context, tx usecase.Transaction, id string, state domain.BalanceState, paymentID string, updatedAt time.Time) error {
	if m.UpdateStateFunc != nil {
		return m.UpdateStateFunc(ctx, tx, id, state, paymentID, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[id]; ok {
		b.State = state
		b.PaymentID = paymentID
		b.UpdatedAt = updatedAt
		return nil
	}
	return domain.ErrBalanceNotFound
}

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	CreateFunc                  func(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error
	GetByIDFunc                 func(ctx context.Context, id string) (*domain.Payment, error)
	GetByExternalTransferIDFunc func(ctx context.Context, processor domain.ProcessorID, transferID string) (*domain.Payment, error)
	HasProcessingFunc           func(ctx context.Context, payeeID string) (bool, error)
	SumForCutoffFunc            func(ctx context.Context, payeeID string, cutoff time.Time) (int64, error)
	UpdateFunc                  func(ctx context.Context, payment *domain.Payment) error
	ListByPayeeFunc             func(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Payment, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

func (m *MockPaymentRepository) Add(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetByExternalTransferID(ctx context.Context, processor domain.ProcessorID, transferID string) (*domain.Payment, error) {
	if m.GetByExternalTransferIDFunc != nil {
		return m.GetByExternalTransferIDFunc(ctx, processor, transferID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.Processor == processor && p.ExternalTransferID == transferID {
			return p, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) HasProcessing(ctx context.Context, payeeID string) (bool, error) {
	if m.HasProcessingFunc != nil {
		return m.HasProcessingFunc(ctx, payeeID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.PayeeID == payeeID && (p.State == domain.PaymentCreating || p.State == domain.PaymentProcessing) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockPaymentRepository) SumForCutoff(ctx context.Context, payeeID string, cutoff time.Time) (int64, error) {
	if m.SumForCutoffFunc != nil {
		return m.SumForCutoffFunc(ctx, payeeID, cutoff)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.payments {
		if p.PayeeID == payeeID && p.CutoffDate.Equal(cutoff) && p.State != domain.PaymentFailed && p.State != domain.PaymentCancelled {
			sum += p.AmountCents
		}
	}
	return sum, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Payment, error) {
	if m.ListByPayeeFunc != nil {
		return m.ListByPayeeFunc(ctx, payeeID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var payments []*domain.Payment
	for _, p := range m.payments {
		if p.PayeeID == payeeID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// MockCreditRepository is a mock implementation of CreditRepository.
type MockCreditRepository struct {
	mu      sync.RWMutex
	credits []*domain.Credit

	CreateFunc      func(ctx context.Context, credit *domain.Credit) error
	ListByPayeeFunc func(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Credit, error)
}

func NewMockCreditRepository() *MockCreditRepository {
	return &MockCreditRepository{}
}

func (m *MockCreditRepository) Create(ctx context.Context, credit *domain.Credit) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, credit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits = append(m.credits, credit)
	return nil
}

func (m *MockCreditRepository) ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Credit, error) {
	if m.ListByPayeeFunc != nil {
		return m.ListByPayeeFunc(ctx, payeeID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var credits []*domain.Credit
	for _, c := range m.credits {
		if c.PayeeID == payeeID {
			credits = append(credits, c)
		}
	}
	return credits, nil
}

// Credits returns every recorded credit, for assertions.
func (m *MockCreditRepository) Credits() []*domain.Credit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Credit(nil), m.credits...)
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc          func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc  func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc   func(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublishedFunc func(ctx context.Context, before time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			events = append(events, e)
		}
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if m.DeletePublishedFunc != nil {
		return m.DeletePublishedFunc(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published || e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// Events returns every recorded event, for assertions.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

// EventsOfType returns recorded events with the given type.
func (m *MockOutboxRepository) EventsOfType(eventType string) []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if e.EventType == eventType {
			events = append(events, e)
		}
	}
	return events
}

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository.
type MockWebhookEventRepository struct {
	mu   sync.Mutex
	seen map[string]bool

	SeenFunc          func(ctx context.Context, processor domain.ProcessorID, eventID string) (bool, error)
	MarkProcessedFunc func(ctx context.Context, processor domain.ProcessorID, eventID string, processedAt time.Time) (bool, error)
}

func NewMockWebhookEventRepository() *MockWebhookEventRepository {
	return &MockWebhookEventRepository{
		seen: make(map[string]bool),
	}
}

func (m *MockWebhookEventRepository) Seen(ctx context.Context, processor domain.ProcessorID, eventID string) (bool, error) {
	if m.SeenFunc != nil {
		return m.SeenFunc(ctx, processor, eventID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[string(processor)+":"+eventID], nil
}

func (m *MockWebhookEventRepository) MarkProcessed(ctx context.Context, processor domain.ProcessorID, eventID string, processedAt time.Time) (bool, error) {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, processor, eventID, processedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(processor) + ":" + eventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// MockTransaction is a no-op transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator generates ULIDs, or a scripted sequence when IDs is set.
type MockIDGenerator struct {
	mu  sync.Mutex
	n   int
	IDs []string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n < len(m.IDs) {
		id := m.IDs[m.n]
		m.n++
		return id
	}
	m.n++
	return ulid.Make().String()
}

// MockCache is an in-memory Cache with no TTL enforcement.
type MockCache struct {
	mu    sync.RWMutex
	items map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{
		items: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.items[key]; ok {
		return v, nil
	}
	return nil, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
