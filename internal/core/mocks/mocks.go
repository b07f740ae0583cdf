package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

// Stubs built on testify/mock. Methods returning a pointer accept nil in
// Return for the "not found" shape.

// first returns the first Return value as T, or T's zero value when it
// was nil.
func first[T any](args mock.Arguments) T {
	v, _ := args.Get(0).(T)
	return v
}

// echo lets a test Return a func(ctx, in) T to build the result from what
// the code under test passed in.
func echo[A, T any](ctx context.Context, args mock.Arguments, in A) T {
	if fn, ok := args.Get(0).(func(context.Context, A) T); ok {
		return fn(ctx, in)
	}
	return first[T](args)
}

type MockUserRepository struct {
	mock.Mock
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	return first[*domain.User](args), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	return first[*domain.User](args), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	return first[*domain.User](args), args.Error(1)
}

type MockTicketRepository struct {
	mock.Mock
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	return echo[*domain.Ticket, *domain.Ticket](ctx, args, ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	return first[*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	return first[*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	return echo[*domain.Ticket, *domain.Ticket](ctx, args, ticket), args.Error(1)
}

func (m *MockTicketRepository) List(ctx context.Context, params ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	return first[[]*domain.Ticket](args), args.Error(1)
}

type MockActivityRepository struct {
	mock.Mock
}

func NewMockActivityRepository() *MockActivityRepository {
	return &MockActivityRepository{}
}

func (m *MockActivityRepository) Create(ctx context.Context, entry *domain.ActivityEntry) (*domain.ActivityEntry, error) {
	args := m.Called(ctx, entry)
	return echo[*domain.ActivityEntry, *domain.ActivityEntry](ctx, args, entry), args.Error(1)
}

func (m *MockActivityRepository) ListByTicketID(ctx context.Context, ticketID int64, afterID int64, limit int) ([]*domain.ActivityEntry, error) {
	args := m.Called(ctx, ticketID, afterID, limit)
	return first[[]*domain.ActivityEntry](args), args.Error(1)
}

type MockAppliedWriteRepository struct {
	mock.Mock
}

func NewMockAppliedWriteRepository() *MockAppliedWriteRepository {
	return &MockAppliedWriteRepository{}
}

func (m *MockAppliedWriteRepository) Record(ctx context.Context, id uuid.UUID, kind string, actorID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, kind, actorID)
	return args.Bool(0), args.Error(1)
}

type MockIdentityStore struct {
	mock.Mock
}

func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{}
}

func (m *MockIdentityStore) FindByID(ctx context.Context, id uuid.UUID) (domain.Identity, error) {
	args := m.Called(ctx, id)
	return first[domain.Identity](args), args.Error(1)
}

type MockRefreshLedger struct {
	mock.Mock
}

func NewMockRefreshLedger() *MockRefreshLedger {
	return &MockRefreshLedger{}
}

func (m *MockRefreshLedger) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, jti, ttl)
	return args.Bool(0), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func (m *MockAuthService) Register(ctx context.Context, fullName, email, password string) (*domain.User, error) {
	args := m.Called(ctx, fullName, email, password)
	return first[*domain.User](args), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	args := m.Called(ctx, email, password)
	return first[*ports.AuthResult](args), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResult, error) {
	args := m.Called(ctx, refreshToken)
	return first[*ports.AuthResult](args), args.Error(1)
}

type MockTicketService struct {
	mock.Mock
}

func NewMockTicketService() *MockTicketService {
	return &MockTicketService{}
}

func (m *MockTicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	return first[*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketService) GetTicket(ctx context.Context, ticketID int64, viewer domain.Identity) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID, viewer)
	return first[*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	return first[*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	return first[*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketService) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	return first[[]*domain.Ticket](args), args.Error(1)
}

func (m *MockTicketService) ListActivity(ctx context.Context, params ports.ListActivityParams) ([]*domain.ActivityEntry, error) {
	args := m.Called(ctx, params)
	return first[[]*domain.ActivityEntry](args), args.Error(1)
}

func (m *MockTicketService) Shutdown() {}

type MockWriteApplyService struct {
	mock.Mock
}

func NewMockWriteApplyService() *MockWriteApplyService {
	return &MockWriteApplyService{}
}

func (m *MockWriteApplyService) Apply(ctx context.Context, params ports.ApplyWriteParams) (*ports.ApplyWriteResult, error) {
	args := m.Called(ctx, params)
	return first[*ports.ApplyWriteResult](args), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	m.Called(ctx, params)
}

// RecordingPublisher is a ports.EventPublisher that keeps every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of the published events in order.
func (p *RecordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the names of the published events in order.
func (p *RecordingPublisher) Names() []domain.EventName {
	events := p.Events()
	out := make([]domain.EventName, len(events))
	for i, e := range events {
		out[i] = e.Name
	}
	return out
}

// TransactionManager runs fn inline and counts calls.
type TransactionManager struct {
	mu    sync.Mutex
	Calls int
}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tm.mu.Lock()
	tm.Calls++
	tm.mu.Unlock()
	return fn(ctx)
}

var (
	_ ports.UserRepository         = (*MockUserRepository)(nil)
	_ ports.TicketRepository       = (*MockTicketRepository)(nil)
	_ ports.ActivityRepository     = (*MockActivityRepository)(nil)
	_ ports.AppliedWriteRepository = (*MockAppliedWriteRepository)(nil)
	_ ports.IdentityStore          = (*MockIdentityStore)(nil)
	_ ports.RefreshLedger          = (*MockRefreshLedger)(nil)
	_ ports.AuthService            = (*MockAuthService)(nil)
	_ ports.TicketService          = (*MockTicketService)(nil)
	_ ports.WriteApplyService      = (*MockWriteApplyService)(nil)
	_ ports.Notifier               = (*MockNotifier)(nil)
	_ ports.EventPublisher         = (*RecordingPublisher)(nil)
	_ ports.TransactionManager     = (*TransactionManager)(nil)
	_ ports.TokenIssuer            = (*auth.TokenAuthority)(nil)
)
