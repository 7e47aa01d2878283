package store

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	ListStudents(ctx context.Context) ([]model.Profile, error)

	// Machines and services
	ListMachines(ctx context.Context) ([]model.Machine, error)
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
	GetMachineByQR(ctx context.Context, code string) (*model.Machine, error)
	UpsertMachine(ctx context.Context, m *model.Machine) error
	SetMachineStatus(ctx context.Context, id string, status model.MachineStatus) (*model.Machine, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	GetServiceByName(ctx context.Context, name string) (*model.Service, error)
	SeedServices(ctx context.Context, services []model.Service) error

	// Bookings
	ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error)
	ListAllBookings(ctx context.Context) ([]model.Booking, error)
	ListMachineBookings(ctx context.Context, machineID, date string) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking, payFromWallet bool) error
	CancelBooking(ctx context.Context, bookingID, userID string) (*model.Booking, error)
	CompletePastBookings(ctx context.Context, now time.Time, loc *time.Location) (int, error)

	// Laundry orders
	StartOrder(ctx context.Context, userID, machineID, serviceType string, now time.Time) (*model.LaundryOrder, error)
	CurrentOrder(ctx context.Context, userID string) (*model.LaundryOrder, error)
	RecentOrders(ctx context.Context, userID string, limit int) ([]model.LaundryOrder, error)
	ActiveOrders(ctx context.Context) ([]model.LaundryOrder, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus, now time.Time) (*model.LaundryOrder, error)

	// Wallet
	GetWallet(ctx context.Context, userID string) (*model.Wallet, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error)
	TopUp(ctx context.Context, userID string, amount float64) (*model.Wallet, *model.WalletTransaction, error)

	// Notifications
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) error
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error

	// Push subscriptions
	PutSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint, userID string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint, userID string) error
	ListUserSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)

	DB() *gorm.DB
}

// Publisher receives a signal after every committed write.
type Publisher interface {
	Publish(e changefeed.Event)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db   *gorm.DB
	feed Publisher
	log  *zap.SugaredLogger
}

// NewGormStore creates a new GORM-backed store. feed and log may be nil.
func NewGormStore(db *gorm.DB, feed Publisher, log *zap.SugaredLogger) Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &gormStore{db: db, feed: feed, log: log}
}

// DB exposes the underlying connection for migrations and tests.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) publish(table string, op changefeed.Op, userID string) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(changefeed.Event{Table: table, Op: op, UserID: userID, At: time.Now().UTC()})
}
