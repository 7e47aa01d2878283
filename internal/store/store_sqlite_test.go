package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

type fixture struct {
	store Store
	feed  *changefeed.Broker
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, nil)
}

func newFixtureWithLogger(t *testing.T, log *zap.SugaredLogger) *fixture {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(
		&model.Profile{}, &model.Machine{}, &model.Service{}, &model.Booking{}, &model.LaundryOrder{},
		&model.Wallet{}, &model.WalletTransaction{}, &model.Notification{}, &model.PushSubscription{},
	))

	feed := changefeed.NewBroker(32)
	return &fixture{store: NewGormStore(gormDB, feed, log), feed: feed, ctx: context.Background()}
}

func (f *fixture) profile(t *testing.T, email string) *model.Profile {
	t.Helper()
	p := &model.Profile{Email: email, FullName: email, PasswordHash: []byte("x")}
	require.NoError(t, f.store.CreateProfile(f.ctx, p))
	return p
}

func (f *fixture) machine(t *testing.T, id string) *model.Machine {
	t.Helper()
	qr := "QR-" + id
	m := &model.Machine{ID: id, Name: "Washer " + id, Type: model.MachineWasher, IsActive: true, QRCode: &qr}
	require.NoError(t, f.store.UpsertMachine(f.ctx, m))
	return m
}

func cost(v float64) *float64 { return &v }

func drain(sub *changefeed.Subscription) []changefeed.Event {
	var events []changefeed.Event
	for {
		select {
		case e := <-sub.C:
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestCreateProfile_CreatesWalletAndRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	p := f.profile(t, "Alice@Example.com ")
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, model.RoleStudent, p.Role)
	assert.NotEmpty(t, p.ID)

	w, err := f.store.GetWallet(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, w.Balance)

	err = f.store.CreateProfile(f.ctx, &model.Profile{Email: "alice@example.com", PasswordHash: []byte("y")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := f.store.GetProfileByEmail(f.ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	admin := &model.Profile{Email: "admin@example.com", Role: model.RoleAdmin, PasswordHash: []byte("z")}
	require.NoError(t, f.store.CreateProfile(f.ctx, admin))
	students, err := f.store.ListStudents(f.ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, p.ID, students[0].ID)
}

func TestCreateBooking_RejectsTakenSlot(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	bob := f.profile(t, "bob@example.com")
	f.machine(t, "W1")

	first := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	require.NoError(t, f.store.CreateBooking(f.ctx, first, false))
	assert.Equal(t, model.BookingUpcoming, first.Status)

	clash := &model.Booking{UserID: bob.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	assert.ErrorIs(t, f.store.CreateBooking(f.ctx, clash, false), ErrSlotTaken)

	// A cancelled booking frees the slot again.
	_, err := f.store.CancelBooking(f.ctx, first.ID, alice.ID)
	require.NoError(t, err)
	clash.ID = ""
	assert.NoError(t, f.store.CreateBooking(f.ctx, clash, false))

	booked, err := f.store.ListMachineBookings(f.ctx, "W1", "2030-01-10")
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, bob.ID, booked[0].UserID)
}

func TestBookingLiveSlotIndex(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	bob := f.profile(t, "bob@example.com")
	f.machine(t, "W1")

	first := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	require.NoError(t, f.store.CreateBooking(f.ctx, first, false))

	// A writer that skipped the availability check still cannot take the slot.
	raw := &model.Booking{UserID: bob.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	assert.Error(t, f.store.DB().Create(raw).Error)

	_, err := f.store.CancelBooking(f.ctx, first.ID, alice.ID)
	require.NoError(t, err)
	raw.ID = ""
	assert.NoError(t, f.store.DB().Create(raw).Error, "cancelled bookings do not hold the slot")
}

func TestCreateBooking_InactiveOrMissingMachine(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	m := f.machine(t, "W1")
	m.IsActive = false
	require.NoError(t, f.store.UpsertMachine(f.ctx, m))

	b := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	assert.ErrorIs(t, f.store.CreateBooking(f.ctx, b, false), ErrMachineUnavailable)

	b.MachineID = "nope"
	assert.ErrorIs(t, f.store.CreateBooking(f.ctx, b, false), ErrNotFound)
}

func TestCreateBooking_WalletDebitAndRefund(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	f.machine(t, "W1")

	b := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Express Wash", MachineID: "W1", Cost: cost(10)}
	assert.ErrorIs(t, f.store.CreateBooking(f.ctx, b, true), ErrInsufficientFunds)

	// The failed debit rolled the booking back too.
	bookings, err := f.store.ListUserBookings(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, _, err = f.store.TopUp(f.ctx, alice.ID, 25)
	require.NoError(t, err)

	b.ID = ""
	require.NoError(t, f.store.CreateBooking(f.ctx, b, true))
	w, err := f.store.GetWallet(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, w.Balance)

	cancelled, err := f.store.CancelBooking(f.ctx, b.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)

	w, err = f.store.GetWallet(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, w.Balance)

	txs, err := f.store.ListTransactions(f.ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	var credits, debits int
	for _, tx := range txs {
		switch tx.Type {
		case model.TransactionCredit:
			credits++
		case model.TransactionDebit:
			debits++
			require.NotNil(t, tx.BookingID)
			assert.Equal(t, b.ID, *tx.BookingID)
		}
	}
	assert.Equal(t, 2, credits)
	assert.Equal(t, 1, debits)

	// Cancelling again neither fails nor refunds twice.
	_, err = f.store.CancelBooking(f.ctx, b.ID, alice.ID)
	require.NoError(t, err)
	w, err = f.store.GetWallet(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, w.Balance)
}

func TestCancelBooking_Permissions(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	bob := f.profile(t, "bob@example.com")
	f.machine(t, "W1")

	b := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	require.NoError(t, f.store.CreateBooking(f.ctx, b, false))

	_, err := f.store.CancelBooking(f.ctx, b.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.store.CancelBooking(f.ctx, "missing", alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.store.ListUserBookings(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.BookingUpcoming, got[0].Status, "a rejected cancel must leave the booking untouched")
}

func TestCancelBooking_CompletedBookingIsRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	f.machine(t, "W1")

	b := &model.Booking{UserID: alice.ID, BookingDate: "2020-01-10", TimeSlot: "09:00 - 10:00", ServiceType: "Regular Wash", MachineID: "W1"}
	require.NoError(t, f.store.CreateBooking(f.ctx, b, false))

	n, err := f.store.CompletePastBookings(f.ctx, time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.store.CancelBooking(f.ctx, b.ID, alice.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCompletePastBookings_UsesSlotEnd(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	f.machine(t, "W1")

	now := time.Date(2030, 1, 10, 10, 30, 0, 0, time.UTC)
	slots := []string{"09:00 - 10:00", "10:00 - 11:00", "11:00 - 12:00"}
	for _, slot := range slots {
		b := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-10", TimeSlot: slot, ServiceType: "Regular Wash", MachineID: "W1"}
		require.NoError(t, f.store.CreateBooking(f.ctx, b, false))
	}
	yesterday := &model.Booking{UserID: alice.ID, BookingDate: "2030-01-09", TimeSlot: "16:00 - 17:00", ServiceType: "Regular Wash", MachineID: "W1"}
	require.NoError(t, f.store.CreateBooking(f.ctx, yesterday, false))

	sub := f.feed.Subscribe(changefeed.Filter{Table: changefeed.TableBookings})
	defer sub.Close()

	n, err := f.store.CompletePastBookings(f.ctx, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	bookings, err := f.store.ListUserBookings(f.ctx, alice.ID)
	require.NoError(t, err)
	status := make(map[string]model.BookingStatus)
	for _, b := range bookings {
		status[b.BookingDate+" "+b.TimeSlot] = b.Status
	}
	assert.Equal(t, model.BookingCompleted, status["2030-01-09 16:00 - 17:00"])
	assert.Equal(t, model.BookingCompleted, status["2030-01-10 09:00 - 10:00"])
	assert.Equal(t, model.BookingUpcoming, status["2030-01-10 10:00 - 11:00"])
	assert.Equal(t, model.BookingUpcoming, status["2030-01-10 11:00 - 12:00"])

	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, alice.ID, events[0].UserID)

	n, err = f.store.CompletePastBookings(f.ctx, now, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompletePastBookings_LogsUnparsableSlot(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixtureWithLogger(t, zap.New(core).Sugar())
	alice := f.profile(t, "alice@example.com")
	f.machine(t, "W1")

	broken := &model.Booking{UserID: alice.ID, BookingDate: "2020-01-10", TimeSlot: "morning", ServiceType: "Regular Wash", MachineID: "W1"}
	require.NoError(t, f.store.DB().Create(broken).Error)

	n, err := f.store.CompletePastBookings(f.ctx, time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Zero(t, n)

	entries := logs.FilterMessage("skipping booking with unparsable slot").All()
	require.Len(t, entries, 1)
	assert.Equal(t, broken.ID, entries[0].ContextMap()["booking_id"])
	assert.Equal(t, "morning", entries[0].ContextMap()["time_slot"])
}

func TestTopUp(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")

	_, _, err := f.store.TopUp(f.ctx, alice.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, _, err = f.store.TopUp(f.ctx, alice.ID, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	sub := f.feed.Subscribe(changefeed.Filter{UserID: alice.ID})
	defer sub.Close()

	w, entry, err := f.store.TopUp(f.ctx, alice.ID, 12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, w.Balance)
	assert.Equal(t, model.TransactionCredit, entry.Type)
	assert.Equal(t, "Added ₹12.5 to wallet", entry.Description)
	assert.Equal(t, w.ID, entry.WalletID)

	tables := map[string]bool{}
	for _, e := range drain(sub) {
		tables[e.Table] = true
	}
	assert.True(t, tables[changefeed.TableWallets])
	assert.True(t, tables[changefeed.TableTransactions])
}

func TestGetWallet_CreatedLazily(t *testing.T) {
	f := newFixture(t)

	w, err := f.store.GetWallet(f.ctx, "user-without-wallet")
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)

	again, err := f.store.GetWallet(f.ctx, "user-without-wallet")
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
}

func TestStartOrder_ClaimsMachine(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	bob := f.profile(t, "bob@example.com")
	f.machine(t, "W1")
	now := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)

	order, err := f.store.StartOrder(f.ctx, alice.ID, "W1", "Quick Wash", now)
	require.NoError(t, err)
	assert.Equal(t, model.OrderWashing, order.Status)
	assert.Equal(t, model.MachineWasher, order.MachineType)
	require.NotNil(t, order.EstimatedCompletion)
	assert.True(t, order.EstimatedCompletion.Equal(now.Add(EstimatedCycle)))

	m, err := f.store.GetMachine(f.ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, model.MachineInUse, m.Status)
	require.NotNil(t, m.CurrentOrderID)
	assert.Equal(t, order.ID, *m.CurrentOrderID)

	_, err = f.store.StartOrder(f.ctx, bob.ID, "W1", "Quick Wash", now)
	assert.ErrorIs(t, err, ErrMachineUnavailable)

	_, err = f.store.StartOrder(f.ctx, bob.ID, "missing", "Quick Wash", now)
	assert.ErrorIs(t, err, ErrNotFound)

	current, err := f.store.CurrentOrder(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, current.ID)

	_, err = f.store.CurrentOrder(f.ctx, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderStatus_CompletionReleasesMachine(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	f.machine(t, "W1")
	start := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)

	order, err := f.store.StartOrder(f.ctx, alice.ID, "W1", "Quick Wash", start)
	require.NoError(t, err)

	_, err = f.store.UpdateOrderStatus(f.ctx, order.ID, "spinning", start)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.store.UpdateOrderStatus(f.ctx, "missing", model.OrderDrying, start)
	assert.ErrorIs(t, err, ErrNotFound)

	// Any known status is accepted, including going backwards.
	for _, status := range []model.OrderStatus{model.OrderReadyForPickup, model.OrderQueued, model.OrderDrying} {
		got, err := f.store.UpdateOrderStatus(f.ctx, order.ID, status, start)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}

	active, err := f.store.ActiveOrders(f.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].Profile)
	assert.Equal(t, "alice@example.com", active[0].Profile.Email)

	sub := f.feed.Subscribe(changefeed.Filter{Table: changefeed.TableMachines})
	defer sub.Close()

	done := start.Add(50 * time.Minute)
	completed, err := f.store.UpdateOrderStatus(f.ctx, order.ID, model.OrderCompleted, done)
	require.NoError(t, err)
	require.NotNil(t, completed.ActualCompletion)
	assert.True(t, completed.ActualCompletion.Equal(done))
	assert.Len(t, drain(sub), 1)

	m, err := f.store.GetMachine(f.ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, model.MachineAvailable, m.Status)
	assert.Nil(t, m.CurrentOrderID)

	_, err = f.store.CurrentOrder(f.ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	recent, err := f.store.RecentOrders(f.ctx, alice.ID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, order.ID, recent[0].ID)
}

func TestUpsertMachine_QRCodeClash(t *testing.T) {
	f := newFixture(t)
	f.machine(t, "W1")

	qr := "QR-W1"
	other := &model.Machine{ID: "W2", Name: "Washer 2", Type: model.MachineWasher, IsActive: true, QRCode: &qr}
	assert.ErrorIs(t, f.store.UpsertMachine(f.ctx, other), ErrQRCodeTaken)

	// Re-saving a machine with its own code is an update, not a clash.
	m, err := f.store.GetMachine(f.ctx, "W1")
	require.NoError(t, err)
	m.Location = "Block B"
	require.NoError(t, f.store.UpsertMachine(f.ctx, m))

	byQR, err := f.store.GetMachineByQR(f.ctx, "QR-W1")
	require.NoError(t, err)
	assert.Equal(t, "Block B", byQR.Location)

	_, err = f.store.GetMachineByQR(f.ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetMachineStatus(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")
	f.machine(t, "W1")

	_, err := f.store.StartOrder(f.ctx, alice.ID, "W1", "Quick Wash", time.Now())
	require.NoError(t, err)

	m, err := f.store.SetMachineStatus(f.ctx, "W1", model.MachineMaintenance)
	require.NoError(t, err)
	assert.Equal(t, model.MachineMaintenance, m.Status)
	assert.NotNil(t, m.CurrentOrderID)

	m, err = f.store.SetMachineStatus(f.ctx, "W1", model.MachineAvailable)
	require.NoError(t, err)
	assert.Equal(t, model.MachineAvailable, m.Status)
	assert.Nil(t, m.CurrentOrderID)

	_, err = f.store.SetMachineStatus(f.ctx, "W1", "Broken")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.store.SetMachineStatus(f.ctx, "W9", model.MachineAvailable)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedServices_Idempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.SeedServices(f.ctx, model.DefaultServices))
	require.NoError(t, f.store.SeedServices(f.ctx, model.DefaultServices))

	services, err := f.store.ListServices(f.ctx)
	require.NoError(t, err)
	require.Len(t, services, len(model.DefaultServices))
	assert.Equal(t, "Regular Wash", services[0].Name)
	assert.Equal(t, 5.0, services[0].Price)

	svc, err := f.store.GetServiceByName(f.ctx, "Express Wash")
	require.NoError(t, err)
	assert.Equal(t, 10.0, svc.Price)

	for _, s := range model.DefaultServices {
		assert.Zero(t, s.ID, "seeding must not mutate the defaults")
	}
}

func TestNotificationsAndSubscriptions(t *testing.T) {
	f := newFixture(t)
	alice := f.profile(t, "alice@example.com")

	n := &model.Notification{UserID: alice.ID, Title: "Booking confirmed", Message: "See you", Type: model.NotifyBookingCreated}
	require.NoError(t, f.store.CreateNotification(f.ctx, n))
	require.NoError(t, f.store.MarkNotificationSent(f.ctx, n.ID, time.Now()))

	assert.ErrorIs(t, f.store.MarkNotificationRead(f.ctx, n.ID, "someone-else", time.Now()), ErrNotFound)
	require.NoError(t, f.store.MarkNotificationRead(f.ctx, n.ID, alice.ID, time.Now()))

	notes, err := f.store.ListNotifications(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotNil(t, notes[0].SentAt)
	assert.NotNil(t, notes[0].ReadAt)

	sub := &model.PushSubscription{Endpoint: "https://push.example/1", UserID: alice.ID, P256DH: "k", Auth: "a"}
	require.NoError(t, f.store.PutSubscription(f.ctx, sub))
	sub.Auth = "b"
	require.NoError(t, f.store.PutSubscription(f.ctx, sub))

	subs, err := f.store.ListUserSubscriptions(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "b", subs[0].Auth)

	_, err = f.store.GetSubscription(f.ctx, sub.Endpoint, "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.store.DeleteSubscription(f.ctx, sub.Endpoint, alice.ID))
	subs, err = f.store.ListUserSubscriptions(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
