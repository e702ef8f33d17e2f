package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/payment"
	"ms-reservations/internal/payment/qr"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateInstrument(ctx context.Context, reservation *models.Reservation, amount float64) (*models.PaymentInstrument, error) {
	args := m.Called(ctx, reservation, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentInstrument), args.Error(1)
}

func (m *MockGateway) CheckPaid(ctx context.Context, reservation *models.Reservation) (bool, error) {
	args := m.Called(ctx, reservation)
	return args.Bool(0), args.Error(1)
}

// memoryInfoStore is an in-memory stand-in for the Redis payment info cache.
type memoryInfoStore struct {
	infos map[string]*models.PaymentInfo
}

func newMemoryInfoStore() *memoryInfoStore {
	return &memoryInfoStore{infos: make(map[string]*models.PaymentInfo)}
}

func (s *memoryInfoStore) Save(ctx context.Context, info *models.PaymentInfo) error {
	s.infos[info.ReservationID] = info
	return nil
}

func (s *memoryInfoStore) Load(ctx context.Context, reservationID string) (*models.PaymentInfo, error) {
	return s.infos[reservationID], nil
}

func (s *memoryInfoStore) Clear(ctx context.Context, reservationID string) error {
	delete(s.infos, reservationID)
	return nil
}

func newTestSelector(gw *MockGateway) (*payment.Selector, *memoryInfoStore) {
	cache := newMemoryInfoStore()
	return payment.NewSelector(gw, cache, qr.NewGenerator("test-secret"), logger.NewLogger()), cache
}

func approvedReservation(total float64) *models.Reservation {
	return &models.Reservation{
		ID:         "res_sel1",
		HotelID:    "hotel_1",
		CustomerID: "user_1",
		TotalPrice: total,
		Status:     models.StatusApproved,
	}
}

func TestComputeAmountsFull(t *testing.T) {
	amounts, err := payment.ComputeAmounts(600, models.PaymentFull)
	require.NoError(t, err)
	assert.Equal(t, 600.0, amounts.Required)
	assert.Equal(t, 0.0, amounts.Deposit)
	assert.Equal(t, 0.0, amounts.Remaining)
}

func TestComputeAmountsDepositRoundsHalf(t *testing.T) {
	amounts, err := payment.ComputeAmounts(601, models.PaymentDeposit)
	require.NoError(t, err)
	// round(300.5) rounds half away from zero
	assert.Equal(t, 301.0, amounts.Required)
	assert.Equal(t, 301.0, amounts.Deposit)
	assert.Equal(t, 300.0, amounts.Remaining)
}

func TestComputeAmountsDepositOddTotal(t *testing.T) {
	amounts, err := payment.ComputeAmounts(99.99, models.PaymentDeposit)
	require.NoError(t, err)
	assert.Equal(t, 50.0, amounts.Deposit)
	assert.InDelta(t, 49.99, amounts.Remaining, 0.001)
	// Deposit plus remaining always reconstructs the total.
	assert.InDelta(t, 99.99, amounts.Deposit+amounts.Remaining, 0.0001)
}

func TestComputeAmountsZeroTotal(t *testing.T) {
	amounts, err := payment.ComputeAmounts(0, models.PaymentDeposit)
	require.NoError(t, err)
	assert.Equal(t, 0.0, amounts.Required)
	assert.Equal(t, 0.0, amounts.Remaining)
}

func TestComputeAmountsInvalidType(t *testing.T) {
	_, err := payment.ComputeAmounts(100, models.PaymentType("installments"))
	assert.ErrorIs(t, err, payment.ErrInvalidPaymentType)
}

func TestSelectBuildsPaymentInfoWithQR(t *testing.T) {
	gw := &MockGateway{}
	selector, _ := newTestSelector(gw)
	res := approvedReservation(600)

	gw.On("CreateInstrument", mock.Anything, res, 300.0).
		Return(&models.PaymentInstrument{Ref: "pi_1"}, nil)

	info, err := selector.Select(context.Background(), res, models.PaymentDeposit)
	require.NoError(t, err)

	assert.Equal(t, "res_sel1", info.ReservationID)
	assert.Equal(t, models.PaymentDeposit, info.PaymentType)
	assert.Equal(t, 300.0, info.RequiredAmount)
	assert.Equal(t, 600.0, info.ReservationTotal)
	assert.Equal(t, 300.0, info.RemainingAmount)
	assert.Equal(t, "pi_1", info.InstrumentRef)
	assert.NotEmpty(t, info.QRCode)
	gw.AssertExpectations(t)
}

func TestSelectSameTypeIsIdempotent(t *testing.T) {
	gw := &MockGateway{}
	selector, _ := newTestSelector(gw)
	res := approvedReservation(600)

	gw.On("CreateInstrument", mock.Anything, res, 600.0).
		Return(&models.PaymentInstrument{Ref: "pi_1"}, nil).Once()

	first, err := selector.Select(context.Background(), res, models.PaymentFull)
	require.NoError(t, err)
	second, err := selector.Select(context.Background(), res, models.PaymentFull)
	require.NoError(t, err)

	// Same requiredAmount, same instrument, and only one gateway call.
	assert.Equal(t, first.RequiredAmount, second.RequiredAmount)
	assert.Equal(t, first.InstrumentRef, second.InstrumentRef)
	gw.AssertNumberOfCalls(t, "CreateInstrument", 1)
}

func TestSelectChangedTypeRecomputes(t *testing.T) {
	gw := &MockGateway{}
	selector, cache := newTestSelector(gw)
	res := approvedReservation(600)

	gw.On("CreateInstrument", mock.Anything, res, 600.0).
		Return(&models.PaymentInstrument{Ref: "pi_full"}, nil).Once()
	gw.On("CreateInstrument", mock.Anything, res, 300.0).
		Return(&models.PaymentInstrument{Ref: "pi_dep"}, nil).Once()

	full, err := selector.Select(context.Background(), res, models.PaymentFull)
	require.NoError(t, err)
	assert.Equal(t, 600.0, full.RequiredAmount)

	deposit, err := selector.Select(context.Background(), res, models.PaymentDeposit)
	require.NoError(t, err)
	assert.Equal(t, 300.0, deposit.RequiredAmount)
	assert.Equal(t, "pi_dep", deposit.InstrumentRef)

	// The stale full-payment info must be gone from the cache.
	cached, _ := cache.Load(context.Background(), res.ID)
	assert.Equal(t, models.PaymentDeposit, cached.PaymentType)
	gw.AssertExpectations(t)
}

func TestSelectInvalidTypeRejected(t *testing.T) {
	gw := &MockGateway{}
	selector, _ := newTestSelector(gw)

	_, err := selector.Select(context.Background(), approvedReservation(100), models.PaymentType(""))
	assert.ErrorIs(t, err, payment.ErrInvalidPaymentType)
	gw.AssertNotCalled(t, "CreateInstrument", mock.Anything, mock.Anything, mock.Anything)
}

func TestSelectGatewayErrorSurfaces(t *testing.T) {
	gw := &MockGateway{}
	selector, cache := newTestSelector(gw)
	res := approvedReservation(100)

	gw.On("CreateInstrument", mock.Anything, res, 100.0).
		Return(nil, errors.New("bridge down"))

	_, err := selector.Select(context.Background(), res, models.PaymentFull)
	require.Error(t, err)

	// Nothing cached on failure.
	cached, _ := cache.Load(context.Background(), res.ID)
	assert.Nil(t, cached)
}
