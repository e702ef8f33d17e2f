package reservation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-reservations/internal/lifecycle"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/payment"
	"ms-reservations/internal/payment/qr"
	"ms-reservations/internal/reservation"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateReservation(res models.Reservation) error {
	args := m.Called(res)
	return args.Error(0)
}

func (m *MockDBLayer) GetReservationByID(id string) (*models.Reservation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockDBLayer) UpdateReservation(res models.Reservation) error {
	args := m.Called(res)
	return args.Error(0)
}

func (m *MockDBLayer) GetRoomsByReservation(reservationID string) ([]models.RoomLine, error) {
	args := m.Called(reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomLine), args.Error(1)
}

func (m *MockDBLayer) GetReservationsByCustomer(customerID string) ([]models.Reservation, error) {
	args := m.Called(customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockDBLayer) GetPendingReservationsByHotel(hotelID string) ([]models.Reservation, error) {
	args := m.Called(hotelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

type MockHoldStore struct {
	mock.Mock
}

func (m *MockHoldStore) HoldRooms(hotelID string, roomTypeIDs []string, reservationID string) (bool, error) {
	args := m.Called(hotelID, roomTypeIDs, reservationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHoldStore) ReleaseRooms(hotelID string, roomTypeIDs []string, reservationID string) error {
	args := m.Called(hotelID, roomTypeIDs, reservationID)
	return args.Error(0)
}

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) PublishReservationCreated(res models.Reservation) error {
	args := m.Called(res)
	return args.Error(0)
}

func (m *MockKafkaPublisher) PublishStatusChanged(res models.Reservation, reason string) error {
	args := m.Called(res, reason)
	return args.Error(0)
}

func (m *MockKafkaPublisher) PublishPaymentConfirmed(res models.Reservation) error {
	args := m.Called(res)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateInstrument(ctx context.Context, res *models.Reservation, amount float64) (*models.PaymentInstrument, error) {
	args := m.Called(ctx, res, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentInstrument), args.Error(1)
}

func (m *MockGateway) CheckPaid(ctx context.Context, res *models.Reservation) (bool, error) {
	args := m.Called(ctx, res)
	return args.Bool(0), args.Error(1)
}

// MockMethodGateway is a gateway that also records the chosen payment
// method on the bridge.
type MockMethodGateway struct {
	MockGateway
}

func (m *MockMethodGateway) UpdatePaymentMethod(ctx context.Context, reservationID, method string) error {
	args := m.Called(ctx, reservationID, method)
	return args.Error(0)
}

type memoryInfoStore struct {
	infos map[string]*models.PaymentInfo
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

type testDeps struct {
	db      *MockDBLayer
	holds   *MockHoldStore
	kafka   *MockKafkaPublisher
	gateway *MockGateway
}

func newTestService() (*reservation.ReservationService, *testDeps) {
	deps := &testDeps{
		db:      &MockDBLayer{},
		holds:   &MockHoldStore{},
		kafka:   &MockKafkaPublisher{},
		gateway: &MockGateway{},
	}
	log := logger.NewLogger()
	selector := payment.NewSelector(deps.gateway, &memoryInfoStore{infos: map[string]*models.PaymentInfo{}}, qr.NewGenerator("test"), log)
	svc := reservation.NewReservationService(deps.db, deps.holds, deps.kafka, selector, deps.gateway, nil, log)
	return svc, deps
}

func testRequest() models.ReservationRequest {
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	return models.ReservationRequest{
		HotelID:        "hotel_1",
		CustomerID:     "user_1",
		CheckInDate:    checkIn,
		CheckOutDate:   checkIn.AddDate(0, 0, 2),
		NumberOfGuests: 4,
		Rooms: []models.RoomLineRequest{
			{RoomTypeID: "standard", UnitPrice: 100, Quantity: 1, Adults: 2},
			{RoomTypeID: "deluxe", UnitPrice: 150, Quantity: 2, Adults: 2},
		},
	}
}

func storedReservation(status models.ReservationStatus) *models.Reservation {
	return &models.Reservation{
		ID:         "res_1",
		HotelID:    "hotel_1",
		CustomerID: "user_1",
		TotalPrice: 800,
		Status:     status,
		Rooms: []models.RoomLine{
			{ID: "line_1", ReservationID: "res_1", RoomTypeID: "standard", UnitPrice: 100, Quantity: 1},
			{ID: "line_2", ReservationID: "res_1", RoomTypeID: "deluxe", UnitPrice: 150, Quantity: 2},
		},
	}
}

func TestPlaceReservationComputesTotalServerSide(t *testing.T) {
	svc, deps := newTestService()

	deps.holds.On("HoldRooms", "hotel_1", []string{"standard", "deluxe"}, mock.Anything).Return(true, nil)
	deps.db.On("CreateReservation", mock.Anything).Return(nil)
	deps.kafka.On("PublishReservationCreated", mock.Anything).Return(nil)

	created, err := svc.PlaceReservation(testRequest())
	require.NoError(t, err)

	// 2 nights: 100*1*2 + 150*2*2 = 800, whatever the client claimed.
	assert.Equal(t, 800.0, created.TotalPrice)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, created.PaymentStatus)
	assert.Len(t, created.Rooms, 2)
	deps.db.AssertExpectations(t)
	deps.kafka.AssertExpectations(t)
}

func TestPlaceReservationRejectsEmptyRooms(t *testing.T) {
	svc, _ := newTestService()

	req := testRequest()
	req.Rooms = nil
	_, err := svc.PlaceReservation(req)
	assert.ErrorIs(t, err, reservation.ErrNoRooms)
}

func TestPlaceReservationRejectsInvalidDates(t *testing.T) {
	svc, _ := newTestService()

	req := testRequest()
	req.CheckOutDate = req.CheckInDate
	_, err := svc.PlaceReservation(req)
	assert.ErrorIs(t, err, reservation.ErrInvalidDates)
}

func TestPlaceReservationWhenRoomsHeld(t *testing.T) {
	svc, deps := newTestService()

	deps.holds.On("HoldRooms", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	_, err := svc.PlaceReservation(testRequest())
	assert.ErrorIs(t, err, reservation.ErrRoomsHeld)
	deps.db.AssertNotCalled(t, "CreateReservation", mock.Anything)
}

func TestPlaceReservationRollsBackHoldsOnDBError(t *testing.T) {
	svc, deps := newTestService()

	deps.holds.On("HoldRooms", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	deps.db.On("CreateReservation", mock.Anything).Return(errors.New("insert failed"))
	deps.holds.On("ReleaseRooms", "hotel_1", []string{"standard", "deluxe"}, mock.Anything).Return(nil)

	_, err := svc.PlaceReservation(testRequest())
	require.Error(t, err)
	deps.holds.AssertCalled(t, "ReleaseRooms", "hotel_1", []string{"standard", "deluxe"}, mock.Anything)
}

func TestApplyApprovalApprove(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusPending), nil)
	deps.db.On("UpdateReservation", mock.Anything).Return(nil)
	deps.kafka.On("PublishStatusChanged", mock.Anything, "").Return(nil)

	res, err := svc.ApplyApproval("res_1", models.ApprovalActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.Status)
	// Approval keeps the holds; they expire or release at payment.
	deps.holds.AssertNotCalled(t, "ReleaseRooms", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyApprovalRejectRequiresReason(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusPending), nil)

	_, err := svc.ApplyApproval("res_1", models.ApprovalActionReject, "")
	assert.ErrorIs(t, err, reservation.ErrReasonRequired)
	deps.db.AssertNotCalled(t, "UpdateReservation", mock.Anything)
}

func TestApplyApprovalRejectReleasesHolds(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusPending), nil)
	deps.db.On("UpdateReservation", mock.Anything).Return(nil)
	deps.holds.On("ReleaseRooms", "hotel_1", []string{"standard", "deluxe"}, "res_1").Return(nil)
	deps.kafka.On("PublishStatusChanged", mock.Anything, "overbooked").Return(nil)

	res, err := svc.ApplyApproval("res_1", models.ApprovalActionReject, "overbooked")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Status)
	assert.Equal(t, "overbooked", res.StatusReason)
	deps.holds.AssertExpectations(t)
}

func TestApplyApprovalCancelOnlyFromPending(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusApproved), nil)

	_, err := svc.ApplyApproval("res_1", models.ApprovalActionCancel, "guest request")
	var illegal *lifecycle.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal)
}

func TestSelectPaymentOptionFromApproved(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusApproved)

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)
	deps.gateway.On("CreateInstrument", mock.Anything, stored, 400.0).
		Return(&models.PaymentInstrument{Ref: "pi_1"}, nil)
	deps.db.On("UpdateReservation", mock.MatchedBy(func(res models.Reservation) bool {
		return res.Status == models.StatusPaymentSelected &&
			res.PaymentType == models.PaymentDeposit &&
			res.PaymentStatus == models.PaymentStatusPending &&
			res.InstrumentRef == "pi_1"
	})).Return(nil)
	deps.kafka.On("PublishStatusChanged", mock.Anything, "").Return(nil)

	info, err := svc.SelectPaymentOption(context.Background(), "res_1", models.PaymentDeposit)
	require.NoError(t, err)
	assert.Equal(t, 400.0, info.RequiredAmount)
	assert.Equal(t, 400.0, info.RemainingAmount)
	assert.NotEmpty(t, info.QRCode)
	deps.db.AssertExpectations(t)
}

func newMethodRecordingService() (*reservation.ReservationService, *MockDBLayer, *MockKafkaPublisher, *MockMethodGateway) {
	db := &MockDBLayer{}
	kafka := &MockKafkaPublisher{}
	gw := &MockMethodGateway{}
	log := logger.NewLogger()
	selector := payment.NewSelector(gw, &memoryInfoStore{infos: map[string]*models.PaymentInfo{}}, qr.NewGenerator("test"), log)
	svc := reservation.NewReservationService(db, &MockHoldStore{}, kafka, selector, gw, nil, log)
	return svc, db, kafka, gw
}

func TestSelectPaymentOptionRecordsMethodOnBridge(t *testing.T) {
	svc, db, kafka, gw := newMethodRecordingService()
	stored := storedReservation(models.StatusApproved)

	db.On("GetReservationByID", "res_1").Return(stored, nil)
	gw.On("CreateInstrument", mock.Anything, stored, 800.0).
		Return(&models.PaymentInstrument{Ref: "pi_1"}, nil)
	db.On("UpdateReservation", mock.Anything).Return(nil)
	gw.On("UpdatePaymentMethod", mock.Anything, "res_1", "qr").Return(nil)
	kafka.On("PublishStatusChanged", mock.Anything, "").Return(nil)

	_, err := svc.SelectPaymentOption(context.Background(), "res_1", models.PaymentFull)
	require.NoError(t, err)
	gw.AssertCalled(t, "UpdatePaymentMethod", mock.Anything, "res_1", "qr")
}

func TestSelectPaymentOptionSurvivesMethodRecordFailure(t *testing.T) {
	svc, db, kafka, gw := newMethodRecordingService()
	stored := storedReservation(models.StatusApproved)

	db.On("GetReservationByID", "res_1").Return(stored, nil)
	gw.On("CreateInstrument", mock.Anything, stored, 800.0).
		Return(&models.PaymentInstrument{Ref: "pi_1"}, nil)
	db.On("UpdateReservation", mock.Anything).Return(nil)
	gw.On("UpdatePaymentMethod", mock.Anything, "res_1", "qr").Return(errors.New("bridge proxy error"))
	kafka.On("PublishStatusChanged", mock.Anything, "").Return(nil)

	info, err := svc.SelectPaymentOption(context.Background(), "res_1", models.PaymentFull)
	require.NoError(t, err)
	assert.Equal(t, 800.0, info.RequiredAmount)
}

func TestSelectPaymentOptionFromPendingIsIllegal(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusPending), nil)

	_, err := svc.SelectPaymentOption(context.Background(), "res_1", models.PaymentFull)
	var illegal *lifecycle.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal)
}

func TestCheckPaymentStatusOutsidePaymentSelected(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusPending), nil)

	res, err := svc.CheckPaymentStatus(context.Background(), "res_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.Status)
	deps.gateway.AssertNotCalled(t, "CheckPaid", mock.Anything, mock.Anything)
}

func TestCheckPaymentStatusUnsettled(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusPaymentSelected)
	stored.PaymentType = models.PaymentDeposit

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)
	deps.gateway.On("CheckPaid", mock.Anything, stored).Return(false, nil)

	res, err := svc.CheckPaymentStatus(context.Background(), "res_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentSelected, res.Status)
	deps.db.AssertNotCalled(t, "UpdateReservation", mock.Anything)
}

func TestCheckPaymentStatusGatewayErrorIsSwallowed(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusPaymentSelected)

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)
	deps.gateway.On("CheckPaid", mock.Anything, stored).Return(false, errors.New("bridge down"))

	res, err := svc.CheckPaymentStatus(context.Background(), "res_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentSelected, res.Status)
}

func TestCheckPaymentStatusSettledConfirms(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusPaymentSelected)
	stored.PaymentType = models.PaymentDeposit

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)
	deps.gateway.On("CheckPaid", mock.Anything, stored).Return(true, nil)
	deps.db.On("UpdateReservation", mock.MatchedBy(func(res models.Reservation) bool {
		return res.Status == models.StatusDepositPaid &&
			res.PaymentStatus == models.PaymentStatusDepositPaid &&
			res.PaidAmount == 400 &&
			res.PaymentConfirmedAt != nil
	})).Return(nil)
	deps.kafka.On("PublishPaymentConfirmed", mock.Anything).Return(nil)

	res, err := svc.CheckPaymentStatus(context.Background(), "res_1")
	require.NoError(t, err)
	// Paid sub-state comes from the payment type, never from the amount.
	assert.Equal(t, models.StatusDepositPaid, res.Status)
	deps.db.AssertExpectations(t)
}

func TestConfirmPaymentFullType(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusPaymentSelected)
	stored.PaymentType = models.PaymentFull

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)
	deps.db.On("UpdateReservation", mock.Anything).Return(nil)
	deps.kafka.On("PublishPaymentConfirmed", mock.Anything).Return(nil)

	res, err := svc.ConfirmPayment("res_1", "txn_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFullyPaid, res.Status)
	assert.Equal(t, 800.0, res.PaidAmount)
}

func TestConfirmPaymentIdempotentWhenAlreadyPaid(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusDepositPaid)

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)

	res, err := svc.ConfirmPayment("res_1", "txn_dup")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDepositPaid, res.Status)
	deps.db.AssertNotCalled(t, "UpdateReservation", mock.Anything)
	deps.kafka.AssertNotCalled(t, "PublishPaymentConfirmed", mock.Anything)
}

func TestCheckInRequiresPaidState(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusApproved), nil)

	_, err := svc.CheckIn("res_1")
	var illegal *lifecycle.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal)
}

func TestCheckInAndOut(t *testing.T) {
	svc, deps := newTestService()
	stored := storedReservation(models.StatusFullyPaid)

	deps.db.On("GetReservationByID", "res_1").Return(stored, nil)
	deps.db.On("UpdateReservation", mock.Anything).Return(nil)
	deps.kafka.On("PublishStatusChanged", mock.Anything, "").Return(nil)

	res, err := svc.CheckIn("res_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, res.Status)

	res, err = svc.CheckOut("res_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, res.Status)
}

func TestCancelIfPendingCancelsAndReleases(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusPending), nil)
	deps.db.On("UpdateReservation", mock.MatchedBy(func(res models.Reservation) bool {
		return res.Status == models.StatusCancelled && res.StatusReason == "hold expired"
	})).Return(nil)
	deps.holds.On("ReleaseRooms", "hotel_1", []string{"standard", "deluxe"}, "res_1").Return(nil)
	deps.kafka.On("PublishStatusChanged", mock.Anything, "hold expired").Return(nil)

	require.NoError(t, svc.CancelIfPending("res_1", "hold expired"))
	deps.db.AssertExpectations(t)
	deps.holds.AssertExpectations(t)
}

func TestCancelIfPendingLeavesLaterStatesAlone(t *testing.T) {
	svc, deps := newTestService()

	deps.db.On("GetReservationByID", "res_1").Return(storedReservation(models.StatusApproved), nil)

	require.NoError(t, svc.CancelIfPending("res_1", "hold expired"))
	deps.db.AssertNotCalled(t, "UpdateReservation", mock.Anything)
}
