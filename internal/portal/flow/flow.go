package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/portal/draftstore"
	"ms-reservations/internal/portal/poller"
)

// Screen identifies a booking-flow destination.
type Screen string

const (
	ScreenRoomSelection Screen = "room-selection"
	ScreenReview        Screen = "review"
	ScreenPending       Screen = "pending"
	ScreenPaymentForm   Screen = "payment-form"
	ScreenQR            Screen = "qr"
	ScreenConfirmation  Screen = "confirmation"
	ScreenTerminal      Screen = "terminal"
)

// ErrNotPaidYet is what the "I have paid" button sees when the gateway has
// not settled. Background polls swallow it; only the manual path surfaces it.
var ErrNotPaidYet = errors.New("payment not received yet, please wait a moment")

// IdentityIncompleteError blocks payment selection until the customer
// uploads the listed artifacts.
type IdentityIncompleteError struct {
	Missing []string
}

func (e *IdentityIncompleteError) Error() string {
	return "identity verification incomplete: missing " + strings.Join(e.Missing, ", ")
}

// ReservationAPI is the slice of the reservation service the flow needs.
type ReservationAPI interface {
	CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error)
	GetReservationByID(ctx context.Context, reservationID string) (*models.Reservation, error)
	SelectPaymentOption(ctx context.Context, reservationID string, paymentType models.PaymentType) (*models.PaymentInfo, error)
	CheckPaymentStatus(ctx context.Context, reservationID string) (*models.Reservation, error)
}

// DraftStore is the session state the flow reads and writes.
type DraftStore interface {
	SaveDraft(ctx context.Context, sessionID string, draft *models.Draft) error
	LoadDraft(ctx context.Context, sessionID string) (*models.Draft, error)
	ClearDraft(ctx context.Context, sessionID string) error
	SavePaymentInfo(ctx context.Context, sessionID string, info *models.PaymentInfo) error
	LoadPaymentInfo(ctx context.Context, sessionID string) (*models.PaymentInfo, error)
	ClearPaymentInfo(ctx context.Context, sessionID string) error
}

// IdentityGate decides whether the customer may reach the payment screen.
type IdentityGate interface {
	GetUserByID(ctx context.Context, userID string, token string) (*models.UserProfile, error)
	HasRequiredArtifacts(profile *models.UserProfile) bool
	MissingArtifacts(profile *models.UserProfile) []string
}

// Flow drives one customer's booking session from room selection through
// payment confirmation. Navigation is delegated to the Navigate callback;
// the flow guarantees each forward navigation fires at most once and never
// after Teardown.
type Flow struct {
	API          ReservationAPI
	Drafts       DraftStore
	Gate         IdentityGate
	Navigate     func(target Screen, reservation *models.Reservation)
	SessionID    string
	UserID       string
	Token        string
	PollInterval time.Duration

	logger *logger.Logger

	// Pollers outlive the HTTP request that starts them, so they run on
	// the session's own context instead of the request context net/http
	// cancels when the handler returns. Teardown cancels it.
	pollCtx    context.Context
	pollCancel context.CancelFunc

	mu                sync.Mutex
	reservation       *models.Reservation
	paymentInfo       *models.PaymentInfo
	approvalNavigated bool
	paidNavigated     bool
	stopped           bool
	approvalPoller    *poller.Poller
	paymentPoller     *poller.Poller

	// Serializes payment checks across the background poller and the
	// manual "I have paid" path.
	checkMu sync.Mutex

	// Held while the Navigate callback runs so Teardown can wait out an
	// in-flight navigation before returning.
	navMu sync.Mutex
}

func New(api ReservationAPI, drafts DraftStore, gate IdentityGate, sessionID, userID, token string, pollInterval time.Duration, navigate func(Screen, *models.Reservation)) *Flow {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	pollCtx, pollCancel := context.WithCancel(context.Background())
	return &Flow{
		pollCtx:      pollCtx,
		pollCancel:   pollCancel,
		API:          api,
		Drafts:       drafts,
		Gate:         gate,
		Navigate:     navigate,
		SessionID:    sessionID,
		UserID:       userID,
		Token:        token,
		PollInterval: pollInterval,
		logger:       logger.NewLogger(),
	}
}

// Reservation returns the last observed reservation state.
func (f *Flow) Reservation() *models.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reservation
}

// PaymentInfo returns the active payment screen data, if any.
func (f *Flow) PaymentInfo() *models.PaymentInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paymentInfo
}

// SelectRooms records the customer's selection and moves to review.
func (f *Flow) SelectRooms(ctx context.Context, draft *models.Draft) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	draft.ComputeTotals()
	if err := f.Drafts.SaveDraft(ctx, f.SessionID, draft); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	f.navigate(ScreenReview, nil)
	return nil
}

// Review loads the draft for the review screen. A session with no draft is
// sent back to room selection instead of rendering an empty summary.
func (f *Flow) Review(ctx context.Context) (*models.Draft, error) {
	draft, err := f.Drafts.LoadDraft(ctx, f.SessionID)
	if errors.Is(err, draftstore.ErrNoDraft) {
		f.navigate(ScreenRoomSelection, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// Confirm submits the draft as a reservation and begins waiting for staff
// approval. The draft is cleared on success so a refresh cannot resubmit it.
func (f *Flow) Confirm(ctx context.Context) (*models.Reservation, error) {
	draft, err := f.Drafts.LoadDraft(ctx, f.SessionID)
	if errors.Is(err, draftstore.ErrNoDraft) {
		f.navigate(ScreenRoomSelection, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	created, err := f.API.CreateReservation(ctx, draft.ToRequest(f.UserID))
	if err != nil {
		return nil, err
	}

	if err := f.Drafts.ClearDraft(ctx, f.SessionID); err != nil {
		f.logger.Warn("FLOW", fmt.Sprintf("Failed to clear draft after submit: %v", err))
	}

	f.mu.Lock()
	f.reservation = created
	f.mu.Unlock()

	f.navigate(ScreenPending, created)
	f.startApprovalPolling(created.ID)
	return created, nil
}

// Resume re-attaches the flow to an existing reservation, e.g. after the
// customer returns to the portal mid-wait.
func (f *Flow) Resume(ctx context.Context, reservationID string) (*models.Reservation, error) {
	res, err := f.API.GetReservationByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.reservation = res
	f.mu.Unlock()

	switch {
	case res.Status == models.StatusPending:
		f.navigate(ScreenPending, res)
		f.startApprovalPolling(res.ID)
	case res.Status == models.StatusApproved:
		f.markApprovalNavigated()
		f.navigate(ScreenPaymentForm, res)
	case res.Status == models.StatusPaymentSelected:
		f.markApprovalNavigated()
		f.navigate(ScreenQR, res)
		f.startPaymentPolling(res.ID)
	case res.Status.IsPaid():
		f.navigate(ScreenConfirmation, res)
	case res.Status.IsTerminal():
		f.navigate(ScreenTerminal, res)
	}
	return res, nil
}

func (f *Flow) startApprovalPolling(reservationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped || f.approvalPoller != nil {
		return
	}
	p := poller.New("approval "+reservationID, f.PollInterval, func(ctx context.Context) (bool, error) {
		return f.checkApproval(ctx, reservationID)
	})
	f.approvalPoller = p
	p.Start(f.pollCtx)
}

func (f *Flow) checkApproval(ctx context.Context, reservationID string) (bool, error) {
	res, err := f.API.GetReservationByID(ctx, reservationID)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	f.reservation = res
	f.mu.Unlock()

	switch {
	case res.Status == models.StatusApproved:
		if f.claimApprovalNavigation() {
			f.navigate(ScreenPaymentForm, res)
		}
		return true, nil
	case res.Status.IsTerminal():
		if f.claimApprovalNavigation() {
			f.navigate(ScreenTerminal, res)
		}
		return true, nil
	}
	return false, nil
}

// SelectPayment commits the payment type. The identity gate runs first:
// an unverified customer is bounced to the upload prompt without the
// reservation ever leaving approved.
func (f *Flow) SelectPayment(ctx context.Context, paymentType models.PaymentType) (*models.PaymentInfo, error) {
	f.mu.Lock()
	res := f.reservation
	f.mu.Unlock()
	if res == nil {
		return nil, errors.New("no active reservation")
	}

	if f.Gate != nil {
		profile, err := f.Gate.GetUserByID(ctx, f.UserID, f.Token)
		if err != nil {
			return nil, fmt.Errorf("identity check failed: %w", err)
		}
		if !f.Gate.HasRequiredArtifacts(profile) {
			return nil, &IdentityIncompleteError{Missing: f.Gate.MissingArtifacts(profile)}
		}
	}

	info, err := f.API.SelectPaymentOption(ctx, res.ID, paymentType)
	if err != nil {
		return nil, err
	}

	if err := f.Drafts.SavePaymentInfo(ctx, f.SessionID, info); err != nil {
		f.logger.Warn("FLOW", fmt.Sprintf("Failed to cache payment info: %v", err))
	}

	f.mu.Lock()
	f.paymentInfo = info
	// Re-selection replaces the previous instrument, so restart the watch.
	if f.paymentPoller != nil {
		f.paymentPoller.Stop()
		f.paymentPoller = nil
	}
	f.mu.Unlock()

	f.navigate(ScreenQR, res)
	f.startPaymentPolling(res.ID)
	return info, nil
}

func (f *Flow) startPaymentPolling(reservationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped || f.paymentPoller != nil {
		return
	}
	p := poller.New("payment "+reservationID, f.PollInterval, func(ctx context.Context) (bool, error) {
		paid, err := f.checkPaymentOnce(ctx, reservationID)
		if errors.Is(err, ErrNotPaidYet) {
			// Background polls keep waiting quietly.
			return false, nil
		}
		return paid, err
	})
	f.paymentPoller = p
	p.Start(f.pollCtx)
}

// checkPaymentOnce performs one payment-status check. Exactly one check
// runs at a time whether it came from the poller or the button.
func (f *Flow) checkPaymentOnce(ctx context.Context, reservationID string) (bool, error) {
	f.checkMu.Lock()
	defer f.checkMu.Unlock()

	res, err := f.API.CheckPaymentStatus(ctx, reservationID)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	f.reservation = res
	f.mu.Unlock()

	if !res.Status.IsPaid() {
		return false, ErrNotPaidYet
	}

	if f.claimPaidNavigation() {
		if err := f.Drafts.ClearPaymentInfo(ctx, f.SessionID); err != nil {
			f.logger.Warn("FLOW", fmt.Sprintf("Failed to clear payment info: %v", err))
		}
		f.navigate(ScreenConfirmation, res)
	}
	return true, nil
}

// ConfirmPaid is the "I have paid" button: an immediate check that
// surfaces ErrNotPaidYet to the customer instead of swallowing it.
func (f *Flow) ConfirmPaid(ctx context.Context) error {
	f.mu.Lock()
	res := f.reservation
	f.mu.Unlock()
	if res == nil {
		return errors.New("no active reservation")
	}

	_, err := f.checkPaymentOnce(ctx, res.ID)
	return err
}

// Teardown stops all polling. After it returns no Navigate callback will
// fire, even for a check already in flight.
func (f *Flow) Teardown() {
	f.mu.Lock()
	f.stopped = true
	approval := f.approvalPoller
	payment := f.paymentPoller
	f.approvalPoller = nil
	f.paymentPoller = nil
	f.mu.Unlock()

	if approval != nil {
		approval.Stop()
	}
	if payment != nil {
		payment.Stop()
	}
	f.pollCancel()

	// Wait for any navigation already past the stopped check.
	f.navMu.Lock()
	defer f.navMu.Unlock()
}

func (f *Flow) navigate(target Screen, res *models.Reservation) {
	f.navMu.Lock()
	defer f.navMu.Unlock()

	f.mu.Lock()
	stopped := f.stopped
	f.mu.Unlock()
	if stopped || f.Navigate == nil {
		return
	}
	f.logger.Debug("FLOW", fmt.Sprintf("Navigating to %s", target))
	f.Navigate(target, res)
}

func (f *Flow) claimApprovalNavigation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approvalNavigated {
		return false
	}
	f.approvalNavigated = true
	return true
}

func (f *Flow) markApprovalNavigated() {
	f.mu.Lock()
	f.approvalNavigated = true
	f.mu.Unlock()
}

func (f *Flow) claimPaidNavigation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paidNavigated {
		return false
	}
	f.paidNavigated = true
	return true
}
