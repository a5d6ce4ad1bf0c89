package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticketflow/internal/model"
	"ticketflow/internal/payment"
	"ticketflow/internal/repo/memory"
	"ticketflow/internal/ticket"
)

func (f *fixture) checkout(t *testing.T, email string) string {
	t.Helper()
	resp, err := f.svc.CreateCheckoutSession(context.Background(), nil, f.checkoutRequest(email, 100, 10, 110))
	require.NoError(t, err)
	return resp.RegistrationID
}

func TestHandlePaymentEvent_CompletedIsIdempotent(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	ctx := context.Background()
	id := f.checkout(t, "ana@example.com")
	code := ticket.Code(f.event.Slug, id)

	f.tickets.EXPECT().Issue(mock.Anything, code).Return("data:image/png;base64,AAAA", nil).Once()
	f.expectConfirmation()

	ev := sessionEvent("evt_1", payment.EventSessionCompleted, "cs_"+id, "pi_1", 11000, registrationMeta(id))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, ev))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, ev))

	replay := sessionEvent("evt_2", payment.EventSessionAsyncSucceeded, "cs_"+id, "pi_1", 11000, registrationMeta(id))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, replay))

	c := f.waitConfirmation(t)
	assert.Equal(t, model.KindRegistration, c.Kind)
	assert.Equal(t, "ana@example.com", c.To)
	assert.Equal(t, code, c.TicketCode)
	assert.Equal(t, "5K", c.CategoryName)
	f.assertNoConfirmation(t)

	reg := f.registration(t, id)
	assert.Equal(t, model.StatusConfirmed, reg.Status)
	assert.Equal(t, model.PaymentPaid, reg.PaymentStatus)
	assert.Equal(t, "pi_1", reg.PaymentTransactionID)
	assert.Equal(t, code, reg.TicketCode)
	assert.NotEmpty(t, reg.QRCode)
}

func TestHandlePaymentEvent_ConfirmedIsNeverDowngraded(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	f.expectTicket()
	f.expectConfirmation()
	ctx := context.Background()
	id := f.checkout(t, "ana@example.com")

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_1", payment.EventSessionCompleted, "cs_"+id, "pi_1", 11000, registrationMeta(id))))
	f.waitConfirmation(t)

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_2", payment.EventSessionExpired, "cs_"+id, "", 0, registrationMeta(id))))

	failed := &payment.Event{ID: "evt_3", Type: payment.EventPaymentIntentFailed}
	failed.Data.Object = payment.Object{ID: "pi_1", Object: "payment_intent", Metadata: registrationMeta(id)}
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, failed))

	reg := f.registration(t, id)
	assert.Equal(t, model.StatusConfirmed, reg.Status)
	assert.Equal(t, model.PaymentPaid, reg.PaymentStatus)
}

func TestHandlePaymentEvent_ExpiryReleasesSlot(t *testing.T) {
	f := newFixture(t, 100, intPtr(1))
	f.expectSessions()
	ctx := context.Background()
	id := f.checkout(t, "ana@example.com")

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_1", payment.EventSessionExpired, "cs_"+id, "", 0, registrationMeta(id))))

	reg := f.registration(t, id)
	assert.Equal(t, model.StatusCancelled, reg.Status)
	assert.Equal(t, model.PaymentFailed, reg.PaymentStatus)

	cat, err := f.store.GetCategory(ctx, f.category.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cat.CurrentParticipants)

	// The released slot is available to someone else.
	f.checkout(t, "bia@example.com")
}

func TestHandlePaymentEvent_StaleSessionExpiryIgnored(t *testing.T) {
	f := newFixture(t, 100, nil)
	ctx := context.Background()

	f.gateway.EXPECT().CreateSession(mock.Anything, mock.Anything).Return(&payment.Session{ID: "cs_old", URL: "https://pay.test/old"}, nil).Once()
	f.gateway.EXPECT().CreateSession(mock.Anything, mock.Anything).Return(&payment.Session{ID: "cs_new", URL: "https://pay.test/new"}, nil).Once()

	id := f.checkout(t, "ana@example.com")
	require.Equal(t, id, f.checkout(t, "ana@example.com"))

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_1", payment.EventSessionExpired, "cs_old", "", 0, registrationMeta(id))))
	reg := f.registration(t, id)
	assert.Equal(t, model.StatusPending, reg.Status)
	assert.Equal(t, "cs_new", reg.PaymentSessionID)

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_2", payment.EventSessionExpired, "cs_new", "", 0, registrationMeta(id))))
	assert.Equal(t, model.StatusCancelled, f.registration(t, id).Status)
}

func TestHandlePaymentEvent_SoftFailureKeepsReservation(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	ctx := context.Background()
	id := f.checkout(t, "ana@example.com")

	failed := &payment.Event{ID: "evt_1", Type: payment.EventPaymentIntentFailed}
	failed.Data.Object = payment.Object{ID: "pi_9", Object: "payment_intent", Metadata: registrationMeta(id)}
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, failed))

	reg := f.registration(t, id)
	assert.Equal(t, model.StatusPending, reg.Status)
	assert.Equal(t, model.PaymentFailed, reg.PaymentStatus)

	assert.Equal(t, id, f.checkout(t, "ana@example.com"))
	assert.Equal(t, model.PaymentPending, f.registration(t, id).PaymentStatus)
}

func TestHandlePaymentEvent_AmountMismatchNotApplied(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	id := f.checkout(t, "ana@example.com")

	ev := sessionEvent("evt_1", payment.EventSessionCompleted, "cs_"+id, "pi_1", 100, registrationMeta(id))
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), ev))

	assert.Equal(t, model.StatusPending, f.registration(t, id).Status)
}

func TestHandlePaymentEvent_SuccessAfterExpiryReconfirms(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	f.expectTicket()
	f.expectConfirmation()
	ctx := context.Background()
	id := f.checkout(t, "ana@example.com")

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_1", payment.EventSessionExpired, "cs_"+id, "", 0, registrationMeta(id))))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_2", payment.EventSessionCompleted, "cs_"+id, "pi_1", 11000, registrationMeta(id))))
	f.waitConfirmation(t)

	assert.True(t, f.registration(t, id).IsConfirmedPaid())
	cat, err := f.store.GetCategory(ctx, f.category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.CurrentParticipants)
}

func TestHandlePaymentEvent_UnknownEventsAcknowledged(t *testing.T) {
	f := newFixture(t, 100, nil)
	ctx := context.Background()

	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, &payment.Event{ID: "evt_1", Type: "customer.created"}))
	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_2", payment.EventSessionCompleted, "cs_missing", "pi_1", 100, nil)))
}

type seenStore struct {
	seen       map[string]bool
	remembered []string
}

func (s *seenStore) Seen(_ context.Context, id string) (bool, error) { return s.seen[id], nil }
func (s *seenStore) Remember(_ context.Context, id string) error {
	s.remembered = append(s.remembered, id)
	return nil
}

type brokenUpdateStore struct {
	*memory.Store
}

func (brokenUpdateStore) UpdatePaymentStatus(context.Context, string, model.StatusUpdate) (*model.Registration, bool, error) {
	return nil, false, errors.New("connection reset")
}

func TestHandlePaymentEvent_Dedup(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	id := f.checkout(t, "ana@example.com")

	dedup := &seenStore{seen: map[string]bool{"evt_dup": true}}
	f.svc.dedup = dedup
	ctx := context.Background()

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_dup", payment.EventSessionExpired, "cs_"+id, "", 0, registrationMeta(id))))
	assert.Equal(t, model.StatusPending, f.registration(t, id).Status)

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_new", payment.EventSessionExpired, "cs_"+id, "", 0, registrationMeta(id))))
	assert.Equal(t, model.StatusCancelled, f.registration(t, id).Status)
	assert.Equal(t, []string{"evt_new"}, dedup.remembered)
}

func TestHandlePaymentEvent_StoreFailureIsRetried(t *testing.T) {
	base := newFixture(t, 100, nil)
	base.expectSessions()
	id := base.checkout(t, "ana@example.com")

	f := newFixtureWithStore(t, base.store, brokenUpdateStore{base.store}, base.event, base.category)
	dedup := &seenStore{seen: map[string]bool{}}
	f.svc.dedup = dedup

	err := f.svc.HandlePaymentEvent(context.Background(), sessionEvent("evt_1", payment.EventSessionExpired, "cs_"+id, "", 0, registrationMeta(id)))
	assert.Error(t, err)
	assert.Empty(t, dedup.remembered)
	assert.Equal(t, model.StatusPending, base.registration(t, id).Status)
}

func TestHandlePaymentEvent_ReplayIssuesMissingTicket(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.expectSessions()
	ctx := context.Background()
	id := f.checkout(t, "ana@example.com")
	code := ticket.Code(f.event.Slug, id)

	f.tickets.EXPECT().Issue(mock.Anything, code).Return("", errors.New("render failed")).Once()
	f.expectConfirmation()
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_1", payment.EventSessionCompleted,
		"cs_"+id, "pi_1", 11000, registrationMeta(id))))
	f.waitConfirmation(t)
	assert.Empty(t, f.registration(t, id).QRCode)

	f.tickets.EXPECT().Issue(mock.Anything, code).Return("data:image/png;base64,AAAA", nil).Once()
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_2", payment.EventSessionAsyncSucceeded,
		"cs_"+id, "pi_1", 11000, registrationMeta(id))))

	reg := f.registration(t, id)
	assert.Equal(t, code, reg.TicketCode)
	assert.Equal(t, "data:image/png;base64,AAAA", reg.QRCode)
	f.assertNoConfirmation(t)
}

func TestHandlePaymentEvent_MalformedMetadataIDAcknowledged(t *testing.T) {
	base := newFixture(t, 100, nil)
	f := newFixtureWithStore(t, base.store, strictIDStore{base.store}, base.event, base.category)
	ctx := context.Background()

	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_1", payment.EventSessionCompleted,
		"cs_missing", "pi_1", 100, registrationMeta("not-a-uuid"))))

	meta := map[string]string{payment.MetadataKind: model.KindPhotoOrder, payment.MetadataPhotoOrderID: "42"}
	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, sessionEvent("evt_2", payment.EventSessionCompleted,
		"cs_missing", "pi_1", 100, meta)))
}
