package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"pitchside/internal/billing"
	"pitchside/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sign builds a Stripe-Signature header. Verification uses the wall clock,
// so the timestamp is always real time.
func sign(payload []byte) string {
	unix := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(unix + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

type subEvent struct {
	eventID   string
	eventType string
	subID     string
	customer  string
	status    string
	periodEnd time.Time
	userID    string
	priceID   string
}

func (e subEvent) payload() []byte {
	if e.subID == "" {
		e.subID = "sub_1"
	}
	if e.priceID == "" {
		e.priceID = "price_monthly"
	}
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"api_version": "2025-06-30.basil",
		"created": 1767258000,
		"type": %q,
		"data": {"object": {
			"id": %q,
			"object": "subscription",
			"customer": %q,
			"status": %q,
			"cancel_at_period_end": false,
			"metadata": {"user_id": %q},
			"items": {"object": "list", "data": [
				{"id": "si_1", "object": "subscription_item", "current_period_end": %d, "price": {"id": %q, "object": "price"}}
			]}
		}}
	}`, e.eventID, e.eventType, e.subID, e.customer, e.status, e.userID, e.periodEnd.Unix(), e.priceID))
}

func (h *harness) deliver(t *testing.T, payload []byte) error {
	t.Helper()
	return h.webhooks.HandleEvent(context.Background(), payload, sign(payload))
}

func linkedUser(t *testing.T, h *harness, customerRef string) *model.User {
	t.Helper()
	u := h.store.addUser("parent@example.com")
	require.NoError(t, h.store.userRepo().UpdateStripeCustomerID(context.Background(), u.UserID, customerRef))
	return u
}

func TestHandleEvent_RejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	payload := subEvent{eventID: "evt_bad", eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "active", periodEnd: t0.Add(30 * day)}.payload()

	err := h.webhooks.HandleEvent(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	assert.Empty(t, h.store.events)
}

func TestHandleEvent_SubscriptionGrantsPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := linkedUser(t, h, "cus_1")
	player := h.store.addPlayer(user.UserID)

	end := t0.Add(30 * day)
	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_1", eventType: billing.EventSubscriptionCreated, customer: "cus_1", status: "active", periodEnd: end}.payload()))

	sub := h.store.subscription(user.UserID)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, end, *sub.CurrentPeriodEnd)
	assert.Equal(t, "cus_1", *sub.BillingCustomerRef)
	assert.Equal(t, "sub_1", *sub.BillingSubscriptionRef)

	g, err := h.store.entitlementRepo().GetGrantBySource(ctx, model.GrantSourceStripeSubscription, fmt.Sprintf("sub_1:%d", end.Unix()))
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, end, g.EndsAt)
	require.NotNil(t, g.PlanID)
	assert.Equal(t, "monthly", *g.PlanID)

	assert.True(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
	assert.Equal(t, 1, h.pub.count(EventEntitlementGranted))
}

func TestHandleEvent_DuplicateDeliveryIsSkipped(t *testing.T) {
	h := newHarness(t)
	user := linkedUser(t, h, "cus_1")
	payload := subEvent{eventID: "evt_dup", eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "active", periodEnd: t0.Add(30 * day)}.payload()

	require.NoError(t, h.deliver(t, payload))
	before := h.store.subscription(user.UserID)

	require.NoError(t, h.deliver(t, payload))
	after := h.store.subscription(user.UserID)

	assert.Equal(t, before, after)
	assert.Equal(t, 1, h.store.grantCount())
	assert.Len(t, h.store.events, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.WebhookEvents.WithLabelValues(billing.EventSubscriptionUpdated, "duplicate")))
}

// The same provider state delivered under different event ids converges.
func TestHandleEvent_ReplayedStateConverges(t *testing.T) {
	h := newHarness(t)
	user := linkedUser(t, h, "cus_1")
	ev := subEvent{eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "active", periodEnd: t0.Add(30 * day)}

	ev.eventID = "evt_a"
	require.NoError(t, h.deliver(t, ev.payload()))
	first := h.store.subscription(user.UserID)

	ev.eventID = "evt_b"
	require.NoError(t, h.deliver(t, ev.payload()))
	second := h.store.subscription(user.UserID)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.CurrentPeriodEnd, second.CurrentPeriodEnd)
	assert.Equal(t, 1, h.store.grantCount())
}

func TestHandleEvent_RenewalAddsGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := linkedUser(t, h, "cus_1")
	player := h.store.addPlayer(user.UserID)

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_p1", eventType: billing.EventSubscriptionCreated, customer: "cus_1", status: "active", periodEnd: t0.Add(30 * day)}.payload()))
	h.clock.Advance(30 * day)
	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_p2", eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "active", periodEnd: t0.Add(60 * day)}.payload()))

	assert.Equal(t, 2, h.store.grantCount())
	h.clock.Advance(29 * day)
	assert.True(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
	h.clock.Advance(day)
	assert.False(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
}

func TestHandleEvent_ActiveWithPastPeriodEndDenies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := linkedUser(t, h, "cus_1")
	player := h.store.addPlayer(user.UserID)

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_old", eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "active", periodEnd: t0.Add(-time.Hour)}.payload()))

	sub := h.store.subscription(user.UserID)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Zero(t, h.store.grantCount())
	assert.False(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
}

func TestHandleEvent_PastDueGrantsNothing(t *testing.T) {
	h := newHarness(t)
	user := linkedUser(t, h, "cus_1")
	player := h.store.addPlayer(user.UserID)

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_pd", eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "past_due", periodEnd: t0.Add(20 * day)}.payload()))

	assert.Equal(t, model.SubscriptionStatusPastDue, h.store.subscription(user.UserID).Status)
	assert.Zero(t, h.store.grantCount())
	assert.False(t, h.access.CanAccessPlayer(context.Background(), user.UserID, player.ID))
}

// Cancelling keeps access already paid for until the grant ends.
func TestHandleEvent_DeletedKeepsPaidWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.store.addUser("parent@example.com")
	player := h.store.addPlayer(user.UserID)

	sess := h.paidSession("cs_annual", user, "annual")
	_, err := h.checkout.ConfirmSession(ctx, sess.ID)
	require.NoError(t, err)

	h.clock.Advance(10 * day)
	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_del", eventType: billing.EventSubscriptionDeleted, customer: sess.CustomerRef, status: "canceled", periodEnd: t0.Add(365 * day)}.payload()))

	sub := h.store.subscription(user.UserID)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, 1, h.store.grantCount())

	assert.True(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
	h.clock.Advance(355*day - time.Second)
	assert.True(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
	h.clock.Advance(time.Second)
	assert.False(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
}

func TestHandleEvent_DeletedOverridesReportedStatus(t *testing.T) {
	h := newHarness(t)
	user := linkedUser(t, h, "cus_1")

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_del2", eventType: billing.EventSubscriptionDeleted, customer: "cus_1", status: "active", periodEnd: t0.Add(10 * day)}.payload()))

	assert.Equal(t, model.SubscriptionStatusCanceled, h.store.subscription(user.UserID).Status)
	assert.Zero(t, h.store.grantCount())
}

func TestHandleEvent_ResolvesUserFromMetadata(t *testing.T) {
	h := newHarness(t)
	user := h.store.addUser("parent@example.com")

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_meta", eventType: billing.EventSubscriptionCreated, customer: "cus_new", status: "trialing", periodEnd: t0.Add(14 * day), userID: user.UserID}.payload()))

	sub := h.store.subscription(user.UserID)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubscriptionStatusTrialing, sub.Status)
	assert.Equal(t, 1, h.store.grantCount())
}

func TestHandleEvent_ResolvesUserFromCustomer(t *testing.T) {
	h := newHarness(t)
	user := h.store.addUser("parent@example.com")
	h.gateway.customers["cus_remote"] = &billing.Customer{ID: "cus_remote", UserID: user.UserID}

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_cust", eventType: billing.EventSubscriptionCreated, customer: "cus_remote", status: "active", periodEnd: t0.Add(30 * day)}.payload()))
	assert.NotNil(t, h.store.subscription(user.UserID))
}

func TestHandleEvent_UnresolvableUserIsAcked(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_orphan", eventType: billing.EventSubscriptionCreated, customer: "cus_orphan", status: "active", periodEnd: t0.Add(30 * day)}.payload()))

	assert.Empty(t, h.store.subs)
	assert.Zero(t, h.store.grantCount())
	stored := h.store.events["stripe/evt_orphan"]
	require.NotNil(t, stored)
	assert.True(t, stored.Done())
}

func TestHandleEvent_TransientFailureIsRedelivered(t *testing.T) {
	h := newHarness(t)
	user := h.store.addUser("parent@example.com")
	payload := subEvent{eventID: "evt_retry", eventType: billing.EventSubscriptionCreated, customer: "cus_later", status: "active", periodEnd: t0.Add(30 * day)}.payload()

	h.gateway.err = fmt.Errorf("get customer: %w", billing.ErrUnavailable)
	err := h.deliver(t, payload)
	require.ErrorIs(t, err, billing.ErrUnavailable)

	stored := h.store.events["stripe/evt_retry"]
	require.NotNil(t, stored)
	assert.False(t, stored.Done())
	assert.NotEmpty(t, stored.ProcessingError)

	h.gateway.err = nil
	h.gateway.customers["cus_later"] = &billing.Customer{ID: "cus_later", UserID: user.UserID}
	require.NoError(t, h.deliver(t, payload))

	assert.True(t, h.store.events["stripe/evt_retry"].Done())
	assert.Equal(t, 1, h.store.grantCount())
}

func TestHandleEvent_CheckoutCompleted(t *testing.T) {
	h := newHarness(t)
	user := h.store.addUser("parent@example.com")
	h.paidSession("cs_hook", user, "annual")

	payload := []byte(`{"id": "evt_cs", "object": "event", "type": "checkout.session.completed",
		"data": {"object": {"id": "cs_hook", "object": "checkout.session", "payment_status": "paid"}}}`)
	require.NoError(t, h.deliver(t, payload))
	assert.Equal(t, 1, h.store.grantCount())

	// The success page confirming afterwards finds the same grant.
	out, err := h.checkout.ConfirmSession(context.Background(), "cs_hook")
	require.NoError(t, err)
	assert.False(t, out.NewGrant)
	assert.Equal(t, 1, h.store.grantCount())
}

func TestHandleEvent_CheckoutForUnknownSessionIsAcked(t *testing.T) {
	h := newHarness(t)
	payload := []byte(`{"id": "evt_cs_missing", "object": "event", "type": "checkout.session.completed",
		"data": {"object": {"id": "cs_gone", "object": "checkout.session"}}}`)
	require.NoError(t, h.deliver(t, payload))
	assert.Zero(t, h.store.grantCount())
}

func TestHandleEvent_IgnoresOtherTypes(t *testing.T) {
	h := newHarness(t)
	payload := []byte(`{"id": "evt_inv", "object": "event", "type": "invoice.paid",
		"data": {"object": {"id": "in_1", "object": "invoice"}}}`)
	require.NoError(t, h.deliver(t, payload))
	assert.True(t, h.store.events["stripe/evt_inv"].Done())
}

func TestConfirmSession_RepeatAfterDeletedKeepsCanceled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.store.addUser("parent@example.com")
	sess := h.paidSession("cs_monthly", user, "monthly")
	sess.Mode = "subscription"
	sess.SubscriptionRef = "sub_1"

	_, err := h.checkout.ConfirmSession(ctx, sess.ID)
	require.NoError(t, err)

	providerEnd := t0.Add(31 * day)
	h.clock.Advance(day)
	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_del_monthly", eventType: billing.EventSubscriptionDeleted, customer: sess.CustomerRef, status: "canceled", periodEnd: providerEnd}.payload()))
	require.Equal(t, model.SubscriptionStatusCanceled, h.store.subscription(user.UserID).Status)

	// success page reload
	_, err = h.checkout.ConfirmSession(ctx, sess.ID)
	require.NoError(t, err)
	// late checkout.session.completed redelivery
	payload := []byte(`{"id": "evt_cs_late", "object": "event", "type": "checkout.session.completed",
		"data": {"object": {"id": "cs_monthly", "object": "checkout.session", "payment_status": "paid"}}}`)
	require.NoError(t, h.deliver(t, payload))

	sub := h.store.subscription(user.UserID)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, providerEnd.Equal(*sub.CurrentPeriodEnd))
	assert.Equal(t, 1, h.store.grantCount())
}

func TestConfirmSession_NewPurchaseLeavesProviderSubscriptionAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := linkedUser(t, h, "cus_1")
	player := h.store.addPlayer(user.UserID)

	providerEnd := t0.Add(5 * day)
	require.NoError(t, h.deliver(t, subEvent{eventID: "evt_pd", eventType: billing.EventSubscriptionUpdated, customer: "cus_1", status: "past_due", periodEnd: providerEnd, userID: user.UserID}.payload()))

	out, err := h.checkout.ConfirmSession(ctx, h.paidSession("cs_one_off", user, "annual").ID)
	require.NoError(t, err)
	require.True(t, out.NewGrant)

	sub := h.store.subscription(user.UserID)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubscriptionStatusPastDue, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, providerEnd.Equal(*sub.CurrentPeriodEnd))
	// access comes from the grant, not the mirror
	assert.True(t, h.access.CanAccessPlayer(ctx, user.UserID, player.ID))
}
