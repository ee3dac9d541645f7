package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pitchside/internal/billing"
	"pitchside/internal/model"
	"pitchside/internal/repository"

	"github.com/google/uuid"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errStoreDown = errors.New("connection refused")

// store is an in-memory stand-in for the Postgres schema. It enforces the
// same uniqueness rules and computes player access like the view does.
type store struct {
	mu    sync.Mutex
	clock *testClock

	users        map[string]*model.User
	subs         map[string]*model.Subscription
	plans        map[string]*model.Plan
	grants       []*model.EntitlementGrant
	payments     map[string]*model.Payment
	events       map[string]*model.BillingWebhookEvent
	players      map[string]*model.Player
	matches      []*model.Match
	codes        map[string]*model.AccessCode
	deadLetters  map[string]*model.DeadLetterMessage
	nextEventID  int64
	failAccess   bool
	paymentsErr  error
}

func newStore(clock *testClock) *store {
	return &store{
		clock:       clock,
		users:       map[string]*model.User{},
		subs:        map[string]*model.Subscription{},
		plans:       map[string]*model.Plan{},
		payments:    map[string]*model.Payment{},
		events:      map[string]*model.BillingWebhookEvent{},
		players:     map[string]*model.Player{},
		codes:       map[string]*model.AccessCode{},
		deadLetters: map[string]*model.DeadLetterMessage{},
	}
}

func (s *store) addUser(email string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{UserID: uuid.NewString(), Name: "Parent", Email: email, CreatedAt: s.clock.Now()}
	s.users[u.UserID] = u
	return u
}

func (s *store) addPlayer(owner string) *model.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Player{ID: uuid.NewString(), OwnerUserID: owner, Name: "Kid", CreatedAt: s.clock.Now()}
	s.players[p.ID] = p
	return p
}

func (s *store) addPlan(id string, days int, priceRef string, recurring bool) *model.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Plan{ID: id, Name: strings.ToUpper(id), Days: days, AmountCents: 4900, Currency: "eur", Active: true, Recurring: recurring}
	if priceRef != "" {
		p.BillingPriceRef = &priceRef
	}
	s.plans[id] = p
	return p
}

func (s *store) grantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *store) subscription(userID string) *model.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[userID]; ok {
		cp := *sub
		return &cp
	}
	return nil
}

func (s *store) userRepo() repository.UserRepository { return fakeUsers{s} }
func (s *store) subRepo() repository.SubscriptionRepository { return fakeSubs{s} }
func (s *store) planRepo() repository.PlanRepository { return fakePlans{s} }
func (s *store) paymentRepo() repository.PaymentRepository { return fakePayments{s} }
func (s *store) entitlementRepo() repository.EntitlementRepository { return fakeEntitlements{s} }
func (s *store) eventRepo() repository.WebhookEventRepository { return fakeEvents{s} }
func (s *store) accessRepo() repository.AccessRepository { return fakeAccess{s} }
func (s *store) playerRepo() repository.PlayerRepository { return fakePlayers{s} }
func (s *store) matchRepo() repository.MatchRepository { return fakeMatches{s} }
func (s *store) accessCodeRepo() repository.AccessCodeRepository { return fakeCodes{s} }
func (s *store) dlqRepo() repository.DLQRepository { return fakeDLQ{s} }

type fakeUsers struct{ s *store }

func (f fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *u
	if existing, ok := f.s.users[u.UserID]; ok {
		cp.StripeCustomerID = existing.StripeCustomerID
	}
	f.s.users[u.UserID] = &cp
	return nil
}

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) GetUserByStripeCustomerID(_ context.Context, customerID string) (*model.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) UpdateStripeCustomerID(_ context.Context, userID, customerID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[userID]; ok && u.StripeCustomerID == nil {
		c := customerID
		u.StripeCustomerID = &c
	}
	return nil
}

type fakeSubs struct{ s *store }

func (f fakeSubs) GetSubscription(_ context.Context, userID string) (*model.Subscription, error) {
	return f.s.subscription(userID), nil
}

func (f fakeSubs) GetSubscriptionByCustomerRef(_ context.Context, customerRef string) (*model.Subscription, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, sub := range f.s.subs {
		if sub.BillingCustomerRef != nil && *sub.BillingCustomerRef == customerRef {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeSubs) UpsertSubscription(_ context.Context, in repository.SubscriptionUpsert) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	sub, ok := f.s.subs[in.UserID]
	if !ok {
		sub = &model.Subscription{UserID: in.UserID, CreatedAt: f.s.clock.Now()}
		f.s.subs[in.UserID] = sub
	}
	if in.BillingCustomerRef != "" {
		ref := in.BillingCustomerRef
		sub.BillingCustomerRef = &ref
	}
	if in.BillingSubscriptionRef != "" {
		ref := in.BillingSubscriptionRef
		sub.BillingSubscriptionRef = &ref
	}
	sub.Status = in.Status
	sub.CurrentPeriodEnd = nil
	if in.CurrentPeriodEnd != nil {
		end := *in.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	sub.CancelAtPeriodEnd = in.CancelAtPeriodEnd
	return nil
}

type fakePlans struct{ s *store }

func (f fakePlans) GetPlanByID(_ context.Context, id string) (*model.Plan, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f fakePlans) GetPlanByPriceRef(_ context.Context, priceRef string) (*model.Plan, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, p := range f.s.plans {
		if p.BillingPriceRef != nil && *p.BillingPriceRef == priceRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakePlans) ListActivePlans(_ context.Context) ([]model.Plan, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []model.Plan{}
	for _, p := range f.s.plans {
		if p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakePayments struct{ s *store }

func (f fakePayments) RecordPayment(_ context.Context, p *model.Payment) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.paymentsErr != nil {
		return false, f.s.paymentsErr
	}
	key := p.Provider + "/" + p.ProviderRef
	if _, ok := f.s.payments[key]; ok {
		return false, nil
	}
	cp := *p
	cp.ID = uuid.NewString()
	f.s.payments[key] = &cp
	return true, nil
}

type fakeEntitlements struct{ s *store }

func (f fakeEntitlements) InsertGrant(_ context.Context, g *model.EntitlementGrant) (*model.EntitlementGrant, bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.grants {
		if existing.Source == g.Source && existing.SourceID == g.SourceID {
			cp := *existing
			return &cp, false, nil
		}
	}
	if !g.EndsAt.After(g.StartsAt) {
		return nil, false, fmt.Errorf("check constraint: ends_at must be after starts_at")
	}
	cp := *g
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.s.clock.Now()
	f.s.grants = append(f.s.grants, &cp)
	out := cp
	return &out, true, nil
}

func (f fakeEntitlements) GetGrantBySource(_ context.Context, source, sourceID string) (*model.EntitlementGrant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, g := range f.s.grants {
		if g.Source == source && g.SourceID == sourceID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeEntitlements) ListExpiring(_ context.Context, from, to time.Time) ([]model.ExpiringAccess, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []model.ExpiringAccess
	for _, p := range f.s.players {
		end := f.s.accessEndLocked(p)
		if end == nil || !end.After(from) || end.After(to) {
			continue
		}
		id := p.ID
		out = append(out, model.ExpiringAccess{UserID: p.OwnerUserID, Email: f.s.users[p.OwnerUserID].Email, PlayerID: &id, EndsAt: *end})
	}
	return out, nil
}

// accessEndLocked mirrors the player_access_status view.
func (s *store) accessEndLocked(p *model.Player) *time.Time {
	now := s.clock.Now()
	var best *time.Time
	consider := func(t time.Time) {
		if best == nil || t.After(*best) {
			tt := t
			best = &tt
		}
	}
	for _, g := range s.grants {
		if g.StartsAt.After(now) {
			continue
		}
		if (g.PlayerID != nil && *g.PlayerID == p.ID) || (g.PlayerID == nil && g.UserID == p.OwnerUserID) {
			consider(g.EndsAt)
		}
	}
	if sub, ok := s.subs[p.OwnerUserID]; ok && sub.Status.ImpliesActive() && sub.CurrentPeriodEnd != nil {
		consider(*sub.CurrentPeriodEnd)
	}
	return best
}

type fakeEvents struct{ s *store }

func (f fakeEvents) RecordEvent(_ context.Context, e *model.BillingWebhookEvent) (*model.BillingWebhookEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	key := e.Provider + "/" + e.ProviderEventID
	if existing, ok := f.s.events[key]; ok {
		cp := *existing
		return &cp, nil
	}
	f.s.nextEventID++
	cp := *e
	cp.ID = f.s.nextEventID
	cp.CreatedAt = f.s.clock.Now()
	f.s.events[key] = &cp
	out := cp
	return &out, nil
}

func (f fakeEvents) MarkProcessed(_ context.Context, id int64, procErr string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range f.s.events {
		if e.ID == id {
			now := f.s.clock.Now()
			e.ProcessedAt = &now
			e.ProcessingError = procErr
		}
	}
	return nil
}

func (f fakeEvents) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for k, e := range f.s.events {
		if e.ProcessedAt != nil && e.ProcessingError == "" && e.ProcessedAt.Before(before) {
			delete(f.s.events, k)
			n++
		}
	}
	return n, nil
}

type fakeAccess struct{ s *store }

func (f fakeAccess) GetPlayerAccess(_ context.Context, ownerUserID, playerID string) (*model.PlayerAccess, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAccess {
		return nil, errStoreDown
	}
	p, ok := f.s.players[playerID]
	if !ok || p.OwnerUserID != ownerUserID {
		return nil, nil
	}
	return &model.PlayerAccess{PlayerID: p.ID, OwnerUserID: p.OwnerUserID, AccessEndsAt: f.s.accessEndLocked(p)}, nil
}

type fakePlayers struct{ s *store }

func (f fakePlayers) CreatePlayer(_ context.Context, p *model.Player) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = f.s.clock.Now()
	cp := *p
	f.s.players[p.ID] = &cp
	return nil
}

func (f fakePlayers) GetPlayer(_ context.Context, ownerUserID, playerID string) (*model.Player, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.players[playerID]; ok && p.OwnerUserID == ownerUserID {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f fakePlayers) ListPlayersByOwner(_ context.Context, ownerUserID string) ([]model.Player, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []model.Player{}
	for _, p := range f.s.players {
		if p.OwnerUserID == ownerUserID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeMatches struct{ s *store }

func (f fakeMatches) CreateMatch(_ context.Context, m *model.Match) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = f.s.clock.Now()
	cp := *m
	f.s.matches = append(f.s.matches, &cp)
	return nil
}

type fakeCodes struct{ s *store }

func (f fakeCodes) GetAccessCode(_ context.Context, code string) (*model.AccessCode, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if c, ok := f.s.codes[strings.ToUpper(strings.TrimSpace(code))]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

type fakeDLQ struct{ s *store }

func (f fakeDLQ) Create(_ context.Context, m *model.DeadLetterMessage) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	key := m.SubscriptionName + "/" + m.MessageID
	if _, ok := f.s.deadLetters[key]; !ok {
		cp := *m
		f.s.deadLetters[key] = &cp
	}
	return nil
}

// fakeGateway serves checkout sessions and customers from maps and verifies
// webhooks with the real signature check.
type fakeGateway struct {
	mu            sync.Mutex
	sessions      map[string]*billing.CheckoutSession
	customers     map[string]*billing.Customer
	webhookSecret string
	err           error
	created       []billing.CheckoutParams
	nextCustomer  int
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{
		sessions:      map[string]*billing.CheckoutSession{},
		customers:     map[string]*billing.Customer{},
		webhookSecret: secret,
	}
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sess, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get checkout session: %w", billing.ErrNotFound)
	}
	cp := *sess
	return &cp, nil
}

func (g *fakeGateway) GetCustomer(_ context.Context, id string) (*billing.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.customers[id]
	if !ok {
		return nil, fmt.Errorf("get customer: %w", billing.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, p billing.CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.nextCustomer++
	id := fmt.Sprintf("cus_%d", g.nextCustomer)
	g.customers[id] = &billing.Customer{ID: id, Email: p.Email, UserID: p.UserID}
	return id, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p billing.CheckoutParams) (*billing.CheckoutRedirect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, p)
	id := fmt.Sprintf("cs_test_%d", len(g.created))
	return &billing.CheckoutRedirect{SessionID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerRef, returnURL string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "https://billing.stripe.test/p/" + customerRef + "?return=" + returnURL, nil
}

func (g *fakeGateway) ConstructEvent(payload []byte, signature string) (*billing.Event, error) {
	return billing.ParseStripeEvent(payload, signature, g.webhookSecret)
}

type publishedMessage struct {
	topic   string
	payload []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []publishedMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.msgs = append(p.msgs, publishedMessage{topic: topic, payload: payload, attrs: attrs})
	return fmt.Sprintf("msg-%d", len(p.msgs)), nil
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.msgs {
		if m.attrs["event_type"] == eventType {
			n++
		}
	}
	return n
}
