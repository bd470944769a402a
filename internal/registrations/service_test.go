package registrations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberfest/backend/internal/models"
	"github.com/emberfest/backend/internal/notify"
	"github.com/emberfest/backend/internal/payments"
	"github.com/emberfest/backend/pkg/queue"
)

const testAdminPassword = "door-secret"

type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*payments.Session
	created  []payments.CreateSessionInput
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*payments.Session)}
}

func (g *fakeGateway) CreateSession(_ context.Context, in payments.CreateSessionInput) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, in)
	id := fmt.Sprintf("cs_test_%d", len(g.created))
	meta := make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		meta[k] = v
	}
	sess := &payments.Session{
		ID:          id,
		URL:         "https://checkout.example.com/" + id,
		Paid:        false,
		AmountTotal: in.AmountMinorUnits,
		Currency:    in.Currency,
		Metadata:    meta,
	}
	g.sessions[id] = sess
	return sess, nil
}

func (g *fakeGateway) GetSession(_ context.Context, sessionID string) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", sessionID)
	}
	cp := *sess
	return &cp, nil
}

func (g *fakeGateway) markPaid(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID].Paid = true
}

func (g *fakeGateway) lastCreated() payments.CreateSessionInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created[len(g.created)-1]
}

type fakeNotifier struct {
	sent atomic.Int32
	fail atomic.Bool
}

func (n *fakeNotifier) SendTicket(_ context.Context, _ notify.TicketEmail) error {
	if n.fail.Load() {
		return errors.New("provider rejected the message")
	}
	n.sent.Add(1)
	return nil
}

type fakeRetryQueue struct {
	mu       sync.Mutex
	payloads []queue.TicketEmailPayload
}

func (q *fakeRetryQueue) EnqueueTicketEmail(_ context.Context, p queue.TicketEmailPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, p)
	return nil
}

func (q *fakeRetryQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.payloads)
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.NotificationLog
}

func (r *fakeRecorder) Record(_ context.Context, entry *models.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeRecorder) byStatus(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

type testEnv struct {
	svc      *Service
	store    *Memory
	gateway  *fakeGateway
	notifier *fakeNotifier
	retries  *fakeRetryQueue
	recorder *fakeRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    NewMemory(),
		gateway:  newFakeGateway(),
		notifier: &fakeNotifier{},
		retries:  &fakeRetryQueue{},
		recorder: &fakeRecorder{},
	}
	env.svc = NewService(env.store, env.gateway, env.notifier, Config{
		Prices: payments.PriceTable{
			Tiers:            map[string]int64{"general": 95000, "vip": 250000},
			SurchargePercent: 6,
			Currency:         "usd",
		},
		PublicBaseURL: "https://tickets.example.com",
		EventName:     "Emberfest",
		AdminPassword: testAdminPassword,
	}, zap.NewNop())
	env.svc.SetRetryQueue(env.retries)
	env.svc.SetNotificationRecorder(env.recorder)
	return env
}

func validInput() CheckoutInput {
	return CheckoutInput{
		FullName:    "Ana Lucia",
		ContactName: "Marco Lucia",
		Email:       "ana@example.com",
		Tier:        "general",
	}
}

// payForNewCheckout runs a full checkout and marks its session paid,
// returning the session id.
func payForNewCheckout(t *testing.T, env *testEnv, in CheckoutInput) string {
	t.Helper()
	_, err := env.svc.CreateCheckout(context.Background(), in)
	require.NoError(t, err)
	sessionID := fmt.Sprintf("cs_test_%d", len(env.gateway.created))
	env.gateway.markPaid(sessionID)
	return sessionID
}

func TestCreateCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("returns redirect url and never writes", func(t *testing.T) {
		env := newTestEnv(t)
		url, err := env.svc.CreateCheckout(ctx, validInput())
		require.NoError(t, err)
		assert.Contains(t, url, "https://checkout.example.com/")
		assert.Equal(t, 0, env.store.Count())
	})

	t.Run("charges table price plus surcharge", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateCheckout(ctx, validInput())
		require.NoError(t, err)
		created := env.gateway.lastCreated()
		assert.Equal(t, int64(100700), created.AmountMinorUnits) // round(95000 * 1.06)
		assert.Equal(t, "usd", created.Currency)
	})

	t.Run("embeds full registrant record as metadata", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateCheckout(ctx, validInput())
		require.NoError(t, err)
		meta := env.gateway.lastCreated().Metadata
		_, err = uuid.Parse(meta["registration_id"])
		require.NoError(t, err)
		assert.Equal(t, "Ana Lucia", meta["full_name"])
		assert.Equal(t, "Marco Lucia", meta["contact_name"])
		assert.Equal(t, "ana@example.com", meta["email"])
		assert.Equal(t, "general", meta["tier"])
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		env := newTestEnv(t)
		for _, in := range []CheckoutInput{
			{ContactName: "x", Email: "a@b.c", Tier: "general"},
			{FullName: "x", Email: "a@b.c", Tier: "general"},
			{FullName: "x", ContactName: "y", Tier: "general"},
			{FullName: "  ", ContactName: "y", Email: "a@b.c", Tier: "general"},
		} {
			_, err := env.svc.CreateCheckout(ctx, in)
			require.ErrorIs(t, err, ErrValidation)
		}
		assert.Equal(t, 0, env.store.Count())
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		env := newTestEnv(t)
		in := validInput()
		in.Tier = "platinum"
		_, err := env.svc.CreateCheckout(ctx, in)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("propagates gateway failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.gateway.err = errors.New("gateway down")
		_, err := env.svc.CreateCheckout(ctx, validInput())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrValidation)
	})
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unpaid session without persisting", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateCheckout(ctx, validInput())
		require.NoError(t, err)

		_, err = env.svc.ConfirmPayment(ctx, "cs_test_1")
		require.ErrorIs(t, err, ErrPaymentNotCompleted)
		assert.Equal(t, 0, env.store.Count())
		assert.Equal(t, int32(0), env.notifier.sent.Load())
	})

	t.Run("first confirmation persists and notifies once", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := payForNewCheckout(t, env, validInput())

		result, err := env.svc.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)
		assert.False(t, result.AlreadyConfirmed)
		assert.Equal(t, "Ana Lucia", result.FullName)
		assert.Equal(t, "ana@example.com", result.Email)

		assert.Equal(t, 1, env.store.Count())
		assert.Equal(t, int32(1), env.notifier.sent.Load())
		assert.Equal(t, 1, env.recorder.byStatus(models.NotificationStatusSent))

		list, err := env.store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.PaymentStatusPaid, list[0].PaymentStatus)
		assert.Equal(t, int64(100700), list[0].AmountPaid)
		assert.False(t, list[0].CheckedIn)
	})

	t.Run("repeat confirmation is idempotent", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := payForNewCheckout(t, env, validInput())

		first, err := env.svc.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)
		require.False(t, first.AlreadyConfirmed)

		second, err := env.svc.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, second.AlreadyConfirmed)
		assert.Equal(t, "ana@example.com", second.Email)

		assert.Equal(t, 1, env.store.Count())
		assert.Equal(t, int32(1), env.notifier.sent.Load())
	})

	t.Run("unknown session errors", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.ConfirmPayment(ctx, "cs_test_missing")
		require.Error(t, err)
	})

	t.Run("notifier failure keeps registration and queues retry", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := payForNewCheckout(t, env, validInput())
		env.notifier.fail.Store(true)

		result, err := env.svc.ConfirmPayment(ctx, sessionID)
		require.ErrorIs(t, err, ErrNotificationFailed)
		require.NotNil(t, result)
		assert.False(t, result.AlreadyConfirmed)

		// Paid state was not rolled back.
		assert.Equal(t, 1, env.store.Count())
		assert.Equal(t, 1, env.retries.count())
		assert.Equal(t, 1, env.recorder.byStatus(models.NotificationStatusFailed))

		// The retry landed with the registration's identity.
		assert.Equal(t, "ana@example.com", env.retries.payloads[0].Recipient)

		// A later confirmation sees the record as already confirmed and
		// does not re-send inline.
		env.notifier.fail.Store(false)
		again, err := env.svc.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, again.AlreadyConfirmed)
		assert.Equal(t, int32(0), env.notifier.sent.Load())
	})

	t.Run("duplicate email for a different id is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := payForNewCheckout(t, env, validInput())
		_, err := env.svc.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)

		// Same email, fresh checkout, fresh id.
		otherSession := payForNewCheckout(t, env, validInput())
		_, err = env.svc.ConfirmPayment(ctx, otherSession)
		require.ErrorIs(t, err, ErrDuplicateEmail)
		assert.Equal(t, 1, env.store.Count())
	})
}

func TestConcurrentConfirmPayment(t *testing.T) {
	env := newTestEnv(t)
	sessionID := payForNewCheckout(t, env, validInput())

	const n = 16
	var wg sync.WaitGroup
	var firsts atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.svc.ConfirmPayment(context.Background(), sessionID)
			if err == nil && !result.AlreadyConfirmed {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load(), "exactly one caller may observe the first confirmation")
	assert.Equal(t, int32(1), env.notifier.sent.Load(), "exactly one notification may be dispatched")
	assert.Equal(t, 1, env.store.Count())
}

func confirmOne(t *testing.T, env *testEnv) *models.Registration {
	t.Helper()
	sessionID := payForNewCheckout(t, env, validInput())
	_, err := env.svc.ConfirmPayment(context.Background(), sessionID)
	require.NoError(t, err)
	list, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	return &list[0]
}

func TestVerifyCheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects bad credential without leaking existence", func(t *testing.T) {
		env := newTestEnv(t)
		reg := confirmOne(t, env)
		_, err := env.svc.VerifyCheckIn(ctx, reg.ID.String(), "wrong")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.VerifyCheckIn(ctx, uuid.New().String(), testAdminPassword)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.VerifyCheckIn(ctx, "not-a-ticket", testAdminPassword)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("first scan succeeds, repeat scans do not mutate", func(t *testing.T) {
		env := newTestEnv(t)
		reg := confirmOne(t, env)

		result, err := env.svc.VerifyCheckIn(ctx, reg.ID.String(), testAdminPassword)
		require.NoError(t, err)
		assert.Equal(t, CheckInStatusSuccess, result.Status)
		require.NotNil(t, result.Registration.CheckedInAt)
		firstAt := *result.Registration.CheckedInAt

		repeat, err := env.svc.VerifyCheckIn(ctx, reg.ID.String(), testAdminPassword)
		require.NoError(t, err)
		assert.Equal(t, CheckInStatusAlreadyCheckedIn, repeat.Status)
		require.NotNil(t, repeat.Registration.CheckedInAt)
		assert.Equal(t, firstAt, *repeat.Registration.CheckedInAt)
	})
}

func TestConcurrentCheckIn(t *testing.T) {
	env := newTestEnv(t)
	reg := confirmOne(t, env)

	const n = 32
	var wg sync.WaitGroup
	var successes, already atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.svc.VerifyCheckIn(context.Background(), reg.ID.String(), testAdminPassword)
			if err != nil {
				return
			}
			switch result.Status {
			case CheckInStatusSuccess:
				successes.Add(1)
			case CheckInStatusAlreadyCheckedIn:
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load(), "exactly one scan may win")
	assert.Equal(t, int32(n-1), already.Load())
}

func TestListRegistrations(t *testing.T) {
	ctx := context.Background()

	t.Run("requires credential", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.ListRegistrations(ctx, "wrong")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("newest first", func(t *testing.T) {
		env := newTestEnv(t)

		first := payForNewCheckout(t, env, validInput())
		_, err := env.svc.ConfirmPayment(ctx, first)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		in := validInput()
		in.FullName = "Bea Ortiz"
		in.Email = "bea@example.com"
		second := payForNewCheckout(t, env, in)
		_, err = env.svc.ConfirmPayment(ctx, second)
		require.NoError(t, err)

		list, err := env.svc.ListRegistrations(ctx, testAdminPassword)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "bea@example.com", list[0].Email)
		assert.Equal(t, "ana@example.com", list[1].Email)
	})
}

func TestResendTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("requires credential", func(t *testing.T) {
		env := newTestEnv(t)
		reg := confirmOne(t, env)
		err := env.svc.ResendTicket(ctx, reg.ID.String(), "wrong")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.svc.ResendTicket(ctx, uuid.New().String(), testAdminPassword)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("re-sends the ticket for an existing registration", func(t *testing.T) {
		env := newTestEnv(t)
		reg := confirmOne(t, env)
		require.Equal(t, int32(1), env.notifier.sent.Load())

		err := env.svc.ResendTicket(ctx, reg.ID.String(), testAdminPassword)
		require.NoError(t, err)
		assert.Equal(t, int32(2), env.notifier.sent.Load())
	})

	t.Run("reports delivery failure distinctly", func(t *testing.T) {
		env := newTestEnv(t)
		reg := confirmOne(t, env)
		env.notifier.fail.Store(true)

		err := env.svc.ResendTicket(ctx, reg.ID.String(), testAdminPassword)
		require.ErrorIs(t, err, ErrNotificationFailed)
	})
}
