package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/domain/event"
)

func paymentEvent(id string) event.Event {
	return event.Event{
		Source:     event.SourcePayment,
		Kind:       event.KindPaymentNotification,
		ID:         id,
		Payload:    event.Payload{PaymentID: id, NotificationType: "payment"},
		ReceivedAt: time.Now(),
	}
}

func chatEvent(kind event.Kind, id, text string) event.Event {
	return event.Event{
		Source:  event.SourceChat,
		Kind:    kind,
		ID:      id,
		Payload: event.Payload{Text: text, ChatID: 7},
	}
}

func counting(n *atomic.Int32) HandlerFunc {
	return func(context.Context, event.Event) error {
		n.Add(1)
		return nil
	}
}

func TestRoute_SameEventTwiceInvokesHandlerOnce(t *testing.T) {
	var calls atomic.Int32
	table := NewRoutes().Notification("payment", counting(&calls)).Build()
	r := New(table, dedupe.NewMemoryStore(time.Hour))

	outcome, err := r.Route(context.Background(), paymentEvent("abc123"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	outcome, err = r.Route(context.Background(), paymentEvent("abc123"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeduped, outcome)

	assert.Equal(t, int32(1), calls.Load())
}

func TestRoute_UnroutableLeavesStoreUntouched(t *testing.T) {
	store := dedupe.NewMemoryStore(time.Hour)
	ev := chatEvent(event.KindCommand, "100", "/unknown")

	empty := New(NewRoutes().Command("start", HandlerFunc(func(context.Context, event.Event) error { return nil })).Build(), store)
	outcome, err := empty.Route(context.Background(), ev)
	assert.ErrorIs(t, err, ErrUnroutable)
	assert.Equal(t, OutcomeUnroutable, outcome)
	assert.Equal(t, 0, store.Len())

	var calls atomic.Int32
	later := New(NewRoutes().Command("unknown", counting(&calls)).Build(), store)
	outcome, err = later.Route(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRoute_ConcurrentRedeliveryInvokesHandlerOnce(t *testing.T) {
	const n = 50
	var calls atomic.Int32
	table := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	})).Build()
	r := New(table, dedupe.NewMemoryStore(time.Hour))

	start := make(chan struct{})
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = r.Route(context.Background(), paymentEvent("dup"))
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	completed := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeCompleted {
			completed++
		} else {
			assert.Equal(t, OutcomeDeduped, outcomes[i])
		}
	}
	assert.Equal(t, 1, completed)
}

func TestRoute_CallbackPrefix(t *testing.T) {
	var pay atomic.Int32
	table := NewRoutes().Callback("pay_", counting(&pay)).Build()
	r := New(table, dedupe.NewMemoryStore(time.Hour))

	outcome, err := r.Route(context.Background(), chatEvent(event.KindCallbackAction, "1", "pay_50"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, int32(1), pay.Load())

	outcome, err = r.Route(context.Background(), chatEvent(event.KindCallbackAction, "2", "other_50"))
	assert.ErrorIs(t, err, ErrUnroutable)
	assert.Equal(t, OutcomeUnroutable, outcome)
	assert.Equal(t, int32(1), pay.Load())
}

func TestRoute_HandlerFailureIsNotRecorded(t *testing.T) {
	var calls atomic.Int32
	fail := true
	table := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		if fail {
			return errors.New("provider down")
		}
		return nil
	})).Build()
	store := dedupe.NewMemoryStore(time.Hour)
	r := New(table, store)

	outcome, err := r.Route(context.Background(), paymentEvent("retry-me"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrHandlerFailed)
	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "retry-me", herr.EventID)
	assert.Equal(t, "payment_notification:payment", herr.Route)
	assert.Equal(t, 0, store.Len())

	fail = false
	outcome, err = r.Route(context.Background(), paymentEvent("retry-me"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRoute_CancelledContextIsNotRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	table := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		cancel()
		return nil
	})).Build()
	store := dedupe.NewMemoryStore(time.Hour)
	r := New(table, store)

	outcome, err := r.Route(ctx, paymentEvent("cancelled"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.Equal(t, 0, store.Len())
}

func TestRoute_HandlerPanicBecomesFailure(t *testing.T) {
	table := NewRoutes().Command("boom", HandlerFunc(func(context.Context, event.Event) error {
		panic("kaboom")
	})).Build()
	r := New(table, dedupe.NewMemoryStore(time.Hour))

	outcome, err := r.Route(context.Background(), chatEvent(event.KindCommand, "9", "/boom"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.Contains(t, err.Error(), "kaboom")
}

type brokenStore struct{}

func (brokenStore) Seen(context.Context, dedupe.Key) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenStore) Record(context.Context, dedupe.Key, time.Time) error { return nil }

func TestRoute_StoreUnavailable(t *testing.T) {
	var calls atomic.Int32
	table := NewRoutes().Notification("payment", counting(&calls)).Build()
	r := New(table, brokenStore{})

	outcome, err := r.Route(context.Background(), paymentEvent("x"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRoute_WaiterGivesUpWhenContextEnds(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	table := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		close(entered)
		<-release
		return nil
	})).Build()
	r := New(table, dedupe.NewMemoryStore(time.Hour))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Route(context.Background(), paymentEvent("slow"))
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	outcome, err := r.Route(ctx, paymentEvent("slow"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}

func TestRoute_InstancesSharingAClaimingStoreInvokeHandlerOnce(t *testing.T) {
	const n = 50
	var calls atomic.Int32
	table := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return nil
	})).Build()

	shared := dedupe.NewMemoryStore(time.Hour)
	instances := []*Router{
		New(table, shared, WithClaimPolling(2*time.Millisecond, time.Second)),
		New(table, shared, WithClaimPolling(2*time.Millisecond, time.Second)),
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = instances[i%2].Route(context.Background(), paymentEvent("dup"))
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	completed := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestRoute_FailedClaimIsReleasedForOtherInstance(t *testing.T) {
	var calls atomic.Int32
	failing := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		return errors.New("provider down")
	})).Build()
	healthy := NewRoutes().Notification("payment", counting(&calls)).Build()

	shared := dedupe.NewMemoryStore(time.Hour)
	a := New(failing, shared)
	b := New(healthy, shared)

	outcome, err := a.Route(context.Background(), paymentEvent("p-1"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.Equal(t, 0, shared.Len())

	outcome, err = b.Route(context.Background(), paymentEvent("p-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRoute_GivesUpOnKeyHeldByOtherInstance(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	table := NewRoutes().Notification("payment", HandlerFunc(func(context.Context, event.Event) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})).Build()

	shared := dedupe.NewMemoryStore(time.Hour)
	holder := New(table, shared)
	other := New(table, shared, WithClaimPolling(2*time.Millisecond, 20*time.Millisecond))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = holder.Route(context.Background(), paymentEvent("slow"))
	}()
	<-entered

	outcome, err := other.Route(context.Background(), paymentEvent("slow"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	<-done

	outcome, err = other.Route(context.Background(), paymentEvent("slow"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeduped, outcome)
	assert.Equal(t, int32(1), calls.Load())
}

type brokenClaimer struct{ brokenStore }

func (brokenClaimer) Claim(context.Context, dedupe.Key, time.Time, time.Duration) (dedupe.ClaimState, error) {
	return dedupe.ClaimBusy, errors.New("connection refused")
}

func (brokenClaimer) Release(context.Context, dedupe.Key) error { return nil }

func TestRoute_ClaimErrorIsStoreUnavailable(t *testing.T) {
	var calls atomic.Int32
	r := New(NewRoutes().Notification("payment", counting(&calls)).Build(), brokenClaimer{})

	outcome, err := r.Route(context.Background(), paymentEvent("x"))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Zero(t, calls.Load())
}
