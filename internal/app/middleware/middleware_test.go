package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/commands"
	"staypay/internal/app/middleware"
	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/policies"
	"staypay/internal/app/uow"
	"staypay/internal/infra/storage/memory"
)

type result struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type testCommand struct {
	Name    string
	IdemKey string
	Lock    string
	Fail    error
	Record  bool
}

func (testCommand) Key() string              { return "test.command" }
func (c testCommand) IdempotencyKey() string { return c.IdemKey }
func (testCommand) ResultPrototype() any     { return &result{} }
func (c testCommand) LockKey() string        { return c.Lock }

func (c testCommand) Validate() error {
	if c.Name == "" {
		return errors.New("name required")
	}
	return nil
}

type handler struct {
	calls atomic.Int32
	block chan struct{}
}

func (h *handler) Handle(ctx context.Context, cmd testCommand) (*result, error) {
	n := h.calls.Add(1)
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if cmd.Record {
		unit, ok := uow.FromContext(ctx)
		if !ok {
			return nil, uow.ErrUnitOfWorkMissing
		}
		if err := unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: cmd.Name, Name: "test.recorded"}); err != nil {
			return nil, err
		}
	}
	if cmd.Fail != nil {
		return nil, cmd.Fail
	}
	return &result{ID: cmd.Name, Count: int(n)}, nil
}

func newBus(h *handler) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, testCommand{}.Key(), h)
	return bus
}

func dispatch(t *testing.T, bus commands.Bus, cmd testCommand) (*result, error) {
	t.Helper()
	return commands.Dispatch[testCommand, *result](context.Background(), bus, cmd)
}

func TestChainCommands_OrderAndNilSkipping(t *testing.T) {
	var order []string
	trace := func(name string) middleware.CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return busFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := middleware.ChainCommands(newBus(&handler{}), trace("outer"), nil, trace("inner"))

	_, err := dispatch(t, bus, testCommand{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type busFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f busFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) { return f(ctx, cmd) }

func TestValidation_StopsInvalidCommands(t *testing.T) {
	h := &handler{}
	bus := middleware.ChainCommands(newBus(h), middleware.Validation())

	_, err := dispatch(t, bus, testCommand{})
	assert.EqualError(t, err, "name required")
	assert.Zero(t, h.calls.Load())
}

func TestTransaction_CommitsOnSuccess(t *testing.T) {
	store := memory.NewStore()
	bus := middleware.ChainCommands(newBus(&handler{}), middleware.Transaction(memory.Factory{Store: store}))

	_, err := dispatch(t, bus, testCommand{Name: "ev-1", Record: true})
	require.NoError(t, err)
	assert.Len(t, store.Outbox().Records(), 1)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	bus := middleware.ChainCommands(newBus(&handler{}), middleware.Transaction(memory.Factory{Store: store}))

	boom := errors.New("boom")
	_, err := dispatch(t, bus, testCommand{Name: "ev-1", Record: true, Fail: boom})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.Outbox().Records())
}

func TestTransaction_BeginFailureIsPersistence(t *testing.T) {
	bus := middleware.ChainCommands(newBus(&handler{}), middleware.Transaction(memory.Factory{}))

	_, err := dispatch(t, bus, testCommand{Name: "a"})
	assert.ErrorIs(t, err, uow.ErrPersistence)
	assert.ErrorIs(t, err, memory.ErrFactoryMisconfigured)
}

func TestIdempotency_ReplaysStoredResult(t *testing.T) {
	h := &handler{}
	store := memory.NewIdempotencyStore()
	bus := middleware.ChainCommands(newBus(h), middleware.Idempotency(store, middleware.IdempotencyOptions{TTL: time.Hour}))

	first, err := dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1"})
	require.NoError(t, err)
	second, err := dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), h.calls.Load())

	_, err = dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-2"})
	require.NoError(t, err)
	_, err = dispatch(t, bus, testCommand{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), h.calls.Load())
}

func TestIdempotency_FailuresAreNotRecorded(t *testing.T) {
	h := &handler{}
	store := memory.NewIdempotencyStore()
	bus := middleware.ChainCommands(newBus(h), middleware.Idempotency(store, middleware.IdempotencyOptions{}))

	_, err := dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1", Fail: errors.New("boom")})
	require.Error(t, err)

	res, err := dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

func TestIdempotency_ExpiredRecordsRunAgain(t *testing.T) {
	h := &handler{}
	now := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	bus := middleware.ChainCommands(newBus(h), middleware.Idempotency(memory.NewIdempotencyStore(), middleware.IdempotencyOptions{TTL: time.Minute, Now: clock}))

	_, err := dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1"})
	require.NoError(t, err)
	now = now.Add(-2 * time.Minute)
	_, err = dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.calls.Load())

	now = now.Add(time.Hour)
	_, err = dispatch(t, bus, testCommand{Name: "a", IdemKey: "k-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestSerialize_RejectsConcurrentWriter(t *testing.T) {
	h := &handler{block: make(chan struct{})}
	bus := middleware.ChainCommands(newBus(h), middleware.Serialize(memory.NewLocker(), time.Minute))

	done := make(chan error, 1)
	go func() {
		_, err := dispatch(t, bus, testCommand{Name: "a", Lock: "booking:bk-1"})
		done <- err
	}()
	require.Eventually(t, func() bool { return h.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := dispatch(t, bus, testCommand{Name: "b", Lock: "booking:bk-1"})
	assert.ErrorIs(t, err, policies.ErrLockNotAcquired)

	close(h.block)
	require.NoError(t, <-done)

	_, err = dispatch(t, bus, testCommand{Name: "d", Lock: "booking:bk-1"})
	assert.NoError(t, err)
}

func TestTimeout_CancelsSlowHandlers(t *testing.T) {
	h := &handler{block: make(chan struct{})}
	bus := middleware.ChainCommands(newBus(h), middleware.Timeout(20*time.Millisecond))

	_, err := dispatch(t, bus, testCommand{Name: "a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify() { c.n.Add(1) }

func TestOutboxNotify_OnlyAfterSuccess(t *testing.T) {
	n := &countingNotifier{}
	bus := middleware.ChainCommands(newBus(&handler{}), middleware.OutboxNotify(n))

	_, err := dispatch(t, bus, testCommand{Name: "a", Fail: errors.New("boom")})
	require.Error(t, err)
	assert.Zero(t, n.n.Load())

	_, err = dispatch(t, bus, testCommand{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), n.n.Load())
}

func TestLogging_PassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := middleware.ChainCommands(newBus(&handler{}), middleware.Logging(logger))

	res, err := dispatch(t, bus, testCommand{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.ID)
}
