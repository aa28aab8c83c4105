package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/RidgeA/ib-rpc/transport"
	"github.com/RidgeA/ib-rpc/transport/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// More than any fixed transport buffer would hold.
const manyItems = 5000

type e2e struct {
	client Client
	errors chan error
}

func startInMemory(t *testing.T) *e2e {
	t.Helper()

	errs := make(chan error, 16)
	tr := inmemory.New(inmemory.SetErrorHandler(func(call transport.Call, err error) {
		errs <- fmt.Errorf("%s: %w", call.Method(), err)
	}))

	gateway := NewGateway("broker", SetTransport(tr), SetError(t.Logf))
	gateway.RegisterHandler("fetchTicks", func(inv Invocation, emit Emitter) error {
		return emit("ticksReady", inv.Args[0], []int{101, 102})
	})
	gateway.RegisterHandler("fetchDetails", func(inv Invocation, emit Emitter) error {
		for _, detail := range []string{"A", "B", "C"} {
			if err := emit("detail", inv.Args[0], detail); err != nil {
				return err
			}
		}
		return emit("detailEnd", inv.Args[0])
	})
	gateway.RegisterHandler("fetchMany", func(inv Invocation, emit Emitter) error {
		for i := 0; i < manyItems; i++ {
			if err := emit("item", inv.Args[0], i); err != nil {
				return err
			}
		}
		return emit("end", inv.Args[0])
	})
	gateway.RegisterHandler("fetchMissing", func(inv Invocation, emit Emitter) error {
		return emit("error", inv.Args[0], 200, "No security definition has been found")
	})
	gateway.RegisterHandler("watchPositions", func(inv Invocation, emit Emitter) error {
		for i := 1; i <= 3; i++ {
			if err := emit("position", "DU1", "AAPL", i*100); err != nil {
				return err
			}
		}
		if err := emit("error", -1, 1100, "Connectivity lost"); err != nil {
			return err
		}
		return emit("positionEnd")
	})
	require.NoError(t, gateway.Start())

	r := newTestRegistry(t, WithSharedErrorEvent(), WithUnownedErrorKey(-1))
	require.NoError(t, r.RegisterSingleResponse("fetchTicks", []string{"ticksReady", "error"}, 0))
	require.NoError(t, r.RegisterSingleResponse("fetchMissing", []string{"missing", "error"}, 0))
	require.NoError(t, r.RegisterMultiResponse("fetchDetails", []string{"detail", "error"}, "detailEnd", 0))
	require.NoError(t, r.RegisterMultiResponse("fetchMany", []string{"item"}, "end", 0))
	require.NoError(t, r.RegisterStreaming("watchPositions", []string{"position", "positionEnd", "error"}, 0))

	client := NewClient("client", SetTransport(tr), SetDispatcher(r.Build()), SetError(t.Logf))
	require.NoError(t, client.Start())

	t.Cleanup(tr.Shutdown)
	return &e2e{client: client, errors: errs}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInMemory_Call(t *testing.T) {
	env := startInMemory(t)

	got, err := env.client.Call(testContext(t), "fetchTicks", 7)
	require.NoError(t, err)
	assert.Equal(t, Args{json.Number("7"), []interface{}{json.Number("101"), json.Number("102")}}, got)
}

func TestInMemory_CallAll(t *testing.T) {
	env := startInMemory(t)

	got, err := env.client.CallAll(testContext(t), "fetchDetails", 7)
	require.NoError(t, err)
	assert.Equal(t, []Args{
		{json.Number("7"), "A"},
		{json.Number("7"), "B"},
		{json.Number("7"), "C"},
	}, got)
}

func TestInMemory_CallAllManyEvents(t *testing.T) {
	env := startInMemory(t)

	got, err := env.client.CallAll(testContext(t), "fetchMany", 1)
	require.NoError(t, err)
	require.Len(t, got, manyItems)
	for i, item := range got {
		assert.Equal(t, json.Number(fmt.Sprint(i)), item[1])
	}
}

func TestInMemory_ConcurrentKeys(t *testing.T) {
	env := startInMemory(t)

	futures := make(map[int]*Future[[]Args])
	for key := 1; key <= 20; key++ {
		f, err := env.client.RequestAll("fetchDetails", key)
		require.NoError(t, err)
		futures[key] = f
	}

	ctx := testContext(t)
	for key, f := range futures {
		got, err := f.Await(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, json.Number(fmt.Sprint(key)), got[0][0])
	}
}

func TestInMemory_ErrorEventRejects(t *testing.T) {
	env := startInMemory(t)

	_, err := env.client.Call(testContext(t), "fetchMissing", 9)
	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "error", cbErr.Event)
	assert.Equal(t, Args{json.Number("9"), json.Number("200"), "No security definition has been found"}, cbErr.Args)
}

func TestInMemory_Stream(t *testing.T) {
	env := startInMemory(t)

	events := make(chan Event, 8)
	require.NoError(t, env.client.Stream("watchPositions", func(ev Event) { events <- ev }))

	ctx := testContext(t)
	next := func() Event {
		select {
		case ev := <-events:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for a stream event")
			return Event{}
		}
	}

	for i := 1; i <= 3; i++ {
		ev := next()
		assert.Equal(t, "position", ev.Name)
		assert.Equal(t, json.Number(fmt.Sprint(i*100)), ev.Args[2])
	}

	// The error event is raised to the transport, not to the listener.
	select {
	case err := <-env.errors:
		assert.ErrorIs(t, err, ErrCallback)
	case <-ctx.Done():
		t.Fatal("error event was not raised")
	}

	assert.Equal(t, "positionEnd", next().Name)
}
