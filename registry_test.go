package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DuplicateMethod(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterSingleResponse("fetchTicks", []string{"ticksReady"}, 0))

	err := r.RegisterStreaming("fetchTicks", []string{"other"}, 0)
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	var dup *DuplicateRegistrationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "method", dup.Kind)
	assert.Equal(t, "fetchTicks", dup.Name)
}

func TestRegistry_DuplicateEvent(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterSingleResponse("fetchTicks", []string{"ticksReady", "error"}, 0))

	err := r.RegisterSingleResponse("fetchQuotes", []string{"quote", "ticksReady"}, 0)
	var dup *DuplicateRegistrationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "event", dup.Kind)
	assert.Equal(t, "ticksReady", dup.Name)

	// The failed registration binds nothing.
	d := r.Build()
	assert.Equal(t, []string{"fetchTicks"}, d.Methods())
	assert.Equal(t, []string{"error", "ticksReady"}, d.Events())
}

func TestRegistry_ErrorEventIsUniqueByDefault(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterSingleResponse("a", []string{"x", "error"}, 0))
	assert.ErrorIs(t, r.RegisterSingleResponse("b", []string{"y", "error"}, 0), ErrDuplicateRegistration)
}

func TestRegistry_SharedErrorEvent(t *testing.T) {
	r := newTestRegistry(t, WithSharedErrorEvent())
	require.NoError(t, r.RegisterSingleResponse("a", []string{"x", "error"}, 0))
	require.NoError(t, r.RegisterMultiResponse("b", []string{"y", "error"}, "yEnd", 0))

	// Only the error event may be shared.
	assert.ErrorIs(t, r.RegisterSingleResponse("c", []string{"x"}, 0), ErrDuplicateRegistration)

	d := r.Build()
	assert.True(t, d.SharedErrorEvent())
	assert.Len(t, d.events["error"], 2)
}

func TestRegistry_CustomErrorEvent(t *testing.T) {
	r := newTestRegistry(t, WithErrorEvent("failure"))
	require.NoError(t, r.RegisterSingleResponse("a", []string{"x", "failure"}, 0))
	d := r.Build()
	assert.Equal(t, "failure", d.ErrorEvent())

	h, err := d.NotifyInvoked("a", Args{1}, nil)
	require.NoError(t, err)
	require.NoError(t, d.NotifyEvent("failure", Args{1, "boom"}))

	_, err = awaitArgs(t, h)
	assert.ErrorIs(t, err, ErrCallback)
}

func TestRegistry_CompletionIsBound(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterMultiResponse("fetchDetails", []string{" detail ", "detail", "error"}, "detailEnd", 0))
	d := r.Build()

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"detail", "error", "detailEnd"}, entries[0].Events)
	assert.Equal(t, "detailEnd", entries[0].Completion)

	// Listing the completion among events is harmless.
	r = newTestRegistry(t)
	require.NoError(t, r.RegisterMultiResponse("fetchDetails", []string{"detail", "detailEnd"}, "detailEnd", 0))
	assert.Equal(t, []string{"detail", "detailEnd"}, r.Build().Entries()[0].Events)
}

func TestRegistry_InvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"empty method", Entry{Method: " ", Events: []string{"x"}, Pattern: PatternSingle}},
		{"negative discriminator", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternSingle, Discriminator: -1}},
		{"unknown pattern", Entry{Method: "m", Events: []string{"x"}}},
		{"no events", Entry{Method: "m", Pattern: PatternSingle}},
		{"empty event", Entry{Method: "m", Events: []string{"x", ""}, Pattern: PatternSingle}},
		{"multi without completion", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternMulti}},
		{"multi completing on error", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternMulti, Completion: DefaultErrorEvent}},
		{"single with completion", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternSingle, Completion: "end"}},
		{"streaming retaining state", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternStream, RetainSettled: true}},
		{"keyed single", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternSingle, Keyed: true}},
		{"multi with error policy", Entry{Method: "m", Events: []string{"x"}, Pattern: PatternMulti, Completion: "end", ErrorPolicy: PropagateAsEvent}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			assert.ErrorIs(t, r.Register(tt.entry), ErrInvalidEntry)
			assert.Empty(t, r.Build().Methods())
		})
	}
}

func TestRegistry_FrozenAfterBuild(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterStreaming("watch", []string{"update"}, 0))
	d := r.Build()

	assert.ErrorIs(t, r.RegisterStreaming("other", []string{"other"}, 0), ErrRegistryFrozen)
	assert.Equal(t, []string{"watch"}, d.Methods())
}

func TestRegistry_PatternLookup(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterSingleResponse("one", []string{"a"}, 0))
	require.NoError(t, r.RegisterMultiResponse("many", []string{"b"}, "bEnd", 0))
	require.NoError(t, r.RegisterStreaming("stream", []string{"c"}, 0))
	d := r.Build()

	for method, want := range map[string]Pattern{"one": PatternSingle, "many": PatternMulti, "stream": PatternStream} {
		got, ok := d.Pattern(method)
		assert.True(t, ok, method)
		assert.Equal(t, want, got, method)
	}
	_, ok := d.Pattern("missing")
	assert.False(t, ok)
}

func TestParsePattern(t *testing.T) {
	for in, want := range map[string]Pattern{"single": PatternSingle, "multi": PatternMulti, "stream": PatternStream, "streaming": PatternStream} {
		got, err := ParsePattern(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		assert.Contains(t, in, got.String())
	}
	_, err := ParsePattern("batch")
	assert.Error(t, err)
}

func TestParseErrorPolicy(t *testing.T) {
	p, err := ParseErrorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RaiseSynchronously, p)

	p, err = ParseErrorPolicy("event")
	require.NoError(t, err)
	assert.Equal(t, PropagateAsEvent, p)
	assert.Equal(t, "event", p.String())

	_, err = ParseErrorPolicy("ignore")
	assert.Error(t, err)
}
