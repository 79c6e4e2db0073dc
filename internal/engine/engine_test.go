package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/mrlift-console/internal/assistant"
	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/store"
)

var _ Store = (*store.Session)(nil)

// mockClient implements assistant.Client with an overridable SendFunc.
type mockClient struct {
	SendFunc func(ctx context.Context, req assistant.Request) (assistant.Reply, error)

	mu       sync.Mutex
	requests []assistant.Request
}

func (m *mockClient) Send(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return assistant.Reply{Answer: "ok", ThreadID: "thread_1"}, nil
}

func (m *mockClient) Requests() []assistant.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]assistant.Request(nil), m.requests...)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, client assistant.Client) (*Engine, *store.Session) {
	t.Helper()
	sess := store.NewSession(store.NewMemory())
	e := New(context.Background(), client, sess,
		WithAssistantID("asst_test"),
		WithNow(func() time.Time { return fixedNow }),
	)
	return e, sess
}

func record(e *Engine) func() []Event {
	var mu sync.Mutex
	var events []Event
	e.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	return func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), events...)
	}
}

func TestSend_EmptyInputIsRejectedLocally(t *testing.T) {
	client := &mockClient{}
	e, _ := newTestEngine(t, client)
	events := record(e)

	require.ErrorIs(t, e.Send(context.Background(), "   \n\t"), ErrEmptyInput)
	require.Empty(t, client.Requests())
	require.Empty(t, e.Snapshot().Messages)
	require.Empty(t, e.Snapshot().Err)
	require.Empty(t, events())
}

func TestSend_AppendsUserTurnBeforeCallingTransport(t *testing.T) {
	var e *Engine
	client := &mockClient{}
	client.SendFunc = func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		st := e.Snapshot()
		require.True(t, st.InFlight)
		require.Len(t, st.Messages, 1)
		require.Equal(t, domain.RoleUser, st.Messages[0].Role)
		require.Equal(t, "hola", st.Messages[0].Content)
		return assistant.Reply{
			Answer:   "¡Hola!",
			ThreadID: "thread_abc",
			Meta:     &domain.Meta{RunID: "run_1", DurationMs: 900},
		}, nil
	}
	e, sess := newTestEngine(t, client)

	require.NoError(t, e.Send(context.Background(), "  hola  "))

	st := e.Snapshot()
	require.False(t, st.InFlight)
	require.Empty(t, st.Err)
	require.Equal(t, "thread_abc", st.ThreadID)
	require.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "hola", Timestamp: fixedNow.UnixMilli()},
		{Role: domain.RoleAssistant, Content: "¡Hola!", Timestamp: fixedNow.UnixMilli(), Meta: &domain.Meta{RunID: "run_1", DurationMs: 900}},
	}, st.Messages)

	ctx := context.Background()
	require.Equal(t, st.Messages, sess.Messages(ctx))
	require.Equal(t, "thread_abc", sess.ThreadID(ctx))

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, assistant.Request{Message: "hola", AssistantID: "asst_test"}, reqs[0])
}

func TestSend_CarriesThreadAndEverySuccessOverwritesIt(t *testing.T) {
	replies := []assistant.Reply{
		{Answer: "a", ThreadID: "thread_1"},
		{Answer: "b", ThreadID: "thread_2"},
		{Answer: "c"},
	}
	var n int
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		r := replies[n]
		n++
		return r, nil
	}}
	e, sess := newTestEngine(t, client)
	ctx := context.Background()

	require.NoError(t, e.Send(ctx, "uno"))
	require.NoError(t, e.Send(ctx, "dos"))
	require.Equal(t, "thread_2", e.Snapshot().ThreadID)
	require.NoError(t, e.Send(ctx, "tres"))
	require.Equal(t, "thread_2", e.Snapshot().ThreadID, "a reply without a thread id keeps the current one")
	require.Equal(t, "thread_2", sess.ThreadID(ctx))

	reqs := client.Requests()
	require.Equal(t, "", reqs[0].ThreadID)
	require.Equal(t, "thread_1", reqs[1].ThreadID)
	require.Equal(t, "thread_2", reqs[2].ThreadID)
}

func TestSend_FailureKeepsUserTurnAndSetsError(t *testing.T) {
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		return assistant.Reply{}, &assistant.TransportError{Attempts: 2, Err: &assistant.StatusError{StatusCode: 503}}
	}}
	e, sess := newTestEngine(t, client)
	events := record(e)

	err := e.Send(context.Background(), "hola")
	var te *assistant.TransportError
	require.ErrorAs(t, err, &te)

	st := e.Snapshot()
	require.False(t, st.InFlight)
	require.Equal(t, "Error: HTTP error! status: 503", st.Err)
	require.Len(t, st.Messages, 1)
	require.Equal(t, domain.RoleUser, st.Messages[0].Role)
	require.Len(t, sess.Messages(context.Background()), 1)

	evs := events()
	require.Len(t, evs, 2)
	require.Equal(t, EventUserTurn, evs[0].Kind)
	require.Equal(t, EventSendFailed, evs[1].Kind)
	require.False(t, evs[1].State.InFlight)
	require.Equal(t, st.Err, evs[1].State.Err)
}

func TestSend_NextSendClearsLastError(t *testing.T) {
	fail := true
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		if fail {
			return assistant.Reply{}, errors.New("boom")
		}
		return assistant.Reply{Answer: "ok"}, nil
	}}
	e, _ := newTestEngine(t, client)

	require.Error(t, e.Send(context.Background(), "a"))
	require.Equal(t, "Error: boom", e.Snapshot().Err)

	fail = false
	require.NoError(t, e.Send(context.Background(), "b"))
	require.Empty(t, e.Snapshot().Err)
	require.Len(t, e.Snapshot().Messages, 3)
}

func TestSend_PanickingTransportReleasesInFlight(t *testing.T) {
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		panic("kaboom")
	}}
	e, _ := newTestEngine(t, client)

	require.Error(t, e.Send(context.Background(), "hola"))
	st := e.Snapshot()
	require.False(t, st.InFlight)
	require.Contains(t, st.Err, "kaboom")
}

func TestSend_RefusesWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		close(started)
		<-release
		return assistant.Reply{Answer: "ok"}, nil
	}}
	e, _ := newTestEngine(t, client)

	done := make(chan error, 1)
	go func() { done <- e.Send(context.Background(), "primero") }()
	<-started

	require.ErrorIs(t, e.Send(context.Background(), "segundo"), ErrBusy)
	require.ErrorIs(t, e.Restore(context.Background(), nil, ""), ErrBusy)
	sent, err := e.SendNext(context.Background(), func(State) (string, bool) {
		t.Fatal("guard must not run while a send is in flight")
		return "", false
	})
	require.NoError(t, err)
	require.False(t, sent)

	close(release)
	require.NoError(t, <-done)
	require.Len(t, e.Snapshot().Messages, 2)
	require.Len(t, client.Requests(), 1)
}

func TestInFlightTogglesOncePerSend(t *testing.T) {
	e, _ := newTestEngine(t, &mockClient{})
	var flags []bool
	e.Subscribe(func(ev Event) { flags = append(flags, ev.State.InFlight) })

	require.NoError(t, e.Send(context.Background(), "a"))
	require.NoError(t, e.Send(context.Background(), "b"))
	require.Equal(t, []bool{true, false, true, false}, flags)
}

func TestReset_RequiresConfirmation(t *testing.T) {
	e, _ := newTestEngine(t, &mockClient{})
	require.NoError(t, e.Send(context.Background(), "hola"))

	require.ErrorIs(t, e.Reset(context.Background(), false), ErrNotConfirmed)
	require.Len(t, e.Snapshot().Messages, 2)
	require.Equal(t, "thread_1", e.Snapshot().ThreadID)
}

func TestReset_ClearsConversationAndStore(t *testing.T) {
	e, sess := newTestEngine(t, &mockClient{})
	ctx := context.Background()
	require.NoError(t, e.Send(ctx, "hola"))
	events := record(e)

	require.NoError(t, e.Reset(ctx, true))

	st := e.Snapshot()
	require.Empty(t, st.Messages)
	require.Empty(t, st.ThreadID)
	require.Empty(t, st.Err)
	require.Empty(t, sess.Messages(ctx))
	require.Empty(t, sess.ThreadID(ctx))

	evs := events()
	require.Len(t, evs, 1)
	require.Equal(t, EventReset, evs[0].Kind)
	require.Empty(t, evs[0].State.Messages)
	require.Empty(t, evs[0].State.ThreadID)
}

func TestReset_DiscardsReplyThatResolvesAfterwards(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		close(started)
		<-release
		return assistant.Reply{Answer: "viejo", ThreadID: "thread_old"}, nil
	}}
	e, sess := newTestEngine(t, client)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.Send(ctx, "hola") }()
	<-started

	require.NoError(t, e.Reset(ctx, true))
	require.False(t, e.Snapshot().InFlight)

	close(release)
	require.ErrorIs(t, <-done, ErrStaleReply)

	st := e.Snapshot()
	require.Empty(t, st.Messages)
	require.Empty(t, st.ThreadID)
	require.Empty(t, sess.Messages(ctx))
	require.Empty(t, sess.ThreadID(ctx))
}

func TestNew_RestoresPersistedConversation(t *testing.T) {
	ctx := context.Background()
	sess := store.NewSession(store.NewMemory())
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "hola", Timestamp: 1},
		{Role: domain.RoleAssistant, Content: "buenas", Timestamp: 2},
	}
	require.NoError(t, sess.SaveMessages(ctx, msgs))
	require.NoError(t, sess.SaveThreadID(ctx, "thread_saved"))

	client := &mockClient{}
	e := New(ctx, client, sess)
	st := e.Snapshot()
	require.Equal(t, msgs, st.Messages)
	require.Equal(t, "thread_saved", st.ThreadID)

	require.NoError(t, e.Send(ctx, "sigo"))
	require.Equal(t, "thread_saved", client.Requests()[0].ThreadID)
}

func TestRestore_ReplacesConversation(t *testing.T) {
	e, sess := newTestEngine(t, &mockClient{})
	ctx := context.Background()
	require.NoError(t, e.Send(ctx, "previo"))
	events := record(e)

	msgs := []domain.Message{{Role: domain.RoleUser, Content: "importado", Timestamp: 7}}
	require.NoError(t, e.Restore(ctx, msgs, "thread_imported"))

	st := e.Snapshot()
	require.Equal(t, msgs, st.Messages)
	require.Equal(t, "thread_imported", st.ThreadID)
	require.Equal(t, msgs, sess.Messages(ctx))
	require.Equal(t, "thread_imported", sess.ThreadID(ctx))
	require.Equal(t, EventRestored, events()[0].Kind)
}

func TestSendNext_GuardDecides(t *testing.T) {
	client := &mockClient{}
	e, _ := newTestEngine(t, client)
	ctx := context.Background()

	sent, err := e.SendNext(ctx, func(State) (string, bool) { return "", false })
	require.NoError(t, err)
	require.False(t, sent)
	require.Empty(t, client.Requests())

	sent, err = e.SendNext(ctx, func(st State) (string, bool) {
		require.False(t, st.InFlight)
		return "siguiente", true
	})
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, "siguiente", client.Requests()[0].Message)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	e, _ := newTestEngine(t, &mockClient{})
	var n int
	unsubscribe := e.Subscribe(func(Event) { n++ })
	require.NoError(t, e.Send(context.Background(), "a"))
	unsubscribe()
	require.NoError(t, e.Send(context.Background(), "b"))
	require.Equal(t, 2, n)
}

func TestUserErrorText(t *testing.T) {
	require.Equal(t, "Error: Error de conexión", UserErrorText(errors.New("")))
	require.Equal(t, "Error: Error de conexión", UserErrorText(nil))
	require.Equal(t, "Error: dial tcp: refused",
		UserErrorText(&assistant.TransportError{Attempts: 2, Err: errors.New("dial tcp: refused")}))
}

func TestState_LastRole(t *testing.T) {
	_, ok := State{}.LastRole()
	require.False(t, ok)
	role, ok := State{Messages: []domain.Message{{Role: domain.RoleUser}, {Role: domain.RoleAssistant}}}.LastRole()
	require.True(t, ok)
	require.Equal(t, domain.RoleAssistant, role)
}
