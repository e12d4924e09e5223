package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/agent"
	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/llm"
	"github.com/teemow/inboxchat/internal/store"
	"github.com/teemow/inboxchat/internal/tools"
)

// countingStore counts writes and can be told to fail.
type countingStore struct {
	*store.Memory
	mu    sync.Mutex
	saves int
	fail  error
}

func newCountingStore() *countingStore {
	return &countingStore{Memory: store.NewMemory()}
}

func (s *countingStore) Save(ctx context.Context, doc *conversation.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saves++
	return s.Memory.Save(ctx, doc)
}

func (s *countingStore) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *countingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newAgent(t *testing.T, steps ...llm.ScriptStep) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{Model: llm.NewScripted(steps...), Tools: tools.NewRegistry()})
	require.NoError(t, err)
	return a
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestEndSavesOnceAndStartsFresh(t *testing.T) {
	st := newCountingStore()
	m := NewManager(Config{Runner: newAgent(t, llm.Answer("one"), llm.Answer("two")), Store: st})
	c := m.Conversation("client-1")
	ctx := context.Background()

	first := c.SessionID()
	_, err := c.Send(ctx, "hello", nil)
	require.NoError(t, err)
	_, err = c.Send(ctx, "again", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Snapshot().MessageCount)

	res, err := c.End(ctx)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, first, res.SessionID)
	assert.Equal(t, 4, res.TotalMessages)
	assert.NotEqual(t, first, res.NextSessionID)
	assert.Equal(t, 1, st.writes())

	doc, err := st.Get(ctx, first)
	require.NoError(t, err)
	require.Len(t, doc.History, 4)
	assert.Equal(t, []string{"hello", "one", "again", "two"}, []string{
		doc.History[0].Content, doc.History[1].Content, doc.History[2].Content, doc.History[3].Content,
	})
	assert.Equal(t, conversation.StatusCompleted, doc.Status)

	snap := c.Snapshot()
	assert.Equal(t, res.NextSessionID, snap.SessionID)
	assert.Equal(t, 0, snap.MessageCount)
}

func TestEndEmptySessionWritesNothing(t *testing.T) {
	st := newCountingStore()
	m := NewManager(Config{Runner: newAgent(t), Store: st})
	c := m.Conversation("client")

	res, err := c.End(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Equal(t, 0, st.writes())
	assert.NotEqual(t, res.SessionID, res.NextSessionID)
}

func TestEndSaveFailureKeepsSessionOpen(t *testing.T) {
	st := newCountingStore()
	m := NewManager(Config{Runner: newAgent(t, llm.Answer("hi"), llm.Answer("still here")), Store: st})
	c := m.Conversation("client")
	ctx := context.Background()

	_, err := c.Send(ctx, "hello", nil)
	require.NoError(t, err)
	id := c.SessionID()

	boom := errors.New("store down")
	st.setFail(boom)
	_, err = c.End(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, id, c.SessionID())
	assert.Equal(t, 2, c.Snapshot().MessageCount)

	// The user keeps chatting and retries.
	_, err = c.Send(ctx, "more", nil)
	require.NoError(t, err)
	st.setFail(nil)
	res, err := c.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, 4, res.TotalMessages)
	assert.Equal(t, 1, st.writes())
}

func TestSendEmpty(t *testing.T) {
	m := NewManager(Config{Runner: newAgent(t), Store: store.NewMemory()})
	_, err := m.Conversation("c").Send(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendModelFailureReturnsNotice(t *testing.T) {
	m := NewManager(Config{Runner: newAgent(t, llm.Fail(errors.New("quota exceeded"))), Store: store.NewMemory()})
	reply, err := m.Conversation("c").Send(context.Background(), "hi", nil)
	require.ErrorIs(t, err, agent.ErrModel)
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "quota exceeded")
}

func TestManagerConversationIsStable(t *testing.T) {
	m := NewManager(Config{Runner: newAgent(t), Store: store.NewMemory()})
	a := m.Conversation("a")
	assert.Same(t, a, m.Conversation("a"))
	assert.NotSame(t, a, m.Conversation("b"))
	assert.Equal(t, 2, m.Len())

	_, ok := m.Lookup("c")
	assert.False(t, ok)
}

// blockingRunner records how many runs overlap.
type blockingRunner struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (r *blockingRunner) Run(ctx context.Context, sess *conversation.Session, input string, observe agent.Observer) (*agent.Reply, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	_, err := sess.AppendUser(input)
	return &agent.Reply{Text: input}, err
}

func TestConversationSerialisesMessages(t *testing.T) {
	runner := &blockingRunner{}
	m := NewManager(Config{Runner: runner, Store: store.NewMemory()})
	c := m.Conversation("c")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Send(context.Background(), "msg", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runner.maxSeen.Load())
	assert.Equal(t, 8, c.Snapshot().MessageCount)
}

func TestSweepExpiresIdleConversations(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	st := newCountingStore()
	m := NewManager(Config{
		Runner:      newAgent(t, llm.Answer("a"), llm.Answer("b")),
		Store:       st,
		IdleTimeout: time.Hour,
		Now:         clk.Now,
	})
	ctx := context.Background()

	_, err := m.Conversation("idle").Send(ctx, "old", nil)
	require.NoError(t, err)
	m.Conversation("empty-idle")

	clk.Advance(90 * time.Minute)
	_, err = m.Conversation("fresh").Send(ctx, "new", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Sweep(ctx))
	assert.Equal(t, 1, m.Len())
	_, ok := m.Lookup("fresh")
	assert.True(t, ok)
	assert.Equal(t, 1, st.writes())
}

func TestSweepKeepsConversationWhenSaveFails(t *testing.T) {
	clk := &clock{now: time.Now()}
	st := newCountingStore()
	m := NewManager(Config{Runner: newAgent(t, llm.Answer("a")), Store: st, IdleTimeout: time.Minute, Now: clk.Now})
	ctx := context.Background()

	_, err := m.Conversation("c").Send(ctx, "hi", nil)
	require.NoError(t, err)
	st.setFail(errors.New("down"))
	clk.Advance(time.Hour)

	assert.Equal(t, 0, m.Sweep(ctx))
	assert.Equal(t, 1, m.Len())
}

func TestSweepDisabled(t *testing.T) {
	clk := &clock{now: time.Now()}
	m := NewManager(Config{Runner: newAgent(t), Store: store.NewMemory(), IdleTimeout: -1, Now: clk.Now})
	m.Conversation("c")
	clk.Advance(1000 * time.Hour)
	assert.Equal(t, 0, m.Sweep(context.Background()))

	m.Start()
	m.Stop()
	m.Stop()
}

func TestSaveAll(t *testing.T) {
	st := newCountingStore()
	m := NewManager(Config{Runner: newAgent(t, llm.Answer("a"), llm.Answer("b")), Store: st})
	ctx := context.Background()

	_, err := m.Conversation("one").Send(ctx, "x", nil)
	require.NoError(t, err)
	_, err = m.Conversation("two").Send(ctx, "y", nil)
	require.NoError(t, err)
	m.Conversation("three")

	require.NoError(t, m.SaveAll(ctx))
	assert.Equal(t, 2, st.writes())
	assert.Equal(t, 0, m.Len())

	sums, err := st.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sums, 2)
}

func TestStartStop(t *testing.T) {
	m := NewManager(Config{Runner: newAgent(t), Store: store.NewMemory(), SweepInterval: time.Millisecond})
	m.Start()
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}

func TestSendWhitespaceOnly(t *testing.T) {
	m := NewManager(Config{Runner: newAgent(t), Store: store.NewMemory()})
	c := m.Conversation("c")
	_, err := c.Send(context.Background(), " \n\t ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, c.Snapshot().MessageCount)
}

// gatedStore holds the first Save until release is closed.
type gatedStore struct {
	*countingStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		countingStore: newCountingStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (s *gatedStore) Save(ctx context.Context, doc *conversation.Document) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.countingStore.Save(ctx, doc)
}

func TestSendDuringSweepMovesToFreshConversation(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	st := newGatedStore()
	m := NewManager(Config{Runner: &blockingRunner{}, Store: st, IdleTimeout: time.Hour, Now: clk.Now})

	c := m.Conversation("c")
	_, err := c.Send(ctx, "first", nil)
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)

	swept := make(chan int, 1)
	go func() { swept <- m.Sweep(ctx) }()
	<-st.entered

	sent := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, "second", nil)
		sent <- err
	}()
	close(st.release)

	assert.Equal(t, 1, <-swept)
	require.NoError(t, <-sent)

	live, ok := m.Lookup("c")
	require.True(t, ok)
	assert.NotSame(t, c, live)
	assert.Equal(t, 1, live.Snapshot().MessageCount)
	assert.Equal(t, live.SessionID(), c.SessionID())

	require.NoError(t, m.SaveAll(ctx))
	assert.Equal(t, 2, st.writes())
	assert.Equal(t, 0, m.Len())
}

// gatedRunner blocks every run until release is closed.
type gatedRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *gatedRunner) Run(ctx context.Context, sess *conversation.Session, input string, observe agent.Observer) (*agent.Reply, error) {
	r.started <- struct{}{}
	<-r.release
	_, err := sess.AppendUser(input)
	return &agent.Reply{Text: input}, err
}

func TestSweepKeepsConversationActiveWhileWaiting(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	runner := &gatedRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	st := newCountingStore()
	m := NewManager(Config{Runner: runner, Store: st, IdleTimeout: time.Hour, Now: clk.Now})

	c := m.Conversation("c")
	clk.Advance(2 * time.Hour)

	sent := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, "still here", nil)
		sent <- err
	}()
	<-runner.started

	swept := make(chan int, 1)
	go func() { swept <- m.Sweep(ctx) }()
	close(runner.release)

	require.NoError(t, <-sent)
	assert.Equal(t, 0, <-swept)

	live, ok := m.Lookup("c")
	require.True(t, ok)
	assert.Same(t, c, live)
	assert.Equal(t, 1, live.Snapshot().MessageCount)
	assert.Equal(t, 0, st.writes())
}
