package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"ftmsg/internal/protocol"
	"ftmsg/internal/transport"
)

type mockFrame struct {
	typ  transport.WSMessageType
	data []byte
}

type mockWSConn struct {
	reads  chan mockFrame
	broken chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	writes    [][]byte
	closed    bool
	closeOnce sync.Once
	breakOnce sync.Once
}

func newMockWSConn() *mockWSConn {
	return &mockWSConn{
		reads:  make(chan mockFrame, 64),
		broken: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *mockWSConn) Read(ctx context.Context) (transport.WSMessageType, []byte, error) {
	select {
	case f := <-m.reads:
		return f.typ, f.data, nil
	case <-m.broken:
		return 0, nil, io.EOF
	case <-m.done:
		return 0, nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (m *mockWSConn) Write(ctx context.Context, typ transport.WSMessageType, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("write on closed connection")
	}
	m.writes = append(m.writes, append([]byte(nil), data...))
	return nil
}

func (m *mockWSConn) Close(code transport.WSStatusCode, reason string) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}

func (m *mockWSConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// drop simulates the broker going away.
func (m *mockWSConn) drop() {
	m.breakOnce.Do(func() { close(m.broken) })
}

func (m *mockWSConn) push(frame string) {
	m.reads <- mockFrame{typ: transport.WSMessageText, data: []byte(frame)}
}

func (m *mockWSConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.writes))
	for _, w := range m.writes {
		var f map[string]any
		if err := json.Unmarshal(w, &f); err != nil {
			t.Fatalf("written frame is not JSON: %s", w)
		}
		out = append(out, f)
	}
	return out
}

type mockDialer struct {
	gate   chan struct{}
	fail   error
	dialed chan *mockWSConn

	mu    sync.Mutex
	count int
}

func newMockDialer() *mockDialer {
	return &mockDialer{dialed: make(chan *mockWSConn, 16)}
}

func (d *mockDialer) dial(ctx context.Context, rawurl string) (transport.WSConn, error) {
	d.mu.Lock()
	d.count++
	d.mu.Unlock()
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.fail != nil {
		return nil, d.fail
	}
	conn := newMockWSConn()
	d.dialed <- conn
	return conn, nil
}

func (d *mockDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *mockDialer) next(t *testing.T) *mockWSConn {
	t.Helper()
	select {
	case c := <-d.dialed:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no dial observed")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func mountTestClient(t *testing.T, d *mockDialer, opts ...Option) (*Client, *mockWSConn) {
	t.Helper()
	opts = append([]Option{WithDialer(d.dial), WithReconnectDelay(time.Hour)}, opts...)
	c := New("ws://broker.test/out", opts...)
	if err := c.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() { _ = c.Unmount() })
	conn := d.next(t)
	waitFor(t, "open status", func() bool { return c.Status() == StatusOpen })
	return c, conn
}

func connected(c *Client, ids ...string) func() bool {
	return func() bool { return reflect.DeepEqual(c.Connections(), ids) }
}

func TestReconcileRoster(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)

	added := make(chan string, 8)
	c.AddConnectionListener(func(cn *Connection) {
		added <- cn.ID()
		if cn.ID() == "a" {
			closes := 0
			cn.AddCloseListener(func() {
				closes++
				if closes > 1 {
					t.Errorf("close fired %d times", closes)
				}
				added <- "closed:a"
			})
		}
	})

	conn.push(`{"type":"chb","up":true,"clients":["a","b"]}`)
	waitFor(t, "roster a,b", connected(c, "a", "b"))

	conn.push(`{"type":"chb","up":true,"clients":["b","c"]}`)
	waitFor(t, "roster b,c", connected(c, "b", "c"))

	var got []string
	for len(got) < 4 {
		select {
		case id := <-added:
			got = append(got, id)
		case <-time.After(time.Second):
			t.Fatalf("events so far: %v", got)
		}
	}
	want := []string{"a", "b", "closed:a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events=%v want %v", got, want)
	}

	conn.push(`{"type":"chb","up":true,"clients":[]}`)
	waitFor(t, "empty roster", connected(c))
}

func TestHeartbeatDownRemovesListed(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)

	conn.push(`{"type":"con","client":"a"}`)
	conn.push(`{"type":"con","client":"b"}`)
	waitFor(t, "a,b", connected(c, "a", "b"))

	var mu sync.Mutex
	closes := 0
	c.Connection("a").AddCloseListener(func() {
		mu.Lock()
		closes++
		mu.Unlock()
	})

	conn.push(`{"type":"chb","up":false,"clients":["a","zz"]}`)
	conn.push(`{"type":"chb","up":false,"clients":["a"]}`)
	conn.push(`{"type":"con","client":"marker"}`)
	waitFor(t, "only b", connected(c, "b", "marker"))

	mu.Lock()
	defer mu.Unlock()
	if closes != 1 {
		t.Fatalf("close listener fired %d times, want 1", closes)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)

	var mu sync.Mutex
	fired := 0
	c.AddConnectionListener(func(*Connection) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	conn.push(`{"type":"con","client":"a"}`)
	conn.push(`{"type":"con","client":"a"}`)
	conn.push(`{"type":"chb","up":true,"clients":["a"]}`)
	// A marker frame proves the earlier ones were processed.
	conn.push(`{"type":"con","client":"marker"}`)
	waitFor(t, "marker", connected(c, "a", "marker"))

	mu.Lock()
	defer mu.Unlock()
	if fired != 2 {
		t.Fatalf("connection listener fired %d times, want 2", fired)
	}
}

func TestFrameErrorsAreReportedAndLoopContinues(t *testing.T) {
	d := newMockDialer()
	errs := make(chan error, 8)
	c, conn := mountTestClient(t, d, WithErrorHandler(func(err error) { errs <- err }))

	conn.push(`{"type":"con","client":"a"}`)
	waitFor(t, "a", connected(c, "a"))
	delivered := make(chan string, 4)
	c.AddMessageListener(func(any) { delivered <- "engine" })
	c.Connection("a").AddMessageListener(func(any) { delivered <- "conn" })

	conn.push(`{"type":"cap","client":"ghost","body":{}}`)
	conn.push(`{"type":"err","error":"boom"}`)
	conn.push(`{"type":"acc","client":"a","accepted":true}`)
	conn.push(`{"type":`)
	conn.reads <- mockFrame{typ: transport.WSMessageBinary, data: []byte{1, 2}}
	conn.push(`{"type":"con","client":"b"}`)

	want := []error{ErrUnauthorizedClient, ErrMissingClient, ErrUnhandledType, protocol.ErrParse, transport.ErrBinaryFrame}
	for i, target := range want {
		select {
		case err := <-errs:
			if !errors.Is(err, target) {
				t.Fatalf("error %d: %v, want %v", i, err, target)
			}
		case <-time.After(time.Second):
			t.Fatalf("error %d not reported", i)
		}
	}
	waitFor(t, "loop still running", connected(c, "a", "b"))
	select {
	case who := <-delivered:
		t.Fatalf("rejected frame reached the %s listener", who)
	default:
	}
}

func TestAccessGate(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)
	ctx := context.Background()

	conn.push(`{"type":"con","client":"free"}`)
	waitFor(t, "free", connected(c, "free"))
	free := c.Connection("free")
	if !free.Accepted() {
		t.Fatalf("unlocked engine should auto-accept")
	}
	if err := free.Accept(ctx); !errors.Is(err, ErrLockState) {
		t.Fatalf("Accept with lock=false: %v", err)
	}
	if err := free.Deny(ctx, "no"); !errors.Is(err, ErrLockState) {
		t.Fatalf("Deny with lock=false: %v", err)
	}
	if !free.Accepted() || len(conn.frames(t)) != 0 {
		t.Fatalf("failed access call must not change state or write")
	}

	if err := c.SetLock(ctx, protocol.Closed()); err != nil {
		t.Fatalf("SetLock: %v", err)
	}
	conn.push(`{"type":"con","client":"a"}`)
	conn.push(`{"type":"con","client":"b"}`)
	waitFor(t, "a,b", connected(c, "a", "b", "free"))

	a, b := c.Connection("a"), c.Connection("b")
	if a.Accepted() || b.Accepted() {
		t.Fatalf("closed lock must not auto-accept")
	}
	if err := a.Accept(ctx); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := b.Accept(ctx); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := b.Deny(ctx, "full"); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if !a.Accepted() || b.Accepted() {
		t.Fatalf("accepted flags a=%v b=%v", a.Accepted(), b.Accepted())
	}

	frames := conn.frames(t)
	if len(frames) != 5 {
		t.Fatalf("got %d frames: %v", len(frames), frames)
	}
	if frames[0]["type"] != "dse" {
		t.Fatalf("frame 0: %v", frames[0])
	}
	if frames[1]["type"] != "acc" || frames[1]["client"] != "a" || frames[1]["accepted"] != true {
		t.Fatalf("frame 1: %v", frames[1])
	}
	start, _ := frames[2]["body"].(map[string]any)
	if frames[2]["type"] != "app" || frames[2]["client"] != "a" || start == nil || start["__start"] != "" {
		t.Fatalf("frame 2 should be the initial state: %v", frames[2])
	}
	if frames[3]["type"] != "acc" || frames[3]["client"] != "b" {
		t.Fatalf("second accept must not resend initial state: %v", frames[3])
	}
	if frames[4]["accepted"] != false || frames[4]["reason"] != "full" {
		t.Fatalf("frame 4: %v", frames[4])
	}
	for _, f := range frames {
		if f["version"] != float64(protocol.Version) {
			t.Fatalf("frame without version: %v", f)
		}
	}
}

func TestConnectionSendGate(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)
	ctx := context.Background()

	if err := c.SetLock(ctx, protocol.LockAt(2)); err != nil {
		t.Fatalf("SetLock: %v", err)
	}
	conn.push(`{"type":"con","client":"a"}`)
	waitFor(t, "a", connected(c, "a"))
	a := c.Connection("a")

	if err := a.SendMessage(ctx, map[string]int{"x": 1}, ""); !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("send before accept: %v", err)
	}
	if err := a.Accept(ctx); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	events := make(chan bool, 8)
	a.AddLifecycleListener(func(paused bool) { events <- paused })
	conn.push(`{"type":"lcy","client":"a","paused":true}`)
	conn.push(`{"type":"lcy","client":"a","paused":true}`)
	conn.push(`{"type":"lcy","client":"a","paused":false}`)
	conn.push(`{"type":"lcy","client":"a","paused":true}`)

	var got []bool
	for len(got) < 3 {
		select {
		case p := <-events:
			got = append(got, p)
		case <-time.After(time.Second):
			t.Fatalf("lifecycle events so far: %v", got)
		}
	}
	if !reflect.DeepEqual(got, []bool{true, false, true}) {
		t.Fatalf("lifecycle events=%v", got)
	}
	waitFor(t, "paused", a.Paused)

	before := len(conn.frames(t))
	if err := a.SendMessage(ctx, "hello", ""); err != nil {
		t.Fatalf("send while paused should be a no-op: %v", err)
	}
	if n := len(conn.frames(t)); n != before {
		t.Fatalf("paused send wrote %d frames", n-before)
	}
}

func TestBroadcastSkipsPausedAndUnaccepted(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)
	ctx := context.Background()

	conn.push(`{"type":"con","client":"a"}`)
	conn.push(`{"type":"con","client":"b"}`)
	conn.push(`{"type":"lcy","client":"b","paused":true}`)
	waitFor(t, "b paused", func() bool {
		b := c.Connection("b")
		return b != nil && b.Paused()
	})
	if err := c.SetLock(ctx, protocol.Closed()); err != nil {
		t.Fatalf("SetLock: %v", err)
	}
	conn.push(`{"type":"con","client":"c"}`)
	waitFor(t, "c", connected(c, "a", "b", "c"))

	if err := c.SendMessage(ctx, map[string]string{"k": "v"}, "r9"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	var apps []map[string]any
	for _, f := range conn.frames(t) {
		if f["type"] == "app" {
			apps = append(apps, f)
		}
	}
	if len(apps) != 1 || apps[0]["client"] != "a" || apps[0]["req"] != "r9" {
		t.Fatalf("broadcast frames: %v", apps)
	}
}

func TestRequestCorrelation(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)
	ctx := context.Background()

	conn.push(`{"type":"con","client":"a"}`)
	waitFor(t, "a", connected(c, "a"))

	var mu sync.Mutex
	var order []string
	var seen []any
	got := make(chan struct{}, 8)
	c.AddMessageListener(func(m any) {
		mu.Lock()
		order = append(order, "engine")
		seen = append(seen, m)
		mu.Unlock()
	})
	c.Connection("a").AddMessageListener(func(m any) {
		mu.Lock()
		order = append(order, "conn")
		seen = append(seen, m)
		mu.Unlock()
		got <- struct{}{}
	})

	conn.push(`{"type":"cap","client":"a","body":{"q":"ping"},"req":"r1"}`)
	conn.push(`{"type":"cap","client":"a","body":[1,2]}`)
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(order, []string{"engine", "conn", "engine", "conn"}) {
		t.Fatalf("listener order %v", order)
	}
	req, ok := seen[0].(*Request)
	if !ok || seen[1] != seen[0] {
		t.Fatalf("correlated body should reach both listeners as one *Request: %#v", seen[:2])
	}
	if req.ID != "r1" || req.Client() != "a" {
		t.Fatalf("request id=%q client=%q", req.ID, req.Client())
	}
	var q struct{ Q string }
	if err := req.Decode(&q); err != nil || q.Q != "ping" {
		t.Fatalf("Decode: %v %+v", err, q)
	}
	if raw, ok := seen[2].(json.RawMessage); !ok || string(raw) != "[1,2]" {
		t.Fatalf("bare body: %#v", seen[2])
	}

	if err := req.Respond(ctx, map[string]string{"q": "pong"}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	frames := conn.frames(t)
	last := frames[len(frames)-1]
	if last["type"] != "app" || last["client"] != "a" || last["req"] != "r1" {
		t.Fatalf("response frame: %v", last)
	}
}

func TestSendWaitsWhileConnecting(t *testing.T) {
	d := newMockDialer()
	d.gate = make(chan struct{})
	c := New("ws://broker.test/out", WithDialer(d.dial), WithReconnectDelay(time.Hour))
	if err := c.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() { _ = c.Unmount() })
	waitFor(t, "dial started", func() bool { return d.dials() == 1 })

	done := make(chan error, 1)
	go func() { done <- c.SetLock(context.Background(), protocol.Closed()) }()

	select {
	case err := <-done:
		t.Fatalf("SetLock returned before the socket opened: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if c.Lock().Engaged() {
		t.Fatalf("lock changed before send")
	}

	close(d.gate)
	conn := d.next(t)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetLock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("SetLock still blocked after open")
	}
	if !c.Lock().IsClosed() || len(conn.frames(t)) != 1 {
		t.Fatalf("lock=%v frames=%d", c.Lock(), len(conn.frames(t)))
	}
}

func TestSendFailsWhenConnectFails(t *testing.T) {
	d := newMockDialer()
	d.gate = make(chan struct{})
	d.fail = errors.New("connection refused")
	c := New("ws://broker.test/out", WithDialer(d.dial), WithReconnectDelay(time.Hour))
	if err := c.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() { _ = c.Unmount() })
	waitFor(t, "dial started", func() bool { return d.dials() == 1 })

	done := make(chan error, 1)
	go func() { done <- c.SetLock(context.Background(), protocol.LockAt(4)) }()
	time.Sleep(20 * time.Millisecond)
	close(d.gate)

	select {
	case err := <-done:
		if !errors.Is(err, ErrSocketNotReady) {
			t.Fatalf("SetLock err=%v want ErrSocketNotReady", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("SetLock did not fail")
	}
	if c.Lock().Engaged() {
		t.Fatalf("lock updated despite failed send")
	}
	waitFor(t, "reconnecting", c.Reconnecting)

	// The socket is closed now, so the next send fails without waiting.
	if err := c.SetLock(context.Background(), protocol.Closed()); !errors.Is(err, ErrSocketNotReady) {
		t.Fatalf("send on closed socket: %v", err)
	}
}

func TestSendBeforeMount(t *testing.T) {
	c := New("ws://broker.test/out", WithDialer(newMockDialer().dial))
	if err := c.SetLock(context.Background(), protocol.Closed()); !errors.Is(err, ErrSocketNotReady) {
		t.Fatalf("SetLock before mount: %v", err)
	}
	if c.Lock().Engaged() || c.Status() != StatusIdle {
		t.Fatalf("state changed: lock=%v status=%v", c.Lock(), c.Status())
	}
}

func TestUnmountIsIdempotentAndStopsReconnect(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d, WithReconnectDelay(5*time.Millisecond))

	conn.push(`{"type":"con","client":"a"}`)
	waitFor(t, "a", connected(c, "a"))
	closed := make(chan struct{}, 2)
	c.Connection("a").AddCloseListener(func() { closed <- struct{}{} })
	c.AddMessageListener(func(any) {})

	if err := c.Mount(); !errors.Is(err, ErrMounted) {
		t.Fatalf("second Mount: %v", err)
	}
	if err := c.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if err := c.Unmount(); err != nil {
		t.Fatalf("second Unmount: %v", err)
	}
	if c.Status() != StatusClosed || !conn.isClosed() {
		t.Fatalf("status=%v closed=%v", c.Status(), conn.isClosed())
	}
	if len(c.Connections()) != 0 || c.messageListeners.len() != 0 || c.connectionListeners.len() != 0 {
		t.Fatalf("unmount left state behind")
	}
	select {
	case <-closed:
	default:
		t.Fatalf("close listener did not fire on unmount")
	}

	time.Sleep(50 * time.Millisecond)
	if n := d.dials(); n != 1 {
		t.Fatalf("unmounted client redialed: %d dials", n)
	}
	if c.Reconnecting() {
		t.Fatalf("unmounted client reports reconnecting")
	}

	if err := c.Mount(); err != nil {
		t.Fatalf("remount: %v", err)
	}
	d.next(t)
	waitFor(t, "remount open", func() bool { return c.Status() == StatusOpen })
}

func TestReconnectAfterDrop(t *testing.T) {
	d := newMockDialer()
	errs := make(chan error, 4)
	c, conn := mountTestClient(t, d,
		WithReconnectDelay(10*time.Millisecond),
		WithErrorHandler(func(err error) { errs <- err }),
	)

	conn.push(`{"type":"con","client":"a"}`)
	waitFor(t, "a", connected(c, "a"))
	closed := make(chan struct{}, 1)
	c.Connection("a").AddCloseListener(func() { closed <- struct{}{} })

	conn.drop()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("connection not closed after drop")
	}
	select {
	case err := <-errs:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("reported %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("drop not reported")
	}

	next := d.next(t)
	waitFor(t, "reopened", func() bool { return !c.Reconnecting() && c.Status() == StatusOpen })
	next.push(`{"type":"chb","up":true,"clients":["a"]}`)
	waitFor(t, "a back", connected(c, "a"))
	if err := c.Connection("a").SendMessage(context.Background(), "hi", ""); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	if len(next.frames(t)) != 1 || len(conn.frames(t)) != 0 {
		t.Fatalf("frame went to the wrong socket")
	}
}

func TestDiffRoster(t *testing.T) {
	cases := []struct {
		local, reported []string
		added, removed  []string
	}{
		{nil, nil, nil, nil},
		{nil, []string{"b", "a"}, []string{"a", "b"}, nil},
		{[]string{"a", "b"}, nil, nil, []string{"a", "b"}},
		{[]string{"a", "b"}, []string{"b", "c"}, []string{"c"}, []string{"a"}},
		{[]string{"a"}, []string{"a", "a"}, nil, nil},
	}
	for _, tc := range cases {
		added, removed := diffRoster(tc.local, tc.reported)
		if !reflect.DeepEqual(added, tc.added) || !reflect.DeepEqual(removed, tc.removed) {
			t.Fatalf("diffRoster(%v,%v)=(%v,%v) want (%v,%v)",
				tc.local, tc.reported, added, removed, tc.added, tc.removed)
		}
	}
}

func TestReconnectKeepsClientsFromNewSocket(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d, WithReconnectDelay(time.Millisecond))

	conn.push(`{"type":"con","client":"a"}`)
	conn.push(`{"type":"con","client":"z"}`)
	waitFor(t, "a,z", connected(c, "a", "z"))
	c.Connection("a").AddCloseListener(func() { time.Sleep(200 * time.Millisecond) })

	conn.drop()
	next := d.next(t)
	next.push(`{"type":"con","client":"z"}`)
	waitFor(t, "z on the new socket", connected(c, "z"))

	next.push(`{"type":"lcy","client":"z","paused":true}`)
	waitFor(t, "z paused", func() bool {
		z := c.Connection("z")
		return z != nil && z.Paused()
	})
}

func TestCanceledSendIsNotASocketError(t *testing.T) {
	d := newMockDialer()
	c, conn := mountTestClient(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.SetLock(ctx, protocol.Closed())
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrSocketNotReady) {
		t.Fatalf("SetLock with canceled ctx: %v", err)
	}
	if c.Lock().Engaged() || len(conn.frames(t)) != 0 {
		t.Fatalf("canceled send changed state")
	}
}

func TestNewDefaultsDialer(t *testing.T) {
	c := New("ws://broker.test/out")
	if c.dial == nil {
		t.Fatalf("New left the dialer unset")
	}
}
