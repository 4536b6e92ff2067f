package replica

import (
	"sync"

	"github.com/sebytremblay/raft-protocol/transport"
)

// fakeTransport records every outbound message in place of a real UDP
// socket, letting tests assert on exactly what a replica would have sent
// without a network round trip.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []transport.Message
	closed bool
}

func (f *fakeTransport) Send(msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) messagesTo(dst string) []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transport.Message
	for _, m := range f.sent {
		if m.Dst == dst {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) messagesOfType(t transport.Type) []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transport.Message
	for _, m := range f.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func newTestReplica(id string, peers []string) (*Replica, *fakeTransport) {
	tr := &fakeTransport{}
	r := New(id, peers, tr, NewDiscardDiagnostics())
	return r, tr
}
