package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// maxDatagram is the wire size limit that drives the 30-entry AppendEntries
// chunking policy upstream in the replica package.
const maxDatagram = 65535

// Transport owns a single UDP socket, the way the teacher's RaftClient owns
// a single *http.Client: one object, one goroutine touches it, no locks.
// Every outbound datagram is addressed to the same hub port; routing to the
// right replica or client happens by the Dst field inside the JSON payload,
// not by socket address.
type Transport struct {
	conn *net.UDPConn
	hub  *net.UDPAddr
}

// New binds an ephemeral local UDP socket and resolves the shared hub
// address (127.0.0.1:port) that the launcher told this replica about.
func New(port int) (*Transport, error) {
	hub, err := net.ResolveUDPAddr("udp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve hub address: %w", err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	return &Transport{conn: conn, hub: hub}, nil
}

// Send encodes msg as JSON and writes it to the hub. Send is best-effort:
// UDP datagrams may be dropped, reordered, or duplicated in flight, and
// callers must not assume delivery.
func (t *Transport) Send(msg Message) error {
	return t.writeTo(t.hub, msg)
}

// SendTo writes msg directly to addr instead of the shared hub address. A
// replica never needs this — it only ever addresses the hub — but a test
// process playing the harness role has no hub of its own to relay through
// and must reply straight to whichever socket a peer's datagram actually
// arrived from, learned via ReceiveFrom's addr return.
func (t *Transport) SendTo(addr *net.UDPAddr, msg Message) error {
	return t.writeTo(addr, msg)
}

func (t *Transport) writeTo(addr *net.UDPAddr, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", msg.Type, err)
	}
	if len(data) > maxDatagram {
		return fmt.Errorf("transport: message exceeds datagram limit (%d bytes)", len(data))
	}
	_, err = t.conn.WriteToUDP(data, addr)
	return err
}

// Receive blocks for at most timeout waiting for one datagram. It returns
// ok=false (no error) on timeout, which is the normal, expected outcome of
// an idle poll. A datagram that fails to decode as JSON is dropped silently
// and reported as a timeout to the caller — the event loop moves on to the
// next iteration rather than treating a single bad packet as fatal.
func (t *Transport) Receive(timeout time.Duration) (msg Message, ok bool, err error) {
	msg, _, ok, err = t.ReceiveFrom(timeout)
	return msg, ok, err
}

// ReceiveFrom behaves like Receive but also reports the sender's actual
// socket address. Ordinary replica code has no use for it (routing is by
// the Dst field, not by socket address), but a test harness with no hub of
// its own needs it to learn where to SendTo a given peer.
func (t *Transport) ReceiveFrom(timeout time.Duration) (msg Message, addr *net.UDPAddr, ok bool, err error) {
	if err = t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Message{}, nil, false, fmt.Errorf("transport: set deadline: %w", err)
	}

	buf := make([]byte, maxDatagram)
	n, raddr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, isNetErr := err.(net.Error); isNetErr && netErr.Timeout() {
			return Message{}, nil, false, nil
		}
		return Message{}, nil, false, fmt.Errorf("transport: read: %w", err)
	}

	if err = json.Unmarshal(buf[:n], &msg); err != nil {
		return Message{}, nil, false, nil
	}

	return msg, raddr, true, nil
}

// Close releases the UDP socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// LocalPort reports the ephemeral port this transport bound to. Mainly
// useful to tests and launchers that need to tell a peer where to reach
// this replica back.
func (t *Transport) LocalPort() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}
