// Package replica implements a single Raft replica: the role state
// machine, election and log-replication protocols, and the client-facing
// get/put request pipeline, all driven by one single-threaded event loop
// with no locks.
package replica

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/sebytremblay/raft-protocol/transport"
)

const (
	heartbeatInterval  = 150 * time.Millisecond
	appendPaceInterval = 300 * time.Millisecond
	pollTimeout        = 100 * time.Millisecond
	maxEntriesPerChunk = 30
)

// wireCloser is the slice of the transport adaptor a Replica depends on: a
// narrow interface keeps the replica testable without a real UDP socket and
// gives Close something to shut down.
type wireCloser interface {
	Send(transport.Message) error
	Close() error
}

// Replica is the whole per-process Raft state machine described by
// spec.md §3-4. Exactly one goroutine (Run's caller) ever touches its
// fields; there is deliberately no mutex anywhere in this type.
type Replica struct {
	id    string
	peers []string
	tr    wireCloser
	diag  *Diagnostics

	// role state machine
	role          Role
	currentTerm   uint64
	votedFor      string
	votes         map[string]bool
	currentLeader string
	leader        *leaderState // non-nil only while role == Leader

	// log + volatile application state
	log         *Log
	commitIndex int
	lastApplied int

	// timers, compared against wall-clock time read once per loop iteration
	electionDeadline time.Time
	lastHeartbeat    time.Time

	// client-facing state
	kv            map[string]string
	pending       []transport.Message
	committedMIDs map[string]int // MID -> committing index; invalidated on truncation, see forgetCommittedMIDsFrom
}

// New constructs a Replica in the follower role at term 0 with an empty log
// (plus sentinel) and an unknown leader, per spec.md §3's lifecycle.
func New(id string, peers []string, tr wireCloser, diag *Diagnostics) *Replica {
	r := &Replica{
		id:            id,
		peers:         peers,
		tr:            tr,
		diag:          diag,
		role:          Follower,
		currentLeader: transport.Broadcast,
		log:           NewLog(),
		kv:            make(map[string]string),
		committedMIDs: make(map[string]int),
	}
	r.resetElectionDeadline()
	return r
}

// leaderID reports the leader field this replica should stamp on outbound
// messages: its own id if it is the leader, the known leader otherwise, or
// the broadcast sentinel if none is known.
func (r *Replica) leaderID() string {
	if r.role == Leader {
		return r.id
	}
	if r.currentLeader == "" {
		return transport.Broadcast
	}
	return r.currentLeader
}

func (r *Replica) send(msg transport.Message) {
	if err := r.tr.Send(msg); err != nil {
		r.logf("send %s to %s failed: %v", msg.Type, msg.Dst, err)
	}
}

func (r *Replica) logf(format string, args ...any) {
	if r.diag != nil {
		r.diag.Printf(format, args...)
	}
}

// reconcileTerm implements the any-role -> follower rule: on any message
// whose term exceeds currentTerm, adopt that term and step down before the
// message body is dispatched.
func (r *Replica) reconcileTerm(msg transport.Message) {
	if msg.Term > r.currentTerm {
		r.becomeFollower(msg.Term, "")
	}
}

// Announce broadcasts the one-time startup "hello" the launcher contract
// requires.
func (r *Replica) Announce() {
	r.send(transport.Message{
		Src:    r.id,
		Dst:    transport.Broadcast,
		Leader: r.leaderID(),
		Type:   transport.TypeHello,
	})
}

// Run executes the event loop from spec.md §4.7 until ctx is cancelled.
// Each iteration: maybe start an election, maybe heartbeat, maybe
// replicate, poll the transport once (bounded wait), then apply newly
// committed entries.
func (r *Replica) Run(ctx context.Context, receive func(time.Duration) (transport.Message, bool, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()

		if r.role != Leader && now.After(r.electionDeadline) {
			r.becomeCandidate()
		}

		if r.role == Leader {
			if now.Sub(r.lastHeartbeat) >= heartbeatInterval {
				r.broadcastHeartbeat()
				r.lastHeartbeat = now
			}
			r.replicateToLaggingPeers(now)
		}

		msg, ok, err := receive(pollTimeout)
		if err != nil {
			return err
		}
		if ok {
			r.dispatch(msg)
		}

		r.applyCommitted()
	}
}

// dispatch reconciles the sender's term ahead of every other rule, then
// routes by message type. Unknown types and role/message mismatches are
// logged and dropped, never fatal, per spec.md §7.
func (r *Replica) dispatch(msg transport.Message) {
	switch msg.Type {
	case transport.TypeRequestVote, transport.TypeVote, transport.TypeAppend, transport.TypeOK, transport.TypeFail:
		r.reconcileTerm(msg)
	}

	switch msg.Type {
	case transport.TypeGet:
		r.handleGet(msg)
	case transport.TypePut:
		r.handlePut(msg)
	case transport.TypeRequestVote:
		r.handleRequestVote(msg)
	case transport.TypeVote:
		r.handleVote(msg)
	case transport.TypeAppend:
		r.handleAppendEntries(msg)
	case transport.TypeOK:
		if r.role == Leader {
			r.handleAppendOK(msg)
		} else {
			r.logf("dropped stray append-ok from %s (not leader)", msg.Src)
		}
	case transport.TypeFail:
		if r.role == Leader {
			r.handleAppendFail(msg)
		} else {
			r.logf("dropped stray append-fail from %s (not leader)", msg.Src)
		}
	case transport.TypeHello:
		// informational only; no state change.
	default:
		r.logf("dropped unknown message type %q from %s", msg.Type, msg.Src)
	}
}

// Close shuts the replica down: closes the transport socket and the
// diagnostic log file, reporting both failures instead of masking the
// second behind the first.
func (r *Replica) Close() error {
	var err error
	if r.tr != nil {
		err = multierr.Append(err, r.tr.Close())
	}
	if r.diag != nil {
		err = multierr.Append(err, r.diag.Close())
	}
	return err
}
