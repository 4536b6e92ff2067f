package replica

import "github.com/sebytremblay/raft-protocol/transport"

// handleGet dispatches a client get per spec.md §4.6: leader answers,
// a follower with a known leader redirects, and a candidate or a follower
// with no known leader enqueues.
func (r *Replica) handleGet(msg transport.Message) {
	switch r.role {
	case Leader:
		r.send(transport.Message{
			Src: r.id, Dst: msg.Src, Leader: r.id, Type: transport.TypeOK,
			MID: msg.MID, Value: r.kv[msg.Key],
		})
	case Follower:
		if r.currentLeader != "" && r.currentLeader != transport.Broadcast {
			r.redirect(msg)
			return
		}
		r.enqueue(msg)
	default: // Candidate
		r.enqueue(msg)
	}
}

// handlePut dispatches a client put per spec.md §4.6. The leader first
// checks whether MID has already committed (at-most-once acknowledgement);
// otherwise it appends a new entry and lets commit advancement generate
// the eventual ok.
func (r *Replica) handlePut(msg transport.Message) {
	switch r.role {
	case Leader:
		if idx, ok := r.committedMIDs[msg.MID]; ok {
			r.logf("duplicate MID %s already committed at index %d, replying ok without appending", msg.MID, idx)
			r.send(transport.Message{
				Src: r.id, Dst: msg.Src, Leader: r.id, Type: transport.TypeOK, MID: msg.MID,
			})
			return
		}

		r.log.Append(transport.Entry{
			Term:    r.currentTerm,
			Command: transport.CommandPut,
			Src:     msg.Src,
			MID:     msg.MID,
			Key:     msg.Key,
			Value:   msg.Value,
		})
	case Follower:
		if r.currentLeader != "" && r.currentLeader != transport.Broadcast {
			r.redirect(msg)
			return
		}
		r.enqueue(msg)
	default: // Candidate
		r.enqueue(msg)
	}
}

func (r *Replica) redirect(msg transport.Message) {
	r.send(transport.Message{
		Src: r.id, Dst: msg.Src, Leader: r.currentLeader, Type: transport.TypeRedirect, MID: msg.MID,
	})
}

func (r *Replica) enqueue(msg transport.Message) {
	r.pending = append(r.pending, msg)
}

// drainQueue redirects (or, if leadership was self-discovered in the
// meantime, serves) every queued client message. There is no TTL: queued
// requests wait indefinitely for a leader to appear.
func (r *Replica) drainQueue() {
	if len(r.pending) == 0 {
		return
	}
	queued := r.pending
	r.pending = nil

	for _, msg := range queued {
		switch msg.Type {
		case transport.TypeGet:
			r.handleGet(msg)
		case transport.TypePut:
			r.handlePut(msg)
		}
	}
}
