package replica

import "github.com/sebytremblay/raft-protocol/transport"

// applyCommitted advances lastApplied strictly in index order up to
// commitIndex, mutating the KV map for each put along the way. On the
// leader this is also where a committed entry generates the client's ok
// with its MID and, per spec.md §7's duplicate-suppression contract,
// records the MID as committed so a retried put short-circuits instead of
// appending a second entry.
func (r *Replica) applyCommitted() {
	for r.lastApplied < r.commitIndex {
		r.lastApplied++

		entry, ok := r.log.Get(r.lastApplied)
		if !ok || entry.Command != transport.CommandPut {
			continue
		}

		r.kv[entry.Key] = entry.Value
		r.committedMIDs[entry.MID] = r.lastApplied

		if r.role == Leader {
			r.send(transport.Message{
				Src: r.id, Dst: entry.Src, Leader: r.id, Type: transport.TypeOK, MID: entry.MID,
			})
		}
	}
}

// forgetCommittedMIDsFrom invalidates every committedMIDs entry pointing at
// index >= from, per spec.md §9's requirement that a MID -> index cache be
// invalidated on truncation. Without this a replica that later becomes
// leader could answer a retried put with an ok backed by no committed
// entry, once its log has been truncated past the index it recorded.
func (r *Replica) forgetCommittedMIDsFrom(from int) {
	for mid, idx := range r.committedMIDs {
		if idx >= from {
			delete(r.committedMIDs, mid)
		}
	}
	if r.lastApplied >= from {
		r.lastApplied = from - 1
	}
}
