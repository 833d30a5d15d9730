// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package host

// Journal is an undo log. Every mutation of operation state appends the
// action that reverses it; rolling back replays them newest first.
type Journal struct {
	entries []func()
}

// Append records an undo action
func (j *Journal) Append(undo func()) {
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current journal position
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

// RevertToSnapshot undoes every mutation recorded after snapshot id
func (j *Journal) RevertToSnapshot(id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:id]
}

// Commit forgets all recorded undo actions
func (j *Journal) Commit() {
	clear(j.entries)
	j.entries = j.entries[:0]
}

// Len returns the number of recorded undo actions
func (j *Journal) Len() int {
	return len(j.entries)
}
