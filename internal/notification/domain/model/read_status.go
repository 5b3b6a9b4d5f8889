package model

import "time"

// ReadStatus is the set of message ids a user has read
type ReadStatus struct {
	userID    string
	readIDs   []string
	index     map[string]struct{}
	updatedAt time.Time
}

// NewReadStatus returns an empty status for userID
func NewReadStatus(userID string) *ReadStatus {
	return RestoreReadStatus(userID, nil, time.Time{})
}

// RestoreReadStatus rebuilds a status from storage, dropping duplicate ids
func RestoreReadStatus(userID string, ids []string, updatedAt time.Time) *ReadStatus {
	rs := &ReadStatus{
		userID:    userID,
		readIDs:   make([]string, 0, len(ids)),
		index:     make(map[string]struct{}, len(ids)),
		updatedAt: updatedAt,
	}
	for _, id := range ids {
		rs.add(id)
	}
	return rs
}

func (r *ReadStatus) add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := r.index[id]; ok {
		return false
	}
	r.index[id] = struct{}{}
	r.readIDs = append(r.readIDs, id)
	return true
}

func (r *ReadStatus) UserID() string       { return r.userID }
func (r *ReadStatus) UpdatedAt() time.Time { return r.updatedAt }

// IDs returns the read ids in the order they were first read
func (r *ReadStatus) IDs() []string {
	out := make([]string, len(r.readIDs))
	copy(out, r.readIDs)
	return out
}

// Has reports whether id has been read
func (r *ReadStatus) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// MarkResult describes the outcome of MarkRead
type MarkResult struct {
	// AlreadyRead is every id read before this call
	AlreadyRead []string
	// NewlyRead is the requested ids that were not read yet, in request order
	NewlyRead []string
}

// MarkRead adds ids to the set. Marking an id twice is a no-op.
func (r *ReadStatus) MarkRead(ids []string, at time.Time) MarkResult {
	result := MarkResult{
		AlreadyRead: r.IDs(),
		NewlyRead:   []string{},
	}
	for _, id := range ids {
		if r.add(id) {
			result.NewlyRead = append(result.NewlyRead, id)
		}
	}
	if len(result.NewlyRead) > 0 {
		r.updatedAt = at
	}
	return result
}

// Apply marks every notification in list whose id is in the set
func (r *ReadStatus) Apply(list []*Notification) {
	for _, n := range list {
		if r.Has(n.messageID) {
			n.MarkRead(r.updatedAt)
		}
	}
}
