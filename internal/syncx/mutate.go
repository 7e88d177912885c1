package syncx

import "context"

// Create inserts a new row owned by the bound identity and re-fetches on
// success. Silent no-op when unbound. The view never shows an optimistic
// insert; the new row becomes visible through the re-fetch, with its
// store-assigned id and timestamp.
func (s *Session[E, D]) Create(ctx context.Context, draft D) {
	owner, gen, ok := s.beginMutation()
	if !ok {
		return
	}
	err := s.st.Insert(ctx, s.col.Name, owner, s.col.DraftRow(draft))
	s.finishMutation(ctx, gen, "create", err)
}

// Update rewrites the row matching id within the bound owner scope and
// re-fetches on success. A row owned by someone else matches zero rows; the
// resulting not-found error is surfaced through the error slot.
func (s *Session[E, D]) Update(ctx context.Context, id string, draft D) {
	owner, gen, ok := s.beginMutation()
	if !ok {
		return
	}
	err := s.st.Update(ctx, s.col.Name, id, owner, s.col.DraftRow(draft))
	s.finishMutation(ctx, gen, "update", err)
}

// Delete removes the row matching id within the bound owner scope and
// re-fetches on success. Failures surface through the error slot exactly
// like create and update failures.
func (s *Session[E, D]) Delete(ctx context.Context, id string) {
	owner, gen, ok := s.beginMutation()
	if !ok {
		return
	}
	err := s.st.Delete(ctx, s.col.Name, id, owner)
	s.finishMutation(ctx, gen, "delete", err)
}

// beginMutation clears the error slot and captures the owner scope.
// It reports false when no owner is bound.
func (s *Session[E, D]) beginMutation() (owner string, gen uint64, ok bool) {
	s.mu.Lock()
	if s.owner == "" {
		s.mu.Unlock()
		return "", 0, false
	}
	owner, gen = s.owner, s.gen
	changed := s.lastErr != ""
	s.lastErr = ""
	var snap Snapshot[E]
	if changed {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if changed {
		s.emit(snap)
	}
	return owner, gen, true
}

// finishMutation surfaces a failed write through the error slot, leaving the
// items untouched, or converges the view with a re-fetch on success. Results
// for a torn-down owner scope are dropped.
func (s *Session[E, D]) finishMutation(ctx context.Context, gen uint64, op string, err error) {
	if err == nil {
		mutationsTotal.WithLabelValues(s.col.Name, op, resultOK).Inc()
		s.refresh(ctx, gen)
		return
	}

	mutationsTotal.WithLabelValues(s.col.Name, op, resultErr).Inc()
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.lastErr = err.Error()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Error(ctx, "mutation failed", "op", op, "error", err)
	s.emit(snap)
}
