package domain

// ResolvedIn returns resolvedAt minus inProgressAt in milliseconds.
// It is nil while either timestamp is missing and never negative.
func ResolvedIn(t *Ticket) *int64 {
	if t == nil || t.InProgressAt == nil || t.ResolvedAt == nil {
		return nil
	}
	diff := t.ResolvedAt.Sub(*t.InProgressAt).Milliseconds()
	if diff < 0 {
		diff = 0
	}
	return &diff
}
