package newsgroup

// Selection is the tab picked by the user for one feed. It is UI state only;
// selecting never touches the feed.
type Selection struct {
	key string
}

// SelectTab picks key if it is a tab of g. Unknown keys are a no-op.
// Returns whether the selection changed.
func (s *Selection) SelectTab(g Grouping, key string) bool {
	if !g.Contains(key) || s.key == key {
		return false
	}
	s.key = key
	return true
}

// Resolve returns the effective tab: the picked one while it still exists,
// otherwise the grouping's default
func (s *Selection) Resolve(g Grouping) (string, bool) {
	if s.key != "" && g.Contains(s.key) {
		return s.key, true
	}
	return g.Default, g.HasDefault
}

// Picked returns the raw picked key (may be stale)
func (s *Selection) Picked() string {
	return s.key
}

// Reset clears the pick
func (s *Selection) Reset() {
	s.key = ""
}
