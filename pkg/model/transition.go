package model

// TransitionConditions are the business-rule gates attached to a
// transition. Nil pointer fields mean the gate does not apply.
type TransitionConditions struct {
	// PaymentRequired demands a fully settled payment before the
	// transition may execute.
	PaymentRequired bool

	// MinHoursBeforeReservation is the minimum notice, in hours, the
	// actor must give relative to the reservation's start time.
	MinHoursBeforeReservation *int

	// MaxRescheduleCount caps how often a reservation may have been
	// rescheduled before this transition is allowed.
	MaxRescheduleCount *int
}

// TransitionRule is one legal (from, to) edge with its authorization
// and conditions. The full rule set forms the immutable transition
// table loaded once at process start.
type TransitionRule struct {
	From           Status
	To             Status
	AllowedBy      []Role
	RequiresReason bool
	Conditions     TransitionConditions
}

// Allows reports whether the given role may request this transition.
// RoleAdmin is implicitly allowed on every edge; admins remain subject
// to the edge's conditions unless an explicit override is recorded.
func (r *TransitionRule) Allows(role Role) bool {
	if role == RoleAdmin {
		return true
	}
	for _, allowed := range r.AllowedBy {
		if allowed == role {
			return true
		}
	}
	return false
}

// TransitionTable is a read-only index over transition rules. Build it
// once with NewTransitionTable and share it by reference; it is safe
// for concurrent readers.
type TransitionTable struct {
	byFrom map[Status][]TransitionRule
}

func NewTransitionTable(rules []TransitionRule) *TransitionTable {
	byFrom := make(map[Status][]TransitionRule)
	for _, rule := range rules {
		byFrom[rule.From] = append(byFrom[rule.From], rule)
	}
	return &TransitionTable{byFrom: byFrom}
}

// Find returns the rule for (from, to), if the pair is in the table.
func (t *TransitionTable) Find(from, to Status) (TransitionRule, bool) {
	for _, rule := range t.byFrom[from] {
		if rule.To == to {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// From returns the outgoing rules for a status. The returned slice is
// a copy; callers may not mutate table state.
func (t *TransitionTable) From(from Status) []TransitionRule {
	rules := t.byFrom[from]
	out := make([]TransitionRule, len(rules))
	copy(out, rules)
	return out
}
