// Package rules evaluates badge requirement trees against an account
// snapshot. Field access is a closed switch; anything richer goes through
// registered custom predicates.
package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/campusclub/gamify/internal/domain"
)

// Snapshot is everything a rule may look at.
type Snapshot struct {
	Account    domain.PointsAccount
	BadgeCount int64
	Counters   map[string]int64
}

// CounterPrefix selects an activity counter as a threshold field, e.g.
// "count:clubs_joined". Missing counters read as 0.
const CounterPrefix = "count:"

// FieldValue resolves a threshold field against s.
func FieldValue(s Snapshot, field string) (int64, error) {
	if name, ok := strings.CutPrefix(field, CounterPrefix); ok {
		return s.Counters[name], nil
	}

	a := s.Account
	switch field {
	case "total_points":
		return a.TotalPoints, nil
	case "lifetime_points":
		return a.LifetimePoints, nil
	case "activity_points":
		return a.ActivityPoints, nil
	case "social_points":
		return a.SocialPoints, nil
	case "leadership_points":
		return a.LeadershipPoints, nil
	case "academic_points":
		return a.AcademicPoints, nil
	case "special_points":
		return a.SpecialPoints, nil
	case "level":
		return int64(a.Level), nil
	case "experience_points":
		return a.ExperiencePoints, nil
	case "current_streak":
		return int64(a.CurrentStreak), nil
	case "longest_streak":
		return int64(a.LongestStreak), nil
	case "badge_count":
		return s.BadgeCount, nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
}

// Predicate answers a custom rule.
type Predicate func(ctx context.Context, s Snapshot) (bool, error)

// Registry maps predicate ids to implementations. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	preds map[string]Predicate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{preds: make(map[string]Predicate)}
}

// Register adds or replaces a predicate.
func (r *Registry) Register(id string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds[id] = p
}

// Lookup returns the predicate for id.
func (r *Registry) Lookup(id string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.preds[id]
	return p, ok
}

// CounterAtLeast builds a predicate that holds when a counter reaches n.
func CounterAtLeast(counter string, n int64) Predicate {
	return func(_ context.Context, s Snapshot) (bool, error) {
		return s.Counters[counter] >= n, nil
	}
}

// DefaultRegistry returns the built-in activity predicates.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("club_enthusiast", CounterAtLeast(domain.CounterClubsJoined, 3))
	r.Register("event_goer", CounterAtLeast(domain.CounterEventsAttended, 5))
	r.Register("collaborator", CounterAtLeast(domain.CounterCollaborationsCompleted, 2))
	r.Register("regular", CounterAtLeast(domain.CounterLoginDays, 30))
	return r
}

// Evaluate interprets rule against s. Empty All is true and empty Any is
// false; catalog validation rejects both before they get here.
func Evaluate(ctx context.Context, rule domain.Rule, s Snapshot, reg *Registry) (bool, error) {
	switch rule.Kind {
	case domain.RuleThreshold:
		v, err := FieldValue(s, rule.Field)
		if err != nil {
			return false, err
		}
		return rule.Op.Compare(v, rule.Value)

	case domain.RuleCustom:
		if reg == nil {
			return false, fmt.Errorf("%w: %q", domain.ErrUnknownPredicate, rule.Predicate)
		}
		p, ok := reg.Lookup(rule.Predicate)
		if !ok {
			return false, fmt.Errorf("%w: %q", domain.ErrUnknownPredicate, rule.Predicate)
		}
		return p(ctx, s)

	case domain.RuleAll:
		for _, child := range rule.Rules {
			ok, err := Evaluate(ctx, child, s, reg)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case domain.RuleAny:
		for _, child := range rule.Rules {
			ok, err := Evaluate(ctx, child, s, reg)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: kind %q", domain.ErrInvalidRule, rule.Kind)
}
