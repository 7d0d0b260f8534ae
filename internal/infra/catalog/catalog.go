// Package catalog provides the badge and achievement definitions the engine
// evaluates. The built-in set can be replaced by a TOML file:
//
//	[[badges]]
//	id = "first_steps"
//	name = "First Steps"
//	type = "milestone"
//	difficulty = "bronze"
//	points_reward = 10
//	requirement = { kind = "threshold", field = "total_points", op = ">=", value = 10 }
//
//	[[achievements]]
//	id = "event_regular"
//	name = "Event Regular"
//	points_reward = 100
//	requirements = [{ counter = "events_attended", target = 5 }]
//
// Entries are active unless they set active = false.
package catalog

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/campusclub/gamify/internal/domain"
	"github.com/campusclub/gamify/internal/infra/sqlite"
)

// File is a complete catalog.
type File struct {
	Badges       []domain.Badge       `toml:"badges"`
	Achievements []domain.Achievement `toml:"achievements"`
}

// Defaults returns the built-in catalog.
func Defaults() File {
	threshold := func(field string, v int64) domain.Rule {
		return domain.Threshold(field, domain.OpGTE, v)
	}
	return File{
		Badges: []domain.Badge{
			{
				ID:           "first_steps",
				Name:         "First Steps",
				Description:  "Welcome to the platform! You've taken your first steps.",
				Type:         domain.BadgeMilestone,
				Difficulty:   domain.DifficultyBronze,
				Requirement:  threshold("total_points", 10),
				PointsReward: 10,
			},
			{
				ID:           "point_collector",
				Name:         "Point Collector",
				Description:  "You've collected 500 points! Keep it up!",
				Type:         domain.BadgeMilestone,
				Difficulty:   domain.DifficultySilver,
				Requirement:  threshold("total_points", 500),
				PointsReward: 50,
			},
			{
				ID:           "point_master",
				Name:         "Point Master",
				Description:  "Amazing! You've reached 2000 points!",
				Type:         domain.BadgeMilestone,
				Difficulty:   domain.DifficultyGold,
				Requirement:  threshold("total_points", 2000),
				PointsReward: 200,
			},
			{
				ID:           "social_butterfly",
				Name:         "Social Butterfly",
				Description:  "You love connecting with others!",
				Type:         domain.BadgeSocial,
				Difficulty:   domain.DifficultySilver,
				Requirement:  threshold("social_points", 200),
				PointsReward: 75,
			},
			{
				ID:           "leader",
				Name:         "Leader",
				Description:  "Your leadership skills are shining!",
				Type:         domain.BadgeLeadership,
				Difficulty:   domain.DifficultyGold,
				Requirement:  threshold("leadership_points", 300),
				PointsReward: 150,
			},
			{
				ID:           "streak_starter",
				Name:         "Streak Starter",
				Description:  "You've maintained a 7-day activity streak!",
				Type:         domain.BadgeParticipation,
				Difficulty:   domain.DifficultyBronze,
				Requirement:  threshold("current_streak", 7),
				PointsReward: 50,
			},
			{
				ID:           "streak_master",
				Name:         "Streak Master",
				Description:  "Incredible! 30 days of consistent activity!",
				Type:         domain.BadgeParticipation,
				Difficulty:   domain.DifficultyPlatinum,
				Requirement:  threshold("current_streak", 30),
				PointsReward: 300,
			},
			{
				ID:           "club_enthusiast",
				Name:         "Club Enthusiast",
				Description:  "You're active in multiple clubs!",
				Type:         domain.BadgeSocial,
				Difficulty:   domain.DifficultySilver,
				Requirement:  domain.Custom("club_enthusiast"),
				PointsReward: 100,
			},
			{
				ID:           "event_goer",
				Name:         "Event Goer",
				Description:  "You love attending events!",
				Type:         domain.BadgeParticipation,
				Difficulty:   domain.DifficultySilver,
				Requirement:  domain.Custom("event_goer"),
				PointsReward: 75,
			},
			{
				ID:           "collaborator",
				Name:         "Collaborator",
				Description:  "You excel at working with others!",
				Type:         domain.BadgeLeadership,
				Difficulty:   domain.DifficultyGold,
				Requirement:  domain.Custom("collaborator"),
				PointsReward: 200,
			},
		},
		Achievements: []domain.Achievement{
			{
				ID:          "first_month_champion",
				Name:        "First Month Champion",
				Description: "Complete your first month on the platform with flying colors!",
				Type:        domain.AchievementChallenge,
				Difficulty:  domain.DifficultyGold,
				Requirements: []domain.Requirement{
					{Counter: domain.CounterDaysActive, Target: 20},
					{Counter: domain.CounterPointsEarned, Target: 500},
					{Counter: domain.CounterClubsJoined, Target: 2},
					{Counter: domain.CounterEventsAttended, Target: 3},
				},
				PointsReward: 1000,
				Featured:     true,
			},
			{
				ID:          "social_network_builder",
				Name:        "Social Network Builder",
				Description: "Build your social network by connecting with clubs and events.",
				Type:        domain.AchievementMilestone,
				Difficulty:  domain.DifficultySilver,
				Requirements: []domain.Requirement{
					{Counter: domain.CounterClubsJoined, Target: 5},
					{Counter: domain.CounterEventsAttended, Target: 10},
					{Counter: domain.CounterCollaborationsJoined, Target: 1},
				},
				PointsReward: 750,
			},
			{
				ID:          "leadership_journey",
				Name:        "Leadership Journey",
				Description: "Take on leadership roles and make a difference.",
				Type:        domain.AchievementMilestone,
				Difficulty:  domain.DifficultyGold,
				Requirements: []domain.Requirement{
					{Counter: domain.CounterClubsLed, Target: 1},
					{Counter: domain.CounterEventsOrganized, Target: 2},
					{Counter: domain.CounterCollaborationsLed, Target: 1},
				},
				PointsReward: 1500,
			},
			{
				ID:          "academic_excellence",
				Name:        "Academic Excellence",
				Description: "Demonstrate academic excellence through platform activities.",
				Type:        domain.AchievementMilestone,
				Difficulty:  domain.DifficultyPlatinum,
				Requirements: []domain.Requirement{
					{Counter: domain.CategoryCounter(domain.CategoryAcademic), Target: 500},
					{Counter: domain.CounterStudyGroupsJoined, Target: 3},
					{Counter: domain.CounterAcademicEventsAttended, Target: 5},
				},
				PointsReward: 1000,
			},
		},
	}.activated()
}

func (f File) activated() File {
	for i := range f.Badges {
		f.Badges[i].Active = true
	}
	for i := range f.Achievements {
		f.Achievements[i].Active = true
	}
	return f
}

// Load reads a catalog file. Entries without an explicit active key are
// active.
func Load(path string) (File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return f, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	var flags struct {
		Badges       []struct{ Active *bool } `toml:"badges"`
		Achievements []struct{ Active *bool } `toml:"achievements"`
	}
	if _, err := toml.DecodeFile(path, &flags); err != nil {
		return f, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for i, b := range flags.Badges {
		f.Badges[i].Active = b.Active == nil || *b.Active
	}
	for i, a := range flags.Achievements {
		f.Achievements[i].Active = a.Active == nil || *a.Active
	}

	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("catalog %s: %w", path, err)
	}
	return f, nil
}

// Validate checks ids, rule shapes and requirement targets.
func (f File) Validate() error {
	seen := make(map[string]bool)
	for _, b := range f.Badges {
		if b.ID == "" || b.Name == "" {
			return fmt.Errorf("%w: badge needs id and name", domain.ErrInvalidRule)
		}
		if seen["b:"+b.ID] {
			return fmt.Errorf("%w: duplicate badge %q", domain.ErrInvalidRule, b.ID)
		}
		seen["b:"+b.ID] = true
		if b.PointsReward < 0 {
			return fmt.Errorf("%w: badge %q has negative reward", domain.ErrInvalidAmount, b.ID)
		}
		if err := b.Requirement.Validate(); err != nil {
			return fmt.Errorf("badge %q: %w", b.ID, err)
		}
	}

	for _, a := range f.Achievements {
		if a.ID == "" || a.Name == "" {
			return fmt.Errorf("%w: achievement needs id and name", domain.ErrInvalidRule)
		}
		if seen["a:"+a.ID] {
			return fmt.Errorf("%w: duplicate achievement %q", domain.ErrInvalidRule, a.ID)
		}
		seen["a:"+a.ID] = true
		if len(a.Requirements) == 0 {
			return fmt.Errorf("%w: achievement %q has no requirements", domain.ErrInvalidRule, a.ID)
		}
		for _, r := range a.Requirements {
			if r.Counter == "" || r.Target <= 0 {
				return fmt.Errorf("%w: achievement %q requirement %q", domain.ErrInvalidRule, a.ID, r.Counter)
			}
		}
		if !a.StartsAt.IsZero() && !a.EndsAt.IsZero() && !a.EndsAt.After(a.StartsAt) {
			return fmt.Errorf("%w: achievement %q window ends before it starts", domain.ErrInvalidRule, a.ID)
		}
		if a.BadgeID != "" && !seen["b:"+a.BadgeID] {
			return fmt.Errorf("%w: achievement %q", domain.ErrBadgeNotFound, a.ID)
		}
	}
	return nil
}

// Seed upserts every definition in one transaction. Counters such as
// total_earned are preserved.
func Seed(ctx context.Context, db *sqlite.DB, f File) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return db.WithTx(ctx, func(tx *sqlite.Tx) error {
		for _, b := range f.Badges {
			if err := tx.UpsertBadge(ctx, b); err != nil {
				return err
			}
		}
		for _, a := range f.Achievements {
			if err := tx.UpsertAchievement(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}
