// Package hierarchy resolves audiences over the four-level organization
// tree. A unit's audience is the set of members attached to the chapters in
// its subtree, filtered to reachable statuses.
package hierarchy

import (
	"context"
	"fmt"

	"association-backend/internal/common/logger"
	"association-backend/internal/models"
)

type unitReader interface {
	UnitLevel(ctx context.Context, id string) (models.Level, error)
	ChildUnitIDs(ctx context.Context, parentID string) ([]string, error)
	MemberIDsByChapters(ctx context.Context, chapterIDs []string, statuses []models.MemberStatus) ([]string, error)
}

// Tree answers subtree and audience queries against the org unit store.
type Tree struct {
	store     unitReader
	reachable []models.MemberStatus
	log       logger.Logger
}

// New creates a Tree. reachable is the status set that qualifies a member
// for notification delivery.
func New(store unitReader, reachable []models.MemberStatus, log logger.Logger) *Tree {
	return &Tree{store: store, reachable: reachable, log: log}
}

// LeavesUnder returns the chapter ids in the subtree rooted at unitID. For a
// chapter the result is the unit itself; for higher levels the tree is walked
// one level at a time down to the chapters.
func (t *Tree) LeavesUnder(ctx context.Context, unitID string) ([]string, error) {
	level, err := t.store.UnitLevel(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if level == models.LevelChapter {
		return []string{unitID}, nil
	}

	frontier := []string{unitID}
	for l := level; l != models.LevelChapter; l = models.ChildLevel(l) {
		var next []string
		for _, id := range frontier {
			children, err := t.store.ChildUnitIDs(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("descend from %s: %w", id, err)
			}
			next = append(next, children...)
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return frontier, nil
}

// ActiveMembersOf returns the ids of reachable members in the subtree rooted
// at unitID. Members without a chapter never appear in any audience.
func (t *Tree) ActiveMembersOf(ctx context.Context, unitID string) ([]string, error) {
	chapters, err := t.LeavesUnder(ctx, unitID)
	if err != nil {
		return nil, err
	}
	ids, err := t.store.MemberIDsByChapters(ctx, chapters, t.reachable)
	if err != nil {
		return nil, err
	}
	t.log.Debug("resolved unit audience", map[string]interface{}{
		"org_unit_id": unitID,
		"chapters":    len(chapters),
		"members":     len(ids),
	})
	return ids, nil
}
