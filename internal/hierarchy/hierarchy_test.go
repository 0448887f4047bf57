package hierarchy

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"association-backend/internal/common/logger"
	"association-backend/internal/models"
)

// fakeUnitReader serves a fixed tree:
//
//	S1 -> Z1 -> D1 -> {C1, C2}
//
// with m1, m2 in C1 (m2 blocked) and m3 in C2.
type fakeUnitReader struct {
	levels   map[string]models.Level
	children map[string][]string
	members  map[string][]string // chapter -> reachable member ids
}

func (f *fakeUnitReader) UnitLevel(_ context.Context, id string) (models.Level, error) {
	return f.levels[id], nil
}

func (f *fakeUnitReader) ChildUnitIDs(_ context.Context, parentID string) ([]string, error) {
	return f.children[parentID], nil
}

func (f *fakeUnitReader) MemberIDsByChapters(_ context.Context, chapterIDs []string, _ []models.MemberStatus) ([]string, error) {
	var out []string
	for _, c := range chapterIDs {
		out = append(out, f.members[c]...)
	}
	return out, nil
}

func fixtureTree() *fakeUnitReader {
	return &fakeUnitReader{
		levels: map[string]models.Level{
			"S1": models.LevelState,
			"Z1": models.LevelZone,
			"D1": models.LevelDistrict,
			"C1": models.LevelChapter,
			"C2": models.LevelChapter,
		},
		children: map[string][]string{
			"S1": {"Z1"},
			"Z1": {"D1"},
			"D1": {"C1", "C2"},
		},
		// m2 is blocked and filtered out by the status predicate upstream.
		members: map[string][]string{
			"C1": {"m1"},
			"C2": {"m3"},
		},
	}
}

func newTestTree(f *fakeUnitReader) *Tree {
	return New(f, []models.MemberStatus{
		models.StatusActive, models.StatusAwaitingPayment, models.StatusTrial,
	}, logger.NewNoOpLogger())
}

func TestLeavesUnder(t *testing.T) {
	tree := newTestTree(fixtureTree())

	tests := []struct {
		name string
		unit string
		want []string
	}{
		{"state descends to all chapters", "S1", []string{"C1", "C2"}},
		{"zone descends to all chapters", "Z1", []string{"C1", "C2"}},
		{"district lists its chapters", "D1", []string{"C1", "C2"}},
		{"chapter is its own leaf set", "C1", []string{"C1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.LeavesUnder(context.Background(), tt.unit)
			require.NoError(t, err)
			sort.Strings(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeavesUnder_ChildlessInterior(t *testing.T) {
	f := fixtureTree()
	f.children["Z1"] = nil // zone with no districts yet

	tree := newTestTree(f)
	got, err := tree.LeavesUnder(context.Background(), "Z1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestActiveMembersOf(t *testing.T) {
	tree := newTestTree(fixtureTree())

	got, err := tree.ActiveMembersOf(context.Background(), "S1")
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"m1", "m3"}, got)

	got, err = tree.ActiveMembersOf(context.Background(), "C2")
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, got)
}
