// cmd/tools/seed-hierarchy/main.go
//
// Seeds a small demonstration tree (one state, one zone, two districts, four
// chapters), a default role set, and a handful of members in assorted
// lifecycle states. Safe to run against an empty database only.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"association-backend/internal/common/config"
	"association-backend/internal/common/database"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
	"association-backend/internal/store"
	"association-backend/pkg/capability"
)

func main() {
	trialDays := flag.Int("trial-days", 30, "trial length for seeded trial members")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	ctx := context.Background()
	s := store.New(pg.DB, log)
	if err := s.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	if err := seed(ctx, s, *trialDays); err != nil {
		zapLog.Fatal("seed failed", zap.Error(err))
	}
	fmt.Println("seed complete")
	os.Exit(0)
}

func seed(ctx context.Context, s *store.Store, trialDays int) error {
	stateID := uuid.New().String()
	zoneID := uuid.New().String()
	district1 := uuid.New().String()
	district2 := uuid.New().String()

	units := []*models.OrgUnit{
		{ID: stateID, Level: models.LevelState, Name: "Karnataka"},
		{ID: zoneID, Level: models.LevelZone, Name: "North Zone", ParentID: stateID},
		{ID: district1, Level: models.LevelDistrict, Name: "Belagavi", ParentID: zoneID},
		{ID: district2, Level: models.LevelDistrict, Name: "Hubballi", ParentID: zoneID},
	}
	chapters := []*models.OrgUnit{
		{ID: uuid.New().String(), Level: models.LevelChapter, Name: "Belagavi Central", ShortCode: "BGC", ParentID: district1},
		{ID: uuid.New().String(), Level: models.LevelChapter, Name: "Belagavi Rural", ShortCode: "BGR", ParentID: district1},
		{ID: uuid.New().String(), Level: models.LevelChapter, Name: "Hubballi East", ShortCode: "HBE", ParentID: district2},
		{ID: uuid.New().String(), Level: models.LevelChapter, Name: "Hubballi West", ShortCode: "HBW", ParentID: district2},
	}
	for _, u := range append(units, chapters...) {
		if err := s.CreateOrgUnit(ctx, u); err != nil {
			return err
		}
	}

	roles := []*models.RoleDefinition{
		{ID: "role-super-admin", Name: "Super Admin", Capabilities: capability.All()},
		{ID: "role-notifier", Name: "Notifier", Capabilities: []string{
			capability.NotificationView, capability.NotificationModify, capability.MemberView,
		}},
		{ID: "role-viewer", Name: "Viewer", Capabilities: []string{
			capability.MemberView, capability.HierarchyView, capability.PromotionView,
		}},
	}
	for _, r := range roles {
		if err := s.CreateRole(ctx, r); err != nil {
			return err
		}
	}

	trialEnd := time.Now().AddDate(0, 0, trialDays)
	members := []*models.Member{
		{ID: uuid.New().String(), Name: "Asha Patil", Phone: "+919800000001",
			Email: "asha@example.org", ChapterID: chapters[0].ID,
			Status: models.StatusActive, AppTier: models.TierPremium},
		{ID: uuid.New().String(), Name: "Ravi Kulkarni", Phone: "+919800000002",
			ChapterID: chapters[0].ID, Status: models.StatusTrial,
			FreeTrialEndDate: &trialEnd, AppTier: models.TierFree},
		{ID: uuid.New().String(), Name: "Meena Desai", Phone: "+919800000003",
			Email: "meena@example.org", ChapterID: chapters[2].ID,
			Status: models.StatusAwaitingPayment, AppTier: models.TierFree},
		{ID: uuid.New().String(), Name: "Kiran Hegde", Phone: "+919800000004",
			ChapterID: chapters[3].ID, Status: models.StatusBlocked, AppTier: models.TierFree},
	}
	for _, m := range members {
		if err := s.CreateMember(ctx, m); err != nil {
			return err
		}
	}

	// The first member presides over the state, the second over a chapter.
	if err := s.AddAdmin(ctx, stateID, members[0].ID, models.RolePresident); err != nil {
		return err
	}
	return s.AddAdmin(ctx, chapters[0].ID, members[1].ID, models.RoleSecretary)
}
