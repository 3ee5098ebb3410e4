package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
	usagedomain "github.com/janmager/myfreelance-backend/internal/usage/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Counter   usagedomain.Counter
	UserRepo  userdomain.Repository
	LimitRepo entitlementdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	counter   usagedomain.Counter
	userRepo  userdomain.Repository
	limitRepo entitlementdomain.Repository
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("usage.service"),
		counter:   p.Counter,
		userRepo:  p.UserRepo,
		limitRepo: p.LimitRepo,
	}
}

func (s *Service) Overview(ctx context.Context, userID string) (*usagedomain.Overview, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}

	premiumLevel := 0
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	switch {
	case err == nil:
		premiumLevel = user.PremiumLevel
	case errors.Is(err, userdomain.ErrUserNotFound):
		// Unknown users read as free tier, same as the limit checks.
	default:
		return nil, err
	}

	limits, err := s.limitRepo.ListAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	limitFor := func(kind entitlementdomain.ResourceKind) int64 {
		for _, l := range limits {
			if l.Name == string(kind) {
				return l.ForLevel(premiumLevel)
			}
		}
		return 0
	}

	overview := &usagedomain.Overview{PremiumLevel: premiumLevel}

	type countedKind struct {
		kind entitlementdomain.ResourceKind
		stat *usagedomain.ResourceStat
	}
	for _, ck := range []countedKind{
		{entitlementdomain.ResourceClients, &overview.Stats.Clients},
		{entitlementdomain.ResourceProjects, &overview.Stats.Projects},
		{entitlementdomain.ResourceNotes, &overview.Stats.Notes},
		{entitlementdomain.ResourceContracts, &overview.Stats.Contracts},
		{entitlementdomain.ResourceLinks, &overview.Stats.Links},
		{entitlementdomain.ResourceTasks, &overview.Stats.Tasks},
		{entitlementdomain.ResourceValuations, &overview.Stats.Valuations},
	} {
		total, err := s.counter.CountResource(ctx, s.db, userID, ck.kind)
		if err != nil {
			return nil, err
		}
		ck.stat.Total = total
		ck.stat.Used = total
		ck.stat.Limit = limitFor(ck.kind)
	}

	if err := s.fillStatusCounts(ctx, userID, overview); err != nil {
		return nil, err
	}

	fileCount, sizeMB, err := s.fileUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	overview.Stats.Files = usagedomain.FileStat{
		Total:       fileCount,
		TotalSizeMB: sizeMB,
		UsedMB:      sizeMB,
		Limit:       limitFor(entitlementdomain.ResourceFilesMB),
	}

	return overview, nil
}

func (s *Service) fillStatusCounts(ctx context.Context, userID string, overview *usagedomain.Overview) error {
	type statusQuery struct {
		table    string
		statuses []string
		dest     **int64
	}
	queries := []statusQuery{
		{"clients", []string{"active"}, &overview.Stats.Clients.Active},
		{"projects", []string{"active"}, &overview.Stats.Projects.Active},
		{"projects", []string{"completed"}, &overview.Stats.Projects.Completed},
		{"contracts", []string{"active"}, &overview.Stats.Contracts.Active},
		{"tasks", []string{"done"}, &overview.Stats.Tasks.Completed},
		{"tasks", []string{"todo", "in_progress"}, &overview.Stats.Tasks.Pending},
	}

	for _, q := range queries {
		var count int64
		err := s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM `+q.table+` WHERE user_id = ? AND status IN ?`,
			userID,
			q.statuses,
		).Scan(&count).Error
		if err != nil {
			return err
		}
		c := count
		*q.dest = &c
	}
	return nil
}

func (s *Service) fileUsage(ctx context.Context, userID string) (int64, float64, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM files WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	if err != nil {
		return 0, 0, err
	}

	totalBytes, err := s.counter.SumFileBytes(ctx, s.db, userID)
	if err != nil {
		return 0, 0, err
	}
	return count, usagedomain.BytesToMB(totalBytes), nil
}

func (s *Service) AdminStats(ctx context.Context) (*usagedomain.AdminStats, error) {
	stats := &usagedomain.AdminStats{}

	err := s.db.WithContext(ctx).Raw(
		`SELECT premium_level, COUNT(*) AS user_count
		FROM users
		WHERE state = 'active'
		GROUP BY premium_level
		ORDER BY premium_level`,
	).Scan(&stats.UsersByLevel).Error
	if err != nil {
		return nil, err
	}

	totals := []struct {
		table string
		dest  *int64
	}{
		{"clients", &stats.TotalUsage.Clients},
		{"projects", &stats.TotalUsage.Projects},
		{"notes", &stats.TotalUsage.Notes},
		{"contracts", &stats.TotalUsage.Contracts},
		{"links", &stats.TotalUsage.Links},
		{"tasks", &stats.TotalUsage.Tasks},
		{"valuations", &stats.TotalUsage.Valuations},
	}
	for _, tc := range totals {
		if err := s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM ` + tc.table,
		).Scan(tc.dest).Error; err != nil {
			return nil, err
		}
	}

	var files struct {
		Count     int64
		TotalSize int64
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS total_size FROM files`,
	).Scan(&files).Error
	if err != nil {
		return nil, err
	}
	stats.TotalUsage.Files = usagedomain.GlobalFileStat{
		Count:       files.Count,
		TotalSizeMB: usagedomain.BytesToMB(files.TotalSize),
	}

	return stats, nil
}
