package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/janmager/myfreelance-backend/internal/clock"
	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
	obsmetrics "github.com/janmager/myfreelance-backend/internal/observability/metrics"
	usagedomain "github.com/janmager/myfreelance-backend/internal/usage/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     entitlementdomain.Repository
	UserRepo userdomain.Repository
	Counter  usagedomain.Counter
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     entitlementdomain.Repository
	userRepo userdomain.Repository
	counter  usagedomain.Counter
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) entitlementdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("entitlement.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		counter:  p.Counter,
		metrics:  p.Metrics,
	}
}

// premiumLevel resolves the user's tier. Unknown users read as free
// tier rather than failing the check.
func (s *Service) premiumLevel(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	user, err := s.userRepo.FindByID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return user.PremiumLevel, nil
}

func (s *Service) CheckResource(ctx context.Context, userID string, kind entitlementdomain.ResourceKind) (*entitlementdomain.CheckResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}
	if !entitlementdomain.IsValidResourceKind(kind) || kind == entitlementdomain.ResourceFilesMB {
		return nil, entitlementdomain.ErrUnknownResource
	}

	var result *entitlementdomain.CheckResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := s.premiumLevel(ctx, tx, userID)
		if err != nil {
			return err
		}

		limit, err := s.repo.FindByName(ctx, tx, string(kind))
		if err != nil {
			return err
		}

		current, err := s.counter.CountResource(ctx, tx, userID, kind)
		if err != nil {
			return err
		}

		allowance := limit.ForLevel(level)
		result = &entitlementdomain.CheckResult{
			Allowed:      current < allowance,
			CurrentCount: current,
			Limit:        allowance,
			PremiumLevel: level,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, entitlementdomain.ErrLimitNotConfigured) {
			s.log.Error("limits row missing", zap.String("kind", string(kind)))
		}
		return nil, err
	}

	s.metrics.IncLimitCheck(string(kind), result.Allowed)
	if !result.Allowed {
		s.log.Info("limit reached",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Int64("current", result.CurrentCount),
			zap.Int64("limit", result.Limit),
		)
	}
	return result, nil
}

func (s *Service) CheckFileUpload(ctx context.Context, userID string, fileSizeBytes int64) (*entitlementdomain.FileCheckResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}
	if fileSizeBytes < 0 {
		return nil, entitlementdomain.ErrInvalidFileSize
	}

	var result *entitlementdomain.FileCheckResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := s.premiumLevel(ctx, tx, userID)
		if err != nil {
			return err
		}

		limit, err := s.repo.FindByName(ctx, tx, string(entitlementdomain.ResourceFilesMB))
		if err != nil {
			return err
		}

		totalBytes, err := s.counter.SumFileBytes(ctx, tx, userID)
		if err != nil {
			return err
		}

		// The comparison runs on the rounded megabyte values, and a
		// candidate landing exactly on the limit is allowed.
		currentMB := usagedomain.BytesToMB(totalBytes)
		candidateMB := usagedomain.BytesToMB(fileSizeBytes)
		limitMB := limit.ForLevel(level)

		result = &entitlementdomain.FileCheckResult{
			Allowed:      currentMB+candidateMB <= float64(limitMB),
			CurrentMB:    currentMB,
			CandidateMB:  candidateMB,
			TotalAfterMB: currentMB + candidateMB,
			LimitMB:      limitMB,
			PremiumLevel: level,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, entitlementdomain.ErrLimitNotConfigured) {
			s.log.Error("limits row missing", zap.String("kind", string(entitlementdomain.ResourceFilesMB)))
		}
		return nil, err
	}

	s.metrics.IncLimitCheck(string(entitlementdomain.ResourceFilesMB), result.Allowed)
	return result, nil
}

func (s *Service) ListLimits(ctx context.Context) ([]entitlementdomain.Limit, error) {
	return s.repo.ListAll(ctx, s.db)
}

func (s *Service) UpdateLimits(ctx context.Context, updates []entitlementdomain.Limit) error {
	if len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		if !entitlementdomain.IsValidResourceKind(entitlementdomain.ResourceKind(u.Name)) {
			return entitlementdomain.ErrUnknownResource
		}
		if u.PremiumLevel0 < 0 || u.PremiumLevel1 < 0 || u.PremiumLevel2 < 0 {
			return entitlementdomain.ErrInvalidLimitValue
		}
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := s.repo.Update(ctx, tx, u, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("limits updated", zap.Int("count", len(updates)))
	return nil
}
