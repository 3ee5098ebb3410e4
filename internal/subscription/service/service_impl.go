package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/janmager/myfreelance-backend/internal/billing/adapters"
	billingdomain "github.com/janmager/myfreelance-backend/internal/billing/domain"
	"github.com/janmager/myfreelance-backend/internal/clock"
	"github.com/janmager/myfreelance-backend/internal/config"
	obsmetrics "github.com/janmager/myfreelance-backend/internal/observability/metrics"
	subscriptiondomain "github.com/janmager/myfreelance-backend/internal/subscription/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Config   config.Config
	Catalog  *config.ProductCatalog
	Registry *adapters.Registry
	Repo     subscriptiondomain.Repository
	UserRepo userdomain.Repository
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	cfg      config.Config
	catalog  *config.ProductCatalog
	registry *adapters.Registry
	repo     subscriptiondomain.Repository
	userRepo userdomain.Repository
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		cfg:      p.Config,
		catalog:  p.Catalog,
		registry: p.Registry,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		metrics:  p.Metrics,
	}
}

func (s *Service) Checkout(ctx context.Context, userID, productName, provider string) (*subscriptiondomain.CheckoutResponse, error) {
	userID = strings.TrimSpace(userID)
	productName = strings.TrimSpace(productName)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}
	if productName == "" {
		return nil, subscriptiondomain.ErrProductRequired
	}

	product, err := s.catalog.ByName(productName)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByUserProduct(ctx, s.db, userID, productName)
	if err != nil && !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == subscriptiondomain.StatusActive {
		return nil, subscriptiondomain.ErrAlreadySubscribed
	}

	if provider = strings.TrimSpace(provider); provider == "" {
		provider = s.cfg.BillingProvider
	}
	adapter, err := s.registry.ForName(provider)
	if err != nil {
		return nil, err
	}

	session, err := adapter.CreateCheckout(ctx, billingdomain.CheckoutRequest{
		UserID:      userID,
		Email:       user.Email,
		ProductName: product.Name,
		SuccessURL:  s.cfg.CheckoutSuccessURL(),
		CancelURL:   s.cfg.CheckoutCancelURL(),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	record := &subscriptiondomain.Subscription{
		ID:                 id,
		SubscriptionID:     fmt.Sprintf("sub_%s", id),
		UserID:             userID,
		ProductName:        product.Name,
		Provider:           adapter.Name(),
		ProviderCheckoutID: session.ID,
		Status:             subscriptiondomain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.UpsertPending(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.log.Info("checkout created",
		zap.String("user_id", userID),
		zap.String("product", product.Name),
		zap.String("provider", adapter.Name()),
		zap.String("checkout_id", session.ID),
	)

	return &subscriptiondomain.CheckoutResponse{
		CheckoutURL: session.URL,
		CheckoutID:  session.ID,
	}, nil
}

func (s *Service) Cancel(ctx context.Context, userID, subscriptionID string) error {
	sub, err := s.findOwned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != subscriptiondomain.StatusActive && sub.Status != subscriptiondomain.StatusPastDue {
		return subscriptiondomain.ErrNotCancellable
	}

	if sub.ProviderSubscriptionID != "" {
		adapter, err := s.registry.ForName(sub.Provider)
		if err != nil {
			return err
		}
		if err := adapter.CancelSubscription(ctx, sub.ProviderSubscriptionID, true); err != nil {
			// Local state still flips; the drift corrector converges if
			// the provider call failed transiently.
			s.log.Warn("provider cancel failed",
				zap.String("subscription_id", sub.SubscriptionID),
				zap.Error(err),
			)
		}
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, s.db, sub.SubscriptionID, subscriptiondomain.StatusCancelledAtPeriodEnd, &now, now); err != nil {
		return err
	}

	// Access is paid for until the period ends; the premium level stays
	// until the provider reports the actual termination.
	s.log.Info("subscription cancellation scheduled",
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.SubscriptionID),
	)
	return nil
}

func (s *Service) Resume(ctx context.Context, userID, subscriptionID string) error {
	sub, err := s.findOwned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != subscriptiondomain.StatusCancelledAtPeriodEnd {
		return subscriptiondomain.ErrNotResumable
	}

	if sub.ProviderSubscriptionID != "" {
		adapter, err := s.registry.ForName(sub.Provider)
		if err != nil {
			return err
		}
		if err := adapter.ResumeSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
			return err
		}
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, s.db, sub.SubscriptionID, subscriptiondomain.StatusActive, nil, now); err != nil {
		return err
	}

	s.log.Info("subscription resumed",
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.SubscriptionID),
	)
	return nil
}

func (s *Service) GetSubscription(ctx context.Context, userID string) (*subscriptiondomain.Info, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}

	sub, err := s.repo.FindLatestByUser(ctx, s.db, userID, []subscriptiondomain.Status{
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusCancelledAtPeriodEnd,
	})
	if err != nil {
		return nil, err
	}

	level := 0
	if user, err := s.userRepo.FindByID(ctx, s.db, userID); err == nil {
		level = user.PremiumLevel
	}

	return s.toInfo(sub, level), nil
}

func (s *Service) PremiumStatus(ctx context.Context, userID string) (*subscriptiondomain.PremiumStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	status := &subscriptiondomain.PremiumStatus{
		PremiumLevel: user.PremiumLevel,
		Email:        user.Email,
		Name:         user.Name,
	}

	sub, err := s.repo.FindLatestByUser(ctx, s.db, userID, []subscriptiondomain.Status{
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusCancelledAtPeriodEnd,
		subscriptiondomain.StatusCancelled,
	})
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
			return status, nil
		}
		return nil, err
	}

	status.Subscription = s.toInfo(s.liveSnapshot(ctx, sub), user.PremiumLevel)
	return status, nil
}

func (s *Service) ManagementInfo(ctx context.Context, userID string) (*subscriptiondomain.ManagementInfo, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}

	sub, err := s.repo.FindLatestByUser(ctx, s.db, userID, []subscriptiondomain.Status{
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusPastDue,
		subscriptiondomain.StatusCancelledAtPeriodEnd,
		subscriptiondomain.StatusPaused,
	})
	if err != nil {
		return nil, err
	}

	sub = s.liveSnapshot(ctx, sub)
	return &subscriptiondomain.ManagementInfo{
		Provider:          sub.Provider,
		ProductName:       sub.ProductName,
		Status:            sub.Status,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.Status == subscriptiondomain.StatusCancelledAtPeriodEnd,
		CanCancel:         sub.Status == subscriptiondomain.StatusActive || sub.Status == subscriptiondomain.StatusPastDue,
		CanResume:         sub.Status == subscriptiondomain.StatusCancelledAtPeriodEnd,
	}, nil
}

func (s *Service) findOwned(ctx context.Context, userID, subscriptionID string) (*subscriptiondomain.Subscription, error) {
	userID = strings.TrimSpace(userID)
	subscriptionID = strings.TrimSpace(subscriptionID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}
	if subscriptionID == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return s.repo.FindByUserSubscriptionID(ctx, s.db, userID, subscriptionID)
}

// liveSnapshot overlays current provider data on a local row for read
// endpoints. Best effort: any provider failure serves the stored state.
func (s *Service) liveSnapshot(ctx context.Context, sub *subscriptiondomain.Subscription) *subscriptiondomain.Subscription {
	if sub.ProviderSubscriptionID == "" {
		return sub
	}
	adapter, err := s.registry.ForName(sub.Provider)
	if err != nil {
		return sub
	}
	ps, err := adapter.RetrieveSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		s.log.Debug("live subscription fetch failed, serving local state",
			zap.String("subscription_id", sub.SubscriptionID),
			zap.Error(err),
		)
		return sub
	}

	enriched := *sub
	if ps.Status != "" {
		status := subscriptiondomain.NormalizeStatus(sub.Provider, ps.Status)
		if status == subscriptiondomain.StatusActive && ps.CancelAtPeriodEnd {
			status = subscriptiondomain.StatusCancelledAtPeriodEnd
		}
		enriched.Status = status
	}
	if ps.CurrentPeriodEnd != nil {
		enriched.CurrentPeriodEnd = ps.CurrentPeriodEnd
	}
	return &enriched
}

func (s *Service) toInfo(sub *subscriptiondomain.Subscription, premiumLevel int) *subscriptiondomain.Info {
	return &subscriptiondomain.Info{
		ID:                     sub.SubscriptionID,
		ProductName:            sub.ProductName,
		Provider:               sub.Provider,
		Status:                 sub.Status,
		PremiumLevel:           premiumLevel,
		CreatedAt:              sub.CreatedAt,
		ExpiresAt:              sub.ExpiresAt,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		CancelAtPeriodEnd:      sub.Status == subscriptiondomain.StatusCancelledAtPeriodEnd,
	}
}
