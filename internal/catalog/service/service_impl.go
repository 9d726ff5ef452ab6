package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/cache"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	"github.com/smallbiznis/leasecore/internal/clock"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/repository"
	"github.com/smallbiznis/leasecore/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceCacheTTL = 5 * time.Minute

type serviceKey struct {
	orgID snowflake.ID
	id    snowflake.ID
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	ContractRepo contractdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	contractRepo contractdomain.Repository
	services     repository.Repository[catalogdomain.BillableService]
	bindings     repository.Repository[catalogdomain.ContractService]
	cache        cache.Cache[serviceKey, catalogdomain.BillableService]
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,

		contractRepo: p.ContractRepo,
		services:     repository.ProvideStore[catalogdomain.BillableService](p.DB),
		bindings:     repository.ProvideStore[catalogdomain.ContractService](p.DB),
		cache:        cache.NewTTLCache[serviceKey, catalogdomain.BillableService](p.Clock.Now),
	}
}

func (s *Service) CreateService(ctx context.Context, orgID snowflake.ID, req catalogdomain.CreateServiceRequest) (*catalogdomain.BillableService, error) {
	if err := validation.Struct(req, catalogdomain.ErrInvalidService); err != nil {
		return nil, err
	}
	if orgID == 0 {
		return nil, catalogdomain.ErrInvalidService
	}
	price, err := normalizePrice(req.UnitPrice)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	svc := &catalogdomain.BillableService{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Name:         strings.TrimSpace(req.Name),
		Category:     strings.TrimSpace(req.Category),
		PricingModel: req.PricingModel,
		UnitPrice:    price,
		UnitName:     defaultUnitName(req.PricingModel, req.UnitName),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, catalogdomain.ErrServiceNameTaken
		}
		return nil, err
	}

	s.log.Info("service created",
		zap.String("org_id", orgID.String()),
		zap.String("service_id", svc.ID.String()),
		zap.String("pricing_model", string(svc.PricingModel)),
	)
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, orgID, id snowflake.ID, req catalogdomain.UpdateServiceRequest) (*catalogdomain.BillableService, error) {
	if err := validation.Struct(req, catalogdomain.ErrInvalidService); err != nil {
		return nil, err
	}

	svc, err := s.services.FindOne(ctx, &catalogdomain.BillableService{OrgID: orgID, ID: id})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalogdomain.ErrServiceNotFound
	}

	if req.Name != nil {
		svc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		svc.Category = strings.TrimSpace(*req.Category)
	}
	if req.PricingModel != nil {
		svc.PricingModel = *req.PricingModel
	}
	if req.UnitPrice != nil {
		price, err := normalizePrice(*req.UnitPrice)
		if err != nil {
			return nil, err
		}
		svc.UnitPrice = price
	}
	if req.UnitName != nil {
		svc.UnitName = defaultUnitName(svc.PricingModel, *req.UnitName)
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}
	svc.UpdatedAt = s.clock.Now().UTC()

	if err := s.services.Save(ctx, svc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, catalogdomain.ErrServiceNameTaken
		}
		return nil, err
	}
	s.cache.Delete(serviceKey{orgID: orgID, id: id})
	return svc, nil
}

func (s *Service) GetService(ctx context.Context, orgID, id snowflake.ID) (*catalogdomain.BillableService, error) {
	key := serviceKey{orgID: orgID, id: id}
	if cached, ok := s.cache.Get(key); ok {
		return &cached, nil
	}

	svc, err := s.services.FindOne(ctx, &catalogdomain.BillableService{OrgID: orgID, ID: id})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalogdomain.ErrServiceNotFound
	}
	s.cache.Set(key, *svc, serviceCacheTTL)
	return svc, nil
}

func (s *Service) ListServices(ctx context.Context, orgID snowflake.ID, activeOnly bool) ([]catalogdomain.BillableService, error) {
	filter := &catalogdomain.BillableService{OrgID: orgID}
	if activeOnly {
		filter.Active = true
	}
	items, err := s.services.Find(ctx, filter, repository.WithOrder("name ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]catalogdomain.BillableService, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) BindService(ctx context.Context, orgID snowflake.ID, req catalogdomain.BindServiceRequest) (*catalogdomain.ContractService, error) {
	if err := validation.Struct(req, catalogdomain.ErrInvalidService); err != nil {
		return nil, err
	}
	var custom *decimal.Decimal
	if req.CustomPrice != nil {
		price, err := normalizePrice(*req.CustomPrice)
		if err != nil {
			return nil, err
		}
		custom = &price
	}

	var binding *catalogdomain.ContractService
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.contractRepo.LockByID(ctx, tx, orgID, req.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return contractdomain.ErrContractNotFound
		}
		if contract.Status.IsTerminal() {
			return catalogdomain.ErrContractClosed
		}

		services := s.services.WithTx(tx)
		svc, err := services.FindOne(ctx, &catalogdomain.BillableService{OrgID: orgID, ID: req.ServiceID})
		if err != nil {
			return err
		}
		if svc == nil {
			return catalogdomain.ErrServiceNotFound
		}
		if !svc.Active {
			return catalogdomain.ErrServiceInactive
		}

		bindings := s.bindings.WithTx(tx)
		existing, err := bindings.Count(ctx, &catalogdomain.ContractService{
			OrgID:      orgID,
			ContractID: req.ContractID,
			ServiceID:  req.ServiceID,
			Active:     true,
		})
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", catalogdomain.ErrServiceAlreadyBound, svc.Name)
		}

		now := s.clock.Now().UTC()
		binding = &catalogdomain.ContractService{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			ContractID:  req.ContractID,
			ServiceID:   req.ServiceID,
			CustomPrice: custom,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return bindings.Create(ctx, binding)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("service bound",
		zap.String("contract_id", req.ContractID.String()),
		zap.String("service_id", req.ServiceID.String()),
		zap.Bool("custom_price", custom != nil),
	)
	return binding, nil
}

func (s *Service) UpdateBinding(ctx context.Context, orgID, id snowflake.ID, req catalogdomain.UpdateBindingRequest) (*catalogdomain.ContractService, error) {
	binding, err := s.bindings.FindOne(ctx, &catalogdomain.ContractService{OrgID: orgID, ID: id})
	if err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, catalogdomain.ErrBindingNotFound
	}

	switch {
	case req.ClearCustomPrice:
		binding.CustomPrice = nil
	case req.CustomPrice != nil:
		price, err := normalizePrice(*req.CustomPrice)
		if err != nil {
			return nil, err
		}
		binding.CustomPrice = &price
	}
	if req.Active != nil {
		binding.Active = *req.Active
	}
	binding.UpdatedAt = s.clock.Now().UTC()

	if err := s.bindings.Save(ctx, binding); err != nil {
		return nil, err
	}
	return binding, nil
}

func (s *Service) UnbindService(ctx context.Context, orgID, id snowflake.ID) error {
	inactive := false
	_, err := s.UpdateBinding(ctx, orgID, id, catalogdomain.UpdateBindingRequest{Active: &inactive})
	return err
}

func (s *Service) ListBindings(ctx context.Context, orgID, contractID snowflake.ID, activeOnly bool) ([]catalogdomain.BoundService, error) {
	return LoadBindings(ctx, s.db, orgID, contractID, activeOnly)
}

// LoadBindings returns the contract's bindings joined with their catalog
// services in binding order. db may be a transaction.
func LoadBindings(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, activeOnly bool) ([]catalogdomain.BoundService, error) {
	bindingStore := repository.ProvideStore[catalogdomain.ContractService](db)
	serviceStore := repository.ProvideStore[catalogdomain.BillableService](db)

	filter := &catalogdomain.ContractService{OrgID: orgID, ContractID: contractID}
	if activeOnly {
		filter.Active = true
	}
	bindings, err := bindingStore.Find(ctx, filter, repository.WithOrder("created_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	ids := lo.Uniq(lo.Map(bindings, func(b *catalogdomain.ContractService, _ int) snowflake.ID {
		return b.ServiceID
	}))
	services, err := serviceStore.Find(ctx, &catalogdomain.BillableService{OrgID: orgID}, repository.WithWhere("id IN ?", ids))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(services, func(svc *catalogdomain.BillableService) snowflake.ID { return svc.ID })

	out := make([]catalogdomain.BoundService, 0, len(bindings))
	for _, b := range bindings {
		svc, ok := byID[b.ServiceID]
		if !ok {
			continue
		}
		out = append(out, catalogdomain.BoundService{
			Binding:            *b,
			Service:            *svc,
			EffectiveUnitPrice: b.EffectiveUnitPrice(*svc),
		})
	}
	return out, nil
}

func normalizePrice(price decimal.Decimal) (decimal.Decimal, error) {
	if money.IsNegative(price) {
		return decimal.Zero, catalogdomain.ErrInvalidPrice
	}
	return money.Round(price), nil
}

func defaultUnitName(model catalogdomain.PricingModel, unit string) string {
	unit = strings.TrimSpace(unit)
	if unit != "" {
		return unit
	}
	if model == catalogdomain.PricingPerUnit {
		return "unit"
	}
	return "month"
}
