package payment

import (
	"github.com/smallbiznis/leasecore/internal/payment/repository"
	"github.com/smallbiznis/leasecore/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
