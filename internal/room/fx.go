package room

import (
	"github.com/smallbiznis/leasecore/internal/room/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("room.repository",
	fx.Provide(repository.Provide),
)
