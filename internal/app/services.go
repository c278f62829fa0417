package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
	"github.com/yungbote/slidedeck-backend/internal/realtime/bus"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

type Services struct {
	Assets     services.AssetService
	Reconciler *services.Reconciler
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	store *filestore.Store,
	urls *filestore.URLMapper,
	reposet Repos,
	events bus.Bus,
	metrics *observability.Metrics,
) Services {
	log.Info("Wiring services...")
	return Services{
		Assets: services.NewAssetService(db, log, store, urls, reposet.Material, events, metrics, services.AssetServiceOptions{
			AllowedMaterialExtensions: cfg.AllowedMaterialExtensions,
		}),
		Reconciler: services.NewReconciler(log, store, urls, reposet.Material, metrics),
	}
}
