package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/slidedeck-backend/internal/data/repos"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

type Repos struct {
	Material repos.MaterialRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Material: repos.NewMaterialRepo(db, log),
	}
}
