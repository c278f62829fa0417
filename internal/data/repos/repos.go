package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/slidedeck-backend/internal/data/repos/materials"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

type MaterialRepo = materials.MaterialRepo

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return materials.NewMaterialRepo(db, baseLog)
}
