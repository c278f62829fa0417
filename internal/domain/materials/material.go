package materials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Material is a freestanding image that may belong to a project. A nil
// ProjectID places the file in the global materials directory.
type Material struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    *string   `gorm:"column:project_id;index" json:"project_id"`
	Filename     string    `gorm:"column:filename;not null" json:"filename"`
	URL          string    `gorm:"column:url;not null" json:"url"`
	RelativePath string    `gorm:"column:relative_path;not null;uniqueIndex" json:"relative_path"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Material) TableName() string { return "materials" }

func (m *Material) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Scope selects which materials a listing returns.
type Scope struct {
	Kind      ScopeKind
	ProjectID string
}

type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeGlobal
	ScopeProject
)

// ParseScope maps the wire filter ("all", "none" or a project id) to a Scope.
// An empty value yields def.
func ParseScope(raw string, def Scope) Scope {
	switch raw {
	case "":
		return def
	case "all":
		return Scope{Kind: ScopeAll}
	case "none":
		return Scope{Kind: ScopeGlobal}
	default:
		return Scope{Kind: ScopeProject, ProjectID: raw}
	}
}
