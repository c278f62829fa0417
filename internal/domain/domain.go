package domain

import "github.com/yungbote/slidedeck-backend/internal/domain/materials"

type Material = materials.Material
type MaterialScope = materials.Scope
type MaterialScopeKind = materials.ScopeKind

const (
	MaterialScopeAll     = materials.ScopeAll
	MaterialScopeGlobal  = materials.ScopeGlobal
	MaterialScopeProject = materials.ScopeProject
)
