package bus

import (
	"context"
	"time"
)

type EventType string

const (
	EventTemplateSaved       EventType = "template.saved"
	EventTemplateDeleted     EventType = "template.deleted"
	EventPageImageSaved      EventType = "page_image.saved"
	EventPageImageDeleted    EventType = "page_image.deleted"
	EventMaterialCreated     EventType = "material.created"
	EventMaterialDeleted     EventType = "material.deleted"
	EventProjectDeleted      EventType = "project.deleted"
	EventUserTemplateSaved   EventType = "user_template.saved"
	EventUserTemplateDeleted EventType = "user_template.deleted"
)

// AssetEvent announces a change to stored assets. Paths are relative to the
// storage root.
type AssetEvent struct {
	Type         EventType `json:"type"`
	ProjectID    string    `json:"project_id,omitempty"`
	TemplateID   string    `json:"template_id,omitempty"`
	MaterialID   string    `json:"material_id,omitempty"`
	RelativePath string    `json:"relative_path,omitempty"`
	URL          string    `json:"url,omitempty"`
	Count        int       `json:"count,omitempty"`
	At           time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev AssetEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev AssetEvent)) error
	Close() error
}
