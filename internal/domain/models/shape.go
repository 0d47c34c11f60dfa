package models

import "time"

// Shape is a user-drawn chart annotation.
type Shape struct {
	ID        int64            `json:"id"`
	Symbol    string           `json:"symbol"`
	ShapeType string           `json:"shape_type"`
	Points    []map[string]any `json:"points"`
	Options   map[string]any   `json:"options"`
	Sig       string           `json:"-"`
	CreatedAt time.Time        `json:"created_at"`
}

// ShapeCreateRequest is the POST /shapes body.
type ShapeCreateRequest struct {
	Symbol    string           `json:"symbol" validate:"required"`
	ShapeType string           `json:"shape_type" validate:"required"`
	Points    []map[string]any `json:"points" validate:"required"`
	Options   map[string]any   `json:"options"`
}

// ShapeUpdateRequest is the PUT /shapes/:id body; nil fields are left untouched.
type ShapeUpdateRequest struct {
	ID        int64            `param:"id" validate:"gt=0"`
	Symbol    *string          `json:"symbol"`
	ShapeType *string          `json:"shape_type"`
	Points    []map[string]any `json:"points"`
	Options   map[string]any   `json:"options"`
}

// ShapeListRequest is the GET /shapes query.
type ShapeListRequest struct {
	Symbol string `query:"symbol"`
}

// ShapeList wraps listed shapes.
type ShapeList struct {
	Items []Shape `json:"items"`
}

// ShapeEvent is published when a shape changes.
type ShapeEvent struct {
	Event string    `json:"event"` // "created", "updated", "deleted"
	Shape Shape     `json:"shape"`
	At    time.Time `json:"at"`
}
