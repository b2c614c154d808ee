// Package render turns part instances into presentable blocks, using a
// bespoke renderer when one is registered for the part code and a
// placeholder chosen by functional type otherwise.
package render

import (
	"github.com/google/uuid"
)

// BlockKind identifies how a block is presented.
type BlockKind string

const (
	BlockKindComposite    BlockKind = "composite"     // FULLSTACK fallback
	BlockKindMetricTile   BlockKind = "metric_tile"   // WIDGET fallback
	BlockKindInputControl BlockKind = "input_control" // FORM_INPUT fallback
	BlockKindCustom       BlockKind = "custom"        // bespoke renderer output
	BlockKindError        BlockKind = "error"         // isolated failure placeholder
)

// Block is the rendered form of one part instance.
type Block struct {
	InstanceID uuid.UUID      `json:"instance_id"`
	PartCode   string         `json:"part_code"`
	Kind       BlockKind      `json:"kind"`
	Title      string         `json:"title"`
	Body       string         `json:"body,omitempty"`
	Visible    bool           `json:"visible"`
	StyleClass string         `json:"style_class,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// IsError reports whether the block is an error placeholder.
func (b Block) IsError() bool {
	return b.Kind == BlockKindError
}
