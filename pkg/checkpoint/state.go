// Package checkpoint persists the resume position of aborted conversions so
// a later invocation can continue without the user copying the offset.
package checkpoint

import "github.com/Sumatoshi-tech/plotconv/pkg/shuffle"

// Conversion modes recorded with a checkpoint.
const (
	ModeInline  = "inline"
	ModeOutline = "outline"
)

// Record is the stored state of one aborted conversion.
type Record struct {
	Version   int    `json:"version"`
	Path      string `json:"path"`
	Mode      string `json:"mode"`
	Output    string `json:"output,omitempty"`
	Factor    int    `json:"factor"`
	Nonces    int64  `json:"nonces"`
	Position  int64  `json:"position"`
	CreatedAt string `json:"created_at"`
}

// Checkpoint returns the engine checkpoint held by the record.
func (r *Record) Checkpoint() *shuffle.Checkpoint {
	return &shuffle.Checkpoint{Position: r.Position}
}
