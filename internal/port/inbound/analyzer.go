// Package inbound defines the inbound port of the analysis core.
// Inbound adapters (HTTP, CLI) call this interface.
package inbound

import (
	"context"
	"encoding/json"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
)

// Analyzer runs one analysis transaction and returns the engine's raw result.
// Errors are classified with analysis.KindOf.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (json.RawMessage, error)
}
