//go:build !opencv

package cli

import (
	"sheetdiff/internal/compare"
	"sheetdiff/internal/config"
)

// backendName names the feature and warp implementation compiled in.
const backendName = "pure-go"

// backendOptions returns the orchestrator overrides for the compiled backend.
// The pure-Go stages are the orchestrator defaults.
func backendOptions(config.Config) ([]compare.Option, error) {
	return nil, nil
}
