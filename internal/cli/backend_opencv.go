//go:build opencv

package cli

import (
	"fmt"

	"sheetdiff/internal/alignment"
	"sheetdiff/internal/compare"
	"sheetdiff/internal/config"
	"sheetdiff/internal/features"
)

const backendName = "opencv"

// backendOptions swaps in the OpenCV extractor and warper.
func backendOptions(cfg config.Config) ([]compare.Option, error) {
	orb, err := features.NewCVORB(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("opencv extractor: %w", err)
	}
	return []compare.Option{
		compare.WithExtractor(orb),
		compare.WithWarper(alignment.NewCVWarper()),
	}, nil
}
