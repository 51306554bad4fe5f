package transform

import (
	"fmt"

	"distiller/internal/config"
	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/tools"
)

// NewStageHandler builds the production handler for a stage, wiring the
// external tool clients the stage needs.
func NewStageHandler(cfg *config.Config, stage manifest.Stage) (Handler, error) {
	switch stage {
	case manifest.StageHTML:
		return NewHTML(cfg)
	case manifest.StagePDF:
		engine, err := tools.NewPDFEngine(cfg)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pdf", "init", "configure pdf engine", err)
		}
		return NewPDF(engine), nil
	case manifest.StageALTO:
		extractor, err := tools.NewPageText(cfg)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "alto", "init", "configure text extractor", err)
		}
		return NewALTO(cfg, extractor), nil
	case manifest.StageMODS:
		return NewMODS(cfg), nil
	case manifest.StageImage:
		rasterizer, err := tools.NewRasterizer(cfg)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "image", "init", "configure rasterizer", err)
		}
		return NewImage(rasterizer), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "transform", "init",
			fmt.Sprintf("unknown stage %q", stage), nil)
	}
}
