package http

import (
	"github.com/nats-io/nats.go"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/postgres"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/valkey"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sketches *usecases.SketchService
	Analyses *usecases.AnalysisService
	Reports  *usecases.ReportService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache

	// Map configures the drawing widget served to clients; Upstream
	// points at the hydrology service the analyses call.
	Map      config.MapConfig
	Upstream config.UpstreamConfig

	// WebDir is the static web app root; empty disables it.
	WebDir string
}
