package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/hydroapi"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/logging"
)

// One-shot pipeline run: GeoJSON geometry in, finished report JSON out.
// Same code path as the API, minus the server.
func main() {
	var (
		pretty   = flag.Bool("pretty", false, "indent the report JSON")
		withView = flag.Bool("view", false, "include the render-ready view model")
		quiet    = flag.Bool("quiet", false, "suppress progress logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: analyze [flags] [geometry.json]\n")
		fmt.Fprintf(os.Stderr, "reads a GeoJSON geometry (or Feature) from the file, or stdin when omitted\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load("basinscope-analyze")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := "info"
	if *quiet {
		logLevel = "error"
	}
	logging.Setup("basinscope-analyze", logLevel, "text")

	geom, err := readGeometry(flag.Arg(0))
	if err != nil {
		log.Fatalf("input: %v", err)
	}

	// Interrupt aborts the in-flight upstream call
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hydro := hydroapi.New(cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.Timeout)*time.Second)
	analysis := usecases.NewAnalysisService(hydro, nil, nil, nil, 0)

	report, err := analysis.Run(ctx, geom, "", "")
	if err != nil {
		log.Fatalf("analysis: %v", err)
	}

	out := struct {
		*domain.AnalysisReport
		View *domain.ReportView `json:"view,omitempty"`
	}{AnalysisReport: report}

	if *withView {
		reports := usecases.NewReportService(nil, cfg.Map.Zoom)
		view, err := reports.BuildView(report)
		if err != nil {
			log.Fatalf("view: %v", err)
		}
		out.View = view
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode report: %v", err)
	}
}

// readGeometry loads a bare GeoJSON geometry, falling back to the
// geometry member of a Feature, from the file or stdin when path is
// empty or "-".
func readGeometry(path string) (domain.Geometry, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Geometry{}, err
	}

	var geom domain.Geometry
	if err := json.Unmarshal(data, &geom); err == nil {
		return geom, nil
	}

	var feature struct {
		Geometry domain.Geometry `json:"geometry"`
	}
	if err := json.Unmarshal(data, &feature); err != nil {
		return domain.Geometry{}, fmt.Errorf("not a GeoJSON geometry or feature: %w", err)
	}
	if feature.Geometry.Empty() {
		return domain.Geometry{}, domain.ErrEmptyGeometry
	}
	return feature.Geometry, nil
}
