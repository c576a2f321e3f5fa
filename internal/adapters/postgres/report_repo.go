package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// ReportRepo implements ports.ReportRepository. Geometries are stored
// as PostGIS geography, summaries as JSONB.
type ReportRepo struct {
	db *DB
}

func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

func (r *ReportRepo) Create(ctx context.Context, report *domain.AnalysisReport) error {
	input, err := json.Marshal(report.Input)
	if err != nil {
		return fmt.Errorf("encode input geometry: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO analysis_reports (id, sketch_id, feature_id, status, input, error, created_at)
		VALUES ($1, $2, $3, $4, ST_GeomFromGeoJSON($5)::geography, $6, $7)
	`, report.ID, nilIfEmpty(report.SketchID), nilIfEmpty(report.FeatureID),
		string(report.Status), string(input), report.Error, report.CreatedAt)
	return err
}

func (r *ReportRepo) Update(ctx context.Context, report *domain.AnalysisReport) error {
	watershed, err := geomJSON(report.Watershed)
	if err != nil {
		return fmt.Errorf("encode watershed: %w", err)
	}
	resources, err := marshalNullable(report.Resources)
	if err != nil {
		return err
	}
	landCover, err := marshalNullable(report.LandCover)
	if err != nil {
		return err
	}
	breakdown, err := marshalNullable(report.Breakdown)
	if err != nil {
		return err
	}
	landStats, err := marshalNullable(report.LandStats)
	if err != nil {
		return err
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE analysis_reports
		SET status = $2,
		    watershed = ST_GeomFromGeoJSON($3)::geography,
		    resources = $4,
		    land_cover = $5,
		    breakdown = $6,
		    land_stats = $7,
		    error = $8,
		    upstream_ms = $9,
		    completed_at = $10
		WHERE id = $1
	`, report.ID, string(report.Status), watershed, resources, landCover,
		breakdown, landStats, report.Error, report.UpstreamMS, report.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

const reportColumns = `
	id, COALESCE(sketch_id, ''), COALESCE(feature_id, ''), status,
	ST_AsGeoJSON(input), ST_AsGeoJSON(watershed),
	resources, land_cover, breakdown, land_stats,
	error, upstream_ms, created_at, completed_at`

func (r *ReportRepo) GetByID(ctx context.Context, id string) (*domain.AnalysisReport, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM analysis_reports WHERE id = $1`, id)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	return report, err
}

func (r *ReportRepo) List(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM analysis_reports`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reportColumns+` FROM analysis_reports ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	return reports, total, err
}

func (r *ReportRepo) ListBySketch(ctx context.Context, sketchID string) ([]domain.AnalysisReport, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reportColumns+` FROM analysis_reports WHERE sketch_id = $1 ORDER BY created_at DESC`,
		sketchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

func (r *ReportRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM analysis_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

func collectReports(rows pgx.Rows) ([]domain.AnalysisReport, error) {
	var reports []domain.AnalysisReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func scanReport(row pgx.Row) (*domain.AnalysisReport, error) {
	var (
		report        domain.AnalysisReport
		status        string
		inputJSON     sql.NullString
		watershedJSON sql.NullString
		resources     []byte
		landCover     []byte
		breakdown     []byte
		landStats     []byte
		completedAt   sql.NullTime
	)
	if err := row.Scan(
		&report.ID, &report.SketchID, &report.FeatureID, &status,
		&inputJSON, &watershedJSON,
		&resources, &landCover, &breakdown, &landStats,
		&report.Error, &report.UpstreamMS, &report.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	report.Status = domain.AnalysisStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		report.CompletedAt = &t
	}

	if inputJSON.Valid {
		if err := json.Unmarshal([]byte(inputJSON.String), &report.Input); err != nil {
			return nil, fmt.Errorf("decode input geometry: %w", err)
		}
	}
	if watershedJSON.Valid {
		if err := json.Unmarshal([]byte(watershedJSON.String), &report.Watershed); err != nil {
			return nil, fmt.Errorf("decode watershed: %w", err)
		}
	}
	if len(resources) > 0 {
		report.Resources = &domain.ResourceSummary{}
		if err := json.Unmarshal(resources, report.Resources); err != nil {
			return nil, fmt.Errorf("decode resources: %w", err)
		}
	}
	if len(landCover) > 0 {
		if err := json.Unmarshal(landCover, &report.LandCover); err != nil {
			return nil, fmt.Errorf("decode land cover: %w", err)
		}
	}
	if len(breakdown) > 0 {
		report.Breakdown = &domain.ResourceBreakdown{}
		if err := json.Unmarshal(breakdown, report.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	if len(landStats) > 0 {
		report.LandStats = &domain.LandCoverStats{}
		if err := json.Unmarshal(landStats, report.LandStats); err != nil {
			return nil, fmt.Errorf("decode land stats: %w", err)
		}
	}
	return &report, nil
}

// geomJSON marshals a geometry for ST_GeomFromGeoJSON, passing NULL
// through for empty geometries.
func geomJSON(g domain.Geometry) (interface{}, error) {
	if g.Empty() {
		return nil, nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// marshalNullable marshals a value to JSONB, mapping nil to NULL.
func marshalNullable(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case *domain.ResourceSummary:
		if val == nil {
			return nil, nil
		}
	case *domain.ResourceBreakdown:
		if val == nil {
			return nil, nil
		}
	case *domain.LandCoverStats:
		if val == nil {
			return nil, nil
		}
	case domain.LandCoverSummary:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return string(data), nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
