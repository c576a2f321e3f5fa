package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// percentField resolves a units.Percent to its display number, so chart
// clients never see the zero-total flag unless they ask the REST API.
func percentField(get func(src interface{}) (float64, bool)) *graphql.Field {
	return &graphql.Field{
		Type: graphql.Float,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			if v, ok := get(p.Source); ok {
				return v, nil
			}
			return nil, nil
		},
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	classType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LandCoverClass",
		Fields: graphql.Fields{
			"code":  &graphql.Field{Type: graphql.String},
			"label": &graphql.Field{Type: graphql.String},
			"color": &graphql.Field{Type: graphql.String},
			"wetland": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Whether the class counts toward the wetlands aggregate",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if cl, ok := p.Source.(domain.LandCoverClass); ok {
						return domain.IsWetlandClass(cl.Code), nil
					}
					return nil, nil
				},
			},
		},
	})

	breakdownType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ResourceBreakdown",
		Fields: graphql.Fields{
			"stream_bank_miles":  &graphql.Field{Type: graphql.Float},
			"headwater_acres":    &graphql.Field{Type: graphql.Float},
			"active_river_acres": &graphql.Field{Type: graphql.Float},
			"wetland_acres":      &graphql.Field{Type: graphql.Float},
			"total_acres":        &graphql.Field{Type: graphql.Float},
			"headwater_percent": percentField(func(src interface{}) (float64, bool) {
				if b, ok := src.(*domain.ResourceBreakdown); ok {
					return b.HeadwaterPercent.Display(), true
				}
				return 0, false
			}),
			"active_river_percent": percentField(func(src interface{}) (float64, bool) {
				if b, ok := src.(*domain.ResourceBreakdown); ok {
					return b.ActiveRiverPercent.Display(), true
				}
				return 0, false
			}),
			"wetland_percent": percentField(func(src interface{}) (float64, bool) {
				if b, ok := src.(*domain.ResourceBreakdown); ok {
					return b.WetlandPercent.Display(), true
				}
				return 0, false
			}),
			"total_percent": percentField(func(src interface{}) (float64, bool) {
				if b, ok := src.(*domain.ResourceBreakdown); ok {
					return b.TotalPercent.Display(), true
				}
				return 0, false
			}),
		},
	})

	bandType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LandCoverBand",
		Fields: graphql.Fields{
			"class": &graphql.Field{Type: classType},
			"acres": &graphql.Field{Type: graphql.Float},
			"percent": percentField(func(src interface{}) (float64, bool) {
				if b, ok := src.(domain.LandCoverBand); ok {
					return b.Percent.Display(), true
				}
				return 0, false
			}),
		},
	})

	landStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LandCoverStats",
		Fields: graphql.Fields{
			"bands":         &graphql.Field{Type: graphql.NewList(bandType)},
			"total_acres":   &graphql.Field{Type: graphql.Float},
			"wetland_acres": &graphql.Field{Type: graphql.Float},
			"wetland_percent": percentField(func(src interface{}) (float64, bool) {
				if s, ok := src.(*domain.LandCoverStats); ok {
					return s.WetlandPercent.Display(), true
				}
				return 0, false
			}),
		},
	})

	analysisType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Analysis",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"sketch_id":        &graphql.Field{Type: graphql.String},
			"feature_id":       &graphql.Field{Type: graphql.String},
			"status":           &graphql.Field{Type: graphql.String},
			"error":            &graphql.Field{Type: graphql.String},
			"upstream_ms":      &graphql.Field{Type: graphql.Int},
			"created_at":       &graphql.Field{Type: graphql.DateTime},
			"completed_at":     &graphql.Field{Type: graphql.DateTime},
			"breakdown":        &graphql.Field{Type: breakdownType},
			"land_cover_stats": &graphql.Field{Type: landStatsType},
			"zoom": &graphql.Field{
				Type:        graphql.Int,
				Description: "Suggested map zoom for the watershed's size",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					report, ok := p.Source.(*domain.AnalysisReport)
					if !ok {
						return nil, nil
					}
					view, err := deps.Reports.BuildView(report)
					if err != nil {
						return nil, nil
					}
					return view.Map.Zoom, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"analysis": &graphql.Field{
				Type:        analysisType,
				Description: "Fetch a stored analysis report by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Reports.GetByID(p.Context, id)
				},
			},
			"analyses": &graphql.Field{
				Type:        graphql.NewList(analysisType),
				Description: "List recent analysis reports, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					reports, _, err := deps.Reports.List(p.Context, limit, offset)
					if err != nil {
						return nil, err
					}
					// Resolve against pointers, same as the single-report
					// query, so field resolvers see one source type.
					out := make([]*domain.AnalysisReport, len(reports))
					for i := range reports {
						out[i] = &reports[i]
					}
					return out, nil
				},
			},
			"landCoverClasses": &graphql.Field{
				Type:        graphql.NewList(classType),
				Description: "The NLCD land-cover class catalog",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return domain.LandCoverClasses(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
