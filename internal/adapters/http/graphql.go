package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to the grid session and tracker.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	tileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tile",
		Fields: graphql.Fields{
			"index":  &graphql.Field{Type: graphql.Int},
			"center": &graphql.Field{Type: geoPointType},
			"corners": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t := p.Source.(domain.Tile)
					return t.Corners[:], nil
				},
			},
			"claimed_color": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t := p.Source.(domain.Tile)
					if !t.Claimed() {
						return nil, nil
					}
					return string(t.ClaimedColor), nil
				},
			},
			"width_meters": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					w, _ := geospatial.TileDimensionsMeters(p.Source.(domain.Tile))
					return w, nil
				},
			},
			"height_meters": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					_, h := geospatial.TileDimensionsMeters(p.Source.(domain.Tile))
					return h, nil
				},
			},
		},
	})

	gridType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Grid",
		Fields: graphql.Fields{
			"origin":  &graphql.Field{Type: geoPointType},
			"version": &graphql.Field{Type: graphql.Int},
			"tiles":   &graphql.Field{Type: graphql.NewList(tileType)},
			"generated_at": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.Grid).GeneratedAt.Format(time.RFC3339Nano), nil
				},
			},
		},
	})

	observerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Observer",
		Fields: graphql.Fields{
			"raw_position": &graphql.Field{Type: geoPointType},
			"heading":      &graphql.Field{Type: graphql.Float},
			"follow_mode":  &graphql.Field{Type: graphql.Boolean},
			"status":       &graphql.Field{Type: graphql.String},
			"state": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.ObserverState).State.String(), nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"grid": &graphql.Field{
				Type:        gridType,
				Description: "Current tile grid, null before the first fix",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					grid, ok := deps.Session.Snapshot()
					if !ok {
						return nil, nil
					}
					return grid, nil
				},
			},
			"tile": &graphql.Field{
				Type:        tileType,
				Description: "Get a tile by index",
				Args: graphql.FieldConfigArgument{
					"index": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					index := p.Args["index"].(int)
					grid, ok := deps.Session.Snapshot()
					if !ok || index < 0 || index >= len(grid.Tiles) {
						return nil, domain.ErrIndexOutOfRange
					}
					return grid.Tiles[index], nil
				},
			},
			"observer": &graphql.Field{
				Type:        observerType,
				Description: "Observer marker and camera state",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Tracker.Observer(), nil
				},
			},
			"selectedColor": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(deps.Session.SelectedColor()), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"claimTile": &graphql.Field{
				Type:        tileType,
				Description: "Claim a tile; without color the selected color is used",
				Args: graphql.FieldConfigArgument{
					"index": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"color": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					index := p.Args["index"].(int)
					color, _ := p.Args["color"].(string)
					var (
						tile domain.Tile
						err  error
					)
					if color == "" {
						tile, _, err = deps.Session.ClaimWithSelected(p.Context, index)
					} else {
						tile, _, err = deps.Session.ClaimTile(p.Context, index, domain.Color(color))
					}
					if err != nil {
						return nil, err
					}
					return tile, nil
				},
			},
			"selectColor": &graphql.Field{
				Type: graphql.String,
				Args: graphql.FieldConfigArgument{
					"color": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					color := domain.Color(p.Args["color"].(string))
					if err := deps.Session.SelectColor(color); err != nil {
						return nil, err
					}
					return string(color), nil
				},
			},
			"setFollow": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"enabled": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					on := p.Args["enabled"].(bool)
					deps.Tracker.SetFollow(p.Context, on)
					return on, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
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
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
