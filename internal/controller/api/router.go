package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/fleetkeeper/fleetkeeper/internal/controller/api/handlers"
	"github.com/fleetkeeper/fleetkeeper/internal/controller/api/middleware"
	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
)

type RouterConfig struct {
	DB            *pgxpool.Pool
	JWTSecret     string
	JWTExpiry     time.Duration
	AdminUsername string
	AdminHash     []byte
	Fleet         *fleet.Store
	Lifecycle     *fleet.Lifecycle
	Queue         *queue.Queue
	Policies      *policy.Store
	Bus           event.Bus
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("FleetKeeper API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Demand-driven retention controller for elastic build agents"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	api := humaecho.NewWithGroup(e, v1, config)

	authMw := middleware.Auth(cfg.JWTSecret)
	secured := []map[string][]string{{"BearerAuth": {}}}

	authHandler := handlers.NewAuthHandler(cfg.AdminUsername, cfg.AdminHash, cfg.JWTSecret, cfg.JWTExpiry)
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	agentsHandler := handlers.NewAgentsHandler(cfg.Fleet, cfg.Lifecycle)
	huma.Register(api, huma.Operation{
		OperationID: "agents-list",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List all agents",
		Tags:        []string{"Agents"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, agentsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "agents-get",
		Method:      http.MethodGet,
		Path:        "/agents/{name}",
		Summary:     "Get agent details",
		Tags:        []string{"Agents"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, agentsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID:   "agents-connect",
		Method:        http.MethodPost,
		Path:          "/agents/{name}/connect",
		Summary:       "Request an agent launch",
		Tags:          []string{"Agents"},
		Security:      secured,
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusAccepted,
	}, agentsHandler.Connect)

	huma.Register(api, huma.Operation{
		OperationID: "agents-disconnect",
		Method:      http.MethodPost,
		Path:        "/agents/{name}/disconnect",
		Summary:     "Disconnect an agent",
		Tags:        []string{"Agents"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, agentsHandler.Disconnect)

	policiesHandler := handlers.NewPoliciesHandler(cfg.Fleet, cfg.Policies, cfg.DB)
	huma.Register(api, huma.Operation{
		OperationID: "policies-get",
		Method:      http.MethodGet,
		Path:        "/agents/{name}/policy",
		Summary:     "Get the effective retention policy for an agent",
		Tags:        []string{"Policies"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, policiesHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "policies-put",
		Method:      http.MethodPut,
		Path:        "/agents/{name}/policy",
		Summary:     "Set a per-agent retention override",
		Tags:        []string{"Policies"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, policiesHandler.Put)

	huma.Register(api, huma.Operation{
		OperationID: "policies-delete",
		Method:      http.MethodDelete,
		Path:        "/agents/{name}/policy",
		Summary:     "Remove a per-agent retention override",
		Tags:        []string{"Policies"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, policiesHandler.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "policies-validate",
		Method:      http.MethodPost,
		Path:        "/policies/validate",
		Summary:     "Validate a conflict regex without storing it",
		Tags:        []string{"Policies"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, policiesHandler.ValidatePattern)

	queueHandler := handlers.NewQueueHandler(cfg.Fleet, cfg.Queue, cfg.Bus)
	huma.Register(api, huma.Operation{
		OperationID: "queue-list",
		Method:      http.MethodGet,
		Path:        "/queue",
		Summary:     "List queued work items",
		Tags:        []string{"Queue"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, queueHandler.List)

	huma.Register(api, huma.Operation{
		OperationID:   "queue-enqueue",
		Method:        http.MethodPost,
		Path:          "/queue",
		Summary:       "Enqueue a work item",
		Tags:          []string{"Queue"},
		Security:      secured,
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusCreated,
	}, queueHandler.Enqueue)

	verdictsHandler := handlers.NewVerdictsHandler(cfg.DB)
	huma.Register(api, huma.Operation{
		OperationID: "verdicts-list",
		Method:      http.MethodGet,
		Path:        "/verdicts",
		Summary:     "List recent retention verdicts",
		Tags:        []string{"Verdicts"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, verdictsHandler.List)
}
