package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"kanban/internal/board"
)

// Config for the HTTP view handler.
type Config struct {
	Store         *board.Store
	BasePath      string
	Auth          AuthConfig
	AllowedOrigin string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"task_not_found"`
	Message string         `json:"message" example:"task not found: \"42\""`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the board to a view layer.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	basePath := normalizeBasePath(cfg.BasePath)
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Kanban Board API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group, cfg.Store)
	registerBoard(group, cfg.Store)
	registerUsers(group, cfg.Store)
	registerStream(router, basePath, cfg.Store, cfg.AllowedOrigin)
	registerOpenAPI(router, api, basePath)
	router.Handle("/metrics", promhttp.Handler())

	return router, nil
}

func normalizeBasePath(basePath string) string {
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/")
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, board.ErrTaskNotFound):
		return newAPIError(http.StatusNotFound, "task_not_found", msg, nil)
	case errors.Is(err, board.ErrColumnNotFound):
		return newAPIError(http.StatusNotFound, "column_not_found", msg, nil)
	case errors.Is(err, board.ErrNotTracking):
		return newAPIError(http.StatusConflict, "not_tracking", msg, nil)
	case errors.Is(err, board.ErrInvalidTask), errors.Is(err, errBadOperation):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, board.ErrBoardFailed):
		return newAPIError(http.StatusServiceUnavailable, "board_unavailable", msg, nil)
	default:
		log.WithError(err).Error("unhandled request error")
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = sonic.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Kanban Board API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; when the server has a JWT secret.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, store *board.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		body := HealthResponse{Status: "ok", Initialized: store.Initialized(), Loading: store.Loading()}
		if err := store.Err(); err != nil {
			body.Status = "failed"
			body.Error = err.Error()
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: body}, nil
	})
}

func registerBoard(api huma.API, store *board.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Current board",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(store)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dispatch-operation",
		Method:      http.MethodPost,
		Path:        "/board/operations",
		Summary:     "Apply a board operation",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body OperationRequest `json:"body"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		op, err := input.Body.operation()
		if err != nil {
			return nil, handleError(err)
		}
		if err := store.Dispatch(ctx, op); err != nil {
			return nil, handleError(err)
		}
		if u, ok := op.(board.Unknown); ok {
			log.WithField("operation", u.Type).Warn("ignored unknown operation")
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(store)}, nil
	})
}

func registerUsers(api huma.API, store *board.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Resolve a user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		dir := store.Directory()
		u, ok := dir.User(input.UserID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "user_not_found", fmt.Sprintf("user %q not found", input.UserID), nil)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{ID: u.ID, Name: u.Name, Avatar: dir.Avatar(u.ID)}}, nil
	})
}
