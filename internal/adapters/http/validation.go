package httpadapter

import (
	_ "embed"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openapiSpec []byte

func newRequestValidator() (routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, err
	}
	return legacy.NewRouter(doc)
}

// validationMiddleware rejects requests whose shape does not match the
// published contract before they reach a handler. Paths outside the contract
// (healthz, metrics) pass through untouched.
func (rt *Router) validationMiddleware(next http.Handler) http.Handler {
	router, err := newRequestValidator()
	if err != nil {
		slog.Error("openapi_validator_init_failed", "error", err)
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			if errors.Is(err, routers.ErrPathNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if errors.Is(err, routers.ErrMethodNotAllowed) {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			var requestErr *openapi3filter.RequestError
			if errors.As(err, &requestErr) {
				if rt.metrics != nil {
					rt.metrics.RecordValidationError(r.URL.Path)
				}
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": requestErr.Error()})
				return
			}
			if rt.metrics != nil {
				rt.metrics.RecordValidationError(r.URL.Path)
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
