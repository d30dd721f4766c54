// internal/providers/multiplex/provider.go
// Package multiplex routes generation requests across an ordered set of
// backends, falling through to the next one when a backend fails.
package multiplex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
)

// Route pairs a generator with the model it should be asked for.
// An empty Model keeps the model from the incoming request.
type Route struct {
	Generator providers.Generator
	Model     string
}

// Generator tries each route in order and returns the first answer.
type Generator struct {
	routes []Route
}

// New constructs a Generator. The first route is the primary backend.
func New(routes ...Route) (*Generator, error) {
	var kept []Route
	for _, r := range routes {
		if r.Generator != nil {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("multiplex: at least one generator is required")
	}
	return &Generator{routes: kept}, nil
}

// Name lists the routed backends, primary first.
func (g *Generator) Name() string {
	names := make([]string, len(g.routes))
	for i, r := range g.routes {
		names[i] = r.Generator.Name()
	}
	return strings.Join(names, ">")
}

// Generate returns the first successful answer. A cancelled or expired
// context stops the fall-through immediately.
func (g *Generator) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	var errs []error
	for i, route := range g.routes {
		routed := req
		if route.Model != "" {
			routed.Model = route.Model
		}
		out, err := route.Generator.Generate(ctx, routed)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", route.Generator.Name(), err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			break
		}
		if i < len(g.routes)-1 {
			logging.Logger().Warn("generator failed, trying next", "backend", route.Generator.Name(), "err", err)
		}
	}
	return "", errors.Join(errs...)
}
