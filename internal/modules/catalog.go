// Package modules builds the concrete router modules a hub serves and the
// methods they share.
package modules

import (
	"fmt"
	"log/slog"
	"strings"

	"nuhub/internal/router"
)

// Spec describes one module to build.
type Spec struct {
	Name            string
	IdentityRouting bool
}

// ParseSpecs reads a comma separated module list such as
// "synth,lights,groups:routed".
func ParseSpecs(list string) ([]Spec, error) {
	var specs []Spec
	seen := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, mode, _ := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, "/ \t#*?[]{}") {
			return nil, fmt.Errorf("invalid module name %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("module %q declared twice", name)
		}
		seen[name] = true

		spec := Spec{Name: name}
		switch strings.TrimSpace(mode) {
		case "", "default":
		case "routed":
			spec.IdentityRouting = true
		default:
			return nil, fmt.Errorf("unknown routing mode %q for module %q", mode, name)
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no modules configured")
	}
	return specs, nil
}

// Build creates the module for spec with the shared method table.
func Build(spec Spec, transport router.Transport, logger *slog.Logger, observers ...router.Observer) *router.Module {
	opts := []router.Option{
		router.WithLogger(logger),
		router.WithMethod(MethodResync, Resync),
	}
	if spec.IdentityRouting {
		opts = append(opts, router.WithIdentityRouting())
	}
	for _, o := range observers {
		opts = append(opts, router.WithObserver(o))
	}
	return router.NewModule(spec.Name, transport, opts...)
}
