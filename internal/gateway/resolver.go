package gateway

import (
	"context"
	"fmt"

	pkgerrors "nimbus/pkg/errors"
)

// Directory is the lookup side of the discovery directory, narrowed to what
// the gateway needs.
type Directory interface {
	Lookup(ctx context.Context, serviceName string) (string, error)
}

// Resolver turns a service name into an address. The static table from
// configuration takes precedence; anything else is resolved dynamically
// through the directory.
type Resolver struct {
	static    map[string]string
	directory Directory
}

func NewResolver(static map[string]string, directory Directory) *Resolver {
	if static == nil {
		static = make(map[string]string)
	}
	return &Resolver{static: static, directory: directory}
}

func (r *Resolver) Resolve(ctx context.Context, serviceName string) (string, error) {
	if address, ok := r.static[serviceName]; ok {
		return address, nil
	}

	if r.directory == nil {
		return "", pkgerrors.ErrServiceUnavailable.
			WithDetail("message", fmt.Sprintf("no address configured for service %q", serviceName))
	}

	address, err := r.directory.Lookup(ctx, serviceName)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return "", pkgerrors.ErrServiceUnavailable.WithCause(err).
				WithDetail("message", fmt.Sprintf("service %q not registered", serviceName))
		}
		return "", err
	}
	return address, nil
}
