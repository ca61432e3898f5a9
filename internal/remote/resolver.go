package remote

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"storefront-service/internal/consul"
)

// Resolver maps a backend service name to a base URL. The production resolver
// goes through consul; tests plug in a StaticResolver pointing at httptest
// servers.
type Resolver interface {
	Resolve(serviceName string) (string, error)
}

// ConsulResolver resolves services through the consul catalog.
type ConsulResolver struct {
	client *consulapi.Client
}

func NewConsulResolver(client *consulapi.Client) *ConsulResolver {
	return &ConsulResolver{client: client}
}

func (r *ConsulResolver) Resolve(serviceName string) (string, error) {
	address, port, err := consul.GetServiceAddress(r.client, serviceName)
	if err != nil {
		return "", fmt.Errorf("%s service unavailable: %w", serviceName, err)
	}
	return fmt.Sprintf("http://%s:%d", address, port), nil
}

// StaticResolver serves fixed base URLs, keyed by service name.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(serviceName string) (string, error) {
	base, ok := r[serviceName]
	if !ok {
		return "", fmt.Errorf("no address configured for service %s", serviceName)
	}
	return base, nil
}
