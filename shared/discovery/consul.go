package discovery

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
)

// Registration describes a service instance to announce to consul.
type Registration struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// Registry registers services with the consul catalog.
type Registry struct {
	client *consulapi.Client
	logger *zerolog.Logger
}

// NewRegistry connects to the consul agent at the given address.
func NewRegistry(addr string, logger *zerolog.Logger) (*Registry, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &Registry{client: client, logger: logger}, nil
}

// Register announces the service with an HTTP health check.
func (r *Registry) Register(reg Registration) error {
	check := &consulapi.AgentServiceCheck{
		HTTP:                           fmt.Sprintf("http://%s:%d/healthz", reg.Address, reg.Port),
		Interval:                       "10s",
		Timeout:                        "3s",
		DeregisterCriticalServiceAfter: "1m",
	}

	err := r.client.Agent().ServiceRegister(&consulapi.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
		Check:   check,
	})
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	r.logger.Info().Str("service", reg.Name).Str("id", reg.ID).Msg("registered with consul")
	return nil
}

// Deregister removes the service instance from the catalog.
func (r *Registry) Deregister(id string) error {
	return r.client.Agent().ServiceDeregister(id)
}
