package consul

import (
	"fmt"
	"os"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

// NewClient connects to the consul agent configured through CONSUL_HTTP_ADDR
// (falls back to the client library default).
func NewClient() (*consulapi.Client, error) {
	config := consulapi.DefaultConfig()
	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return client, nil
}

// GetServiceAddress returns the address and port of a healthy instance of the
// named service.
func GetServiceAddress(client *consulapi.Client, serviceName string) (string, int, error) {
	services, _, err := client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to query consul for service %s: %w", serviceName, err)
	}
	if len(services) == 0 {
		return "", 0, fmt.Errorf("no healthy instances of service %s", serviceName)
	}

	svc := services[0].Service
	address := svc.Address
	if address == "" {
		address = services[0].Node.Address
	}
	return address, svc.Port, nil
}

// RegisterService registers this service with consul so the gateway can
// discover it. Address and port come from the environment.
func RegisterService(client *consulapi.Client, serviceName string) error {
	address := os.Getenv("SERVICE_ADDRESS")
	if address == "" {
		address = "localhost"
	}
	port, err := strconv.Atoi(os.Getenv("SERVICE_PORT"))
	if err != nil {
		return fmt.Errorf("invalid SERVICE_PORT: %w", err)
	}

	registration := &consulapi.AgentServiceRegistration{
		ID:      serviceName + "-" + address,
		Name:    serviceName,
		Address: address,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/ping", address, port),
			Interval: "10s",
			Timeout:  "2s",
		},
	}

	if err := client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service %s: %w", serviceName, err)
	}
	return nil
}
