package registry

import "time"

// ServiceRecord is one entry in the directory. Records are never expired or
// deleted; a crashed service stays registered until something overwrites it.
type ServiceRecord struct {
	Name         string    `json:"serviceName"`
	Address      string    `json:"serviceUrl"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type RegisterRequest struct {
	ServiceName string `json:"serviceName" binding:"required"`
	ServiceURL  string `json:"serviceUrl" binding:"required"`
}

type RegisterResponse struct {
	Status             string   `json:"status"`
	Message            string   `json:"message"`
	RegisteredServices []string `json:"registeredServices"`
}

type LookupResponse struct {
	ServiceName string `json:"serviceName"`
	ServiceURL  string `json:"serviceUrl"`
}

type ListResponse struct {
	Services map[string]string `json:"services"`
}
