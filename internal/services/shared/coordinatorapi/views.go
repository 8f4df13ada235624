// Package coordinatorapi defines the JSON views served by the coordinator's
// read surface and the summary payloads collaborators post back to it.
package coordinatorapi

import (
	"encoding/json"
	"time"
)

// Paths of the coordinator HTTP surface.
const (
	PathUsers             = "/api/users"
	PathMessages          = "/api/messages"
	PathSessions          = "/api/sessions"
	PathNotificationStats = "/api/microservice/notification-stats"
	PathAnalyticsData     = "/api/microservice/analytics-data"
	PathServicesStatus    = "/api/microservices/status"
)

// Role values on the wire.
const (
	RoleHost   = "host"
	RoleJoiner = "joiner"
)

// Participant is one registry entry.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Online bool   `json:"online"`
}

// Message is one retained chat entry.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserRole  string    `json:"user_role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Member summarizes a participant within a session.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is one directory entry.
type Session struct {
	ID          string    `json:"id"`
	Host        Member    `json:"host"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Members     []Member  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ack is the reply to a collaborator summary post.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ServiceStatus is the health of one collaborator as seen by the coordinator.
type ServiceStatus struct {
	Name   string          `json:"name"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusReport is the reply of the services status endpoint.
type StatusReport struct {
	Success  bool            `json:"success"`
	Services []ServiceStatus `json:"services"`
}

// Service status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)
