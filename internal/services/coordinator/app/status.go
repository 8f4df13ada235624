package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/timeouts"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
	"golang.org/x/sync/errgroup"
)

// Collaborator is one service whose health endpoint the coordinator reports.
type Collaborator struct {
	Name      string
	HealthURL string
}

// statusProber checks collaborator health endpoints in parallel.
type statusProber struct {
	collaborators []Collaborator
	httpClient    *http.Client
	timeout       time.Duration
}

func newStatusProber(collaborators []Collaborator, httpClient *http.Client) *statusProber {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &statusProber{
		collaborators: collaborators,
		httpClient:    httpClient,
		timeout:       timeouts.HealthProbe,
	}
}

// probe returns one status per collaborator in configuration order. A failed
// probe is reported, never returned as an error.
func (p *statusProber) probe(ctx context.Context) []coordinatorapi.ServiceStatus {
	statuses := make([]coordinatorapi.ServiceStatus, len(p.collaborators))
	var group errgroup.Group
	for i, collaborator := range p.collaborators {
		group.Go(func() error {
			statuses[i] = p.check(ctx, collaborator)
			return nil
		})
	}
	_ = group.Wait()
	return statuses
}

func (p *statusProber) check(ctx context.Context, collaborator Collaborator) coordinatorapi.ServiceStatus {
	status := coordinatorapi.ServiceStatus{Name: collaborator.Name, Status: coordinatorapi.StatusUnhealthy}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, collaborator.HealthURL, nil)
	if err != nil {
		status.Error = fmt.Sprintf("build request: %v", err)
		return status
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSummaryBodyBytes))
	if err != nil {
		status.Error = fmt.Sprintf("read body: %v", err)
		return status
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status.Error = fmt.Sprintf("health status %d", resp.StatusCode)
		return status
	}
	status.Status = coordinatorapi.StatusHealthy
	if json.Valid(body) {
		status.Data = body
	}
	return status
}
