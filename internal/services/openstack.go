package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// OpenStackService queries the Keystone and Nova APIs for hypervisor metrics
type OpenStackService struct {
	cfg        config.OpenStackConfig
	httpClient *http.Client

	mu         sync.RWMutex
	token      string
	computeURL string
}

// Hypervisor is the subset of the Nova hypervisor detail we consume
type Hypervisor struct {
	Hostname       string `json:"hypervisor_hostname"`
	HypervisorType string `json:"hypervisor_type"`
	State          string `json:"state"`
	Status         string `json:"status"`
	VCPUs          int    `json:"vcpus"`
	VCPUsUsed      int    `json:"vcpus_used"`
	MemoryMB       int    `json:"memory_mb"`
	MemoryMBUsed   int    `json:"memory_mb_used"`
	LocalGB        int    `json:"local_gb"`
	LocalGBUsed    int    `json:"local_gb_used"`
	RunningVMs     int    `json:"running_vms"`
}

// Server is the subset of the Nova server detail we consume
type Server struct {
	ID                 string `json:"id"`
	HypervisorHostname string `json:"OS-EXT-SRV-ATTR:hypervisor_hostname"`
	Flavor             struct {
		ID string `json:"id"`
	} `json:"flavor"`
}

// Flavor is the subset of the Nova flavor detail we consume
type Flavor struct {
	ID    string `json:"id"`
	VCPUs int    `json:"vcpus"`
	RAM   int    `json:"ram"`
}

// NewOpenStackService creates a new OpenStack API client
func NewOpenStackService(cfg config.OpenStackConfig) *OpenStackService {
	return &OpenStackService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Authenticate obtains a Keystone token and resolves the compute endpoint
// from the service catalog
func (s *OpenStackService) Authenticate(ctx context.Context) error {
	authBody := map[string]interface{}{
		"auth": map[string]interface{}{
			"identity": map[string]interface{}{
				"methods": []string{"password"},
				"password": map[string]interface{}{
					"user": map[string]interface{}{
						"name":     s.cfg.Username,
						"password": s.cfg.Password,
						"domain":   map[string]string{"name": s.cfg.UserDomain},
					},
				},
			},
			"scope": map[string]interface{}{
				"project": map[string]interface{}{
					"name":   s.cfg.ProjectName,
					"domain": map[string]string{"name": s.cfg.ProjectDomain},
				},
			},
		},
	}

	payload, err := json.Marshal(authBody)
	if err != nil {
		return fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.AuthURL+"/auth/tokens", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("authentication failed: %d - %s", resp.StatusCode, string(body))
	}

	token := resp.Header.Get("X-Subject-Token")
	if token == "" {
		return fmt.Errorf("authentication response missing subject token")
	}

	var catalog struct {
		Token struct {
			Catalog []struct {
				Type      string `json:"type"`
				Endpoints []struct {
					Interface string `json:"interface"`
					URL       string `json:"url"`
				} `json:"endpoints"`
			} `json:"catalog"`
		} `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return fmt.Errorf("failed to parse service catalog: %w", err)
	}

	var computeURL string
	for _, svc := range catalog.Token.Catalog {
		if svc.Type != "compute" {
			continue
		}
		for _, ep := range svc.Endpoints {
			if ep.Interface == "public" {
				computeURL = ep.URL
				break
			}
		}
	}
	if computeURL == "" {
		return fmt.Errorf("no public compute endpoint in service catalog")
	}

	s.mu.Lock()
	s.token = token
	s.computeURL = computeURL
	s.mu.Unlock()

	return nil
}

// get performs an authenticated GET against the compute API, re-authenticating
// once on 401
func (s *OpenStackService) get(ctx context.Context, path string, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		s.mu.RLock()
		token, computeURL := s.token, s.computeURL
		s.mu.RUnlock()

		if token == "" {
			if err := s.Authenticate(ctx); err != nil {
				return err
			}
			s.mu.RLock()
			token, computeURL = s.token, s.computeURL
			s.mu.RUnlock()
		}

		req, err := http.NewRequestWithContext(ctx, "GET", computeURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Auth-Token", token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to query compute API: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			s.mu.Lock()
			s.token = ""
			s.mu.Unlock()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("compute API returned %d for %s", resp.StatusCode, path)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("authentication retried and failed for %s", path)
}

// GetHypervisors returns hypervisor details
func (s *OpenStackService) GetHypervisors(ctx context.Context) ([]Hypervisor, error) {
	var result struct {
		Hypervisors []Hypervisor `json:"hypervisors"`
	}
	if err := s.get(ctx, "/os-hypervisors/detail", &result); err != nil {
		return nil, err
	}
	return result.Hypervisors, nil
}

// GetInstances returns server details across the project
func (s *OpenStackService) GetInstances(ctx context.Context) ([]Server, error) {
	var result struct {
		Servers []Server `json:"servers"`
	}
	if err := s.get(ctx, "/servers/detail", &result); err != nil {
		return nil, err
	}
	return result.Servers, nil
}

// GetFlavors returns flavor details
func (s *OpenStackService) GetFlavors(ctx context.Context) ([]Flavor, error) {
	var result struct {
		Flavors []Flavor `json:"flavors"`
	}
	if err := s.get(ctx, "/flavors/detail", &result); err != nil {
		return nil, err
	}
	return result.Flavors, nil
}

// CheckConnectivity checks whether the compute API is reachable
func (s *OpenStackService) CheckConnectivity(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result struct {
		Hypervisors []Hypervisor `json:"hypervisors"`
	}
	return s.get(ctx, "/os-hypervisors/detail", &result) == nil
}

// CollectSamples gathers one validated metric sample per hypervisor. Samples
// failing validation are skipped and reported alongside the good ones.
func (s *OpenStackService) CollectSamples(ctx context.Context) ([]models.MetricSample, []error) {
	hypervisors, err := s.GetHypervisors(ctx)
	if err != nil {
		return nil, []error{err}
	}

	// Instance capacity rollups are best-effort enrichment
	requestedVCPUs, requestedMemory := s.instanceRollup(ctx)

	now := time.Now().UTC()
	samples := make([]models.MetricSample, 0, len(hypervisors))
	var errs []error

	for _, h := range hypervisors {
		sample, err := models.NewMetricSample(
			now, h.Hostname,
			h.VCPUsUsed, h.VCPUs,
			h.MemoryMBUsed, h.MemoryMB,
			h.LocalGBUsed, h.LocalGB,
			h.RunningVMs,
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("hypervisor %s: %w", h.Hostname, err))
			continue
		}

		sample.HypervisorType = h.HypervisorType
		sample.State = h.State
		sample.Status = h.Status
		sample.InstanceVCPUs = requestedVCPUs[h.Hostname]
		sample.InstanceMemoryMB = requestedMemory[h.Hostname]

		samples = append(samples, *sample)
	}

	return samples, errs
}

// instanceRollup sums the flavor-requested vcpus and memory of the instances
// placed on each hypervisor
func (s *OpenStackService) instanceRollup(ctx context.Context) (map[string]int, map[string]int) {
	vcpus := make(map[string]int)
	memory := make(map[string]int)

	instances, err := s.GetInstances(ctx)
	if err != nil {
		return vcpus, memory
	}
	flavors, err := s.GetFlavors(ctx)
	if err != nil {
		return vcpus, memory
	}

	flavorByID := make(map[string]Flavor, len(flavors))
	for _, f := range flavors {
		flavorByID[f.ID] = f
	}

	for _, inst := range instances {
		if inst.HypervisorHostname == "" {
			continue
		}
		if f, ok := flavorByID[inst.Flavor.ID]; ok {
			vcpus[inst.HypervisorHostname] += f.VCPUs
			memory[inst.HypervisorHostname] += f.RAM
		}
	}

	return vcpus, memory
}
