package deviceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theru/fleet-ads/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableEndpoints = errors.New("no available endpoints")
	ErrUnauthorized         = errors.New("device credentials rejected")
)

// Request/Response types mirror the device-facing API payloads.
type RegisterRequest struct {
	Model            string `json:"model"`
	OSVersion        string `json:"os_version"`
	SerialNumber     string `json:"serial_number"`
	VehicleRegNumber string `json:"vehicle_reg_number"`
	City             string `json:"city"`
}

type RegisterResponse struct {
	DeviceCode      string `json:"device_code"`
	SecretKey       string `json:"secret_key"`
	PollingInterval int    `json:"polling_interval"`
}

type HeartbeatRequest struct {
	BatteryLevel  *int     `json:"battery_level,omitempty"`
	IsCharging    *bool    `json:"is_charging,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	StorageFreeMB *int     `json:"storage_free_mb,omitempty"`
	NetworkType   string   `json:"network_type,omitempty"`
}

type HeartbeatResponse struct {
	ServerTime      time.Time `json:"server_time"`
	PollingInterval int       `json:"polling_interval"`
	Refresh         bool      `json:"refresh"`
}

type PlaylistItem struct {
	ID              int64  `json:"id"`
	CampaignID      int64  `json:"campaign_id"`
	FileName        string `json:"file_name"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
}

type PlaylistResponse struct {
	Items []PlaylistItem `json:"items"`
}

type ImpressionRequest struct {
	AdID      int64    `json:"ad_id"`
	PlayedAt  string   `json:"played_at,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64 // Last N latencies for percentile calculation
	maxHistorySize int
}

func NewEndpointMetrics() *EndpointMetrics {
	return &EndpointMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *EndpointMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

type EndpointState int

const (
	StateHealthy EndpointState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

// Endpoint is one reachable API base URL. Vehicles roam between coverage
// zones, so a device may be provisioned with a primary and a backup gateway.
type Endpoint struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *EndpointMetrics
	state            atomic.Int32
	weight           atomic.Int32 // Base weight/priority
	lastHealthCheck  atomic.Int64
	circuitOpenUntil atomic.Int64

	mu sync.RWMutex
}

func NewEndpoint(name, url string, weight int, client *fasthttp.Client) *Endpoint {
	e := &Endpoint{
		name:    name,
		url:     url,
		client:  client,
		metrics: NewEndpointMetrics(),
	}
	e.state.Store(int32(StateHealthy))
	e.weight.Store(int32(weight))
	return e
}

func (e *Endpoint) GetState() EndpointState {
	return EndpointState(e.state.Load())
}

func (e *Endpoint) SetState(state EndpointState) {
	e.state.Store(int32(state))
}

func (e *Endpoint) IsAvailable() bool {
	state := e.GetState()
	if state == StateCircuitOpen {
		// Check if circuit should close
		openUntil := e.circuitOpenUntil.Load()
		if time.Now().Unix() > openUntil {
			e.SetState(StateDegraded)
			return true
		}
		return false
	}
	return state != StateUnhealthy
}

// CalculateScore calculates endpoint score based on metrics (higher is better)
func (e *Endpoint) CalculateScore() float64 {
	if !e.IsAvailable() {
		return 0.0
	}

	metrics := e.metrics
	baseWeight := float64(e.weight.Load())

	// Success rate weight (0-100 points)
	successRate := metrics.SuccessRate()
	successScore := successRate * 100

	// Latency score (0-100 points, lower latency = higher score)
	avgLatency := metrics.AvgLatencyMs()
	latencyScore := 100.0
	if avgLatency > 0 {
		// Normalize: 100ms = 100 points, 1000ms = 10 points, 5000ms+ = 0 points
		latencyScore = 100.0 * (1.0 - (float64(avgLatency) / 5000.0))
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	// Recent performance weight (penalize recent failures)
	consecutiveFails := float64(metrics.ConsecutiveFails.Load())
	recentPenalty := 1.0 - (consecutiveFails * 0.1) // Each fail reduces by 10%
	if recentPenalty < 0.1 {
		recentPenalty = 0.1
	}

	// State penalty
	statePenalty := 1.0
	switch e.GetState() {
	case StateDegraded:
		statePenalty = 0.5
	case StateUnhealthy, StateCircuitOpen:
		statePenalty = 0.0
	}

	score := (successScore*0.4 + latencyScore*0.4 + baseWeight*0.2) * recentPenalty * statePenalty

	return score
}

type Config struct {
	Endpoints               []EndpointConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	ReadBufferSize          int
	WriteBufferSize         int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type EndpointConfig struct {
	Name   string
	URL    string
	Weight int // Base priority weight (1-100)
}

// Credentials is the code/secret pair issued at registration. The zero value
// means unregistered; Register fills it in.
type Credentials struct {
	DeviceCode string
	SecretKey  string
}

// Client talks to the device-facing API the way a tablet does: register
// once, then heartbeat, fetch the playlist and report impressions with the
// issued credentials.
type Client struct {
	config    *Config
	endpoints []*Endpoint
	creds     Credentials
	credsMu   sync.RWMutex
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one endpoint is required")
	}

	client := &Client{
		config:    config,
		endpoints: make([]*Endpoint, 0, len(config.Endpoints)),
		stopCh:    make(chan struct{}),
	}

	for _, ec := range config.Endpoints {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		}

		endpoint := NewEndpoint(ec.Name, ec.URL, ec.Weight, httpClient)
		client.endpoints = append(client.endpoints, endpoint)

		logger.Info("Endpoint initialized", "name", ec.Name, "url", ec.URL, "weight", ec.Weight)
	}

	// Start background tasks
	client.wg.Add(2)
	go client.healthChecker()
	go client.metricsCollector()

	logger.Info("Device client initialized", "endpoints", len(client.endpoints), "timeout", config.Timeout)

	return client, nil
}

// SetCredentials installs a previously issued code/secret pair, for devices
// that registered on an earlier run.
func (c *Client) SetCredentials(creds Credentials) {
	c.credsMu.Lock()
	c.creds = creds
	c.credsMu.Unlock()
}

func (c *Client) Credentials() Credentials {
	c.credsMu.RLock()
	defer c.credsMu.RUnlock()
	return c.creds
}

// SelectBestEndpoint selects the best performing endpoint
func (c *Client) SelectBestEndpoint() (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.endpoints) == 0 {
		return nil, ErrNoAvailableEndpoints
	}

	var bestEndpoint *Endpoint
	var bestScore float64

	for _, endpoint := range c.endpoints {
		if !endpoint.IsAvailable() {
			continue
		}

		score := endpoint.CalculateScore()
		if score > bestScore {
			bestScore = score
			bestEndpoint = endpoint
		}
	}

	if bestEndpoint == nil {
		return nil, ErrNoAvailableEndpoints
	}

	logger.Debug("Selected endpoint", "endpoint", bestEndpoint.name, "score", bestScore)

	return bestEndpoint, nil
}

// Register provisions the device and stores the issued credentials on the
// client for subsequent calls.
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.call(ctx, "POST", "/api/device/register", req, &resp, false); err != nil {
		return nil, err
	}

	c.SetCredentials(Credentials{DeviceCode: resp.DeviceCode, SecretKey: resp.SecretKey})

	logger.Info("Device registered", "device_code", resp.DeviceCode, "polling_interval", resp.PollingInterval)
	return &resp, nil
}

func (c *Client) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	var resp HeartbeatResponse
	if err := c.call(ctx, "POST", "/api/device/heartbeat", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAds(ctx context.Context) (*PlaylistResponse, error) {
	var resp PlaylistResponse
	if err := c.call(ctx, "GET", "/api/device/ads", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ReportImpression(ctx context.Context, req *ImpressionRequest) error {
	return c.call(ctx, "POST", "/api/device/impression", req, nil, true)
}

// call runs a request against the best endpoint with retry and failover.
func (c *Client) call(ctx context.Context, method, path string, reqBody any, out any, authed bool) error {
	var body []byte
	if reqBody != nil {
		var err error
		body, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		endpoint, err := c.SelectBestEndpoint()
		if err != nil {
			lastErr = err
			continue
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, endpoint, method, path, body, authed)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				// Bad credentials fail the same way everywhere, no point retrying
				return err
			}

			endpoint.metrics.RecordFailure()
			c.checkCircuitBreaker(endpoint)

			logger.Warn("Request failed, retrying", "error", err, "endpoint", endpoint.name, "attempt", attempt+1)

			lastErr = err
			continue
		}

		endpoint.metrics.RecordSuccess(latency)

		if out != nil {
			if err := json.Unmarshal(response, out); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRequest performs HTTP request with timeout
func (c *Client) doRequest(ctx context.Context, endpoint *Endpoint, method, path string, body []byte, authed bool) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	url := endpoint.url + path
	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	if authed {
		creds := c.Credentials()
		req.Header.Set("X-Device-Code", creds.DeviceCode)
		req.Header.Set("X-Secret-Key", creds.SecretKey)
	}

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := endpoint.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode == fasthttp.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusCreated {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) checkCircuitBreaker(endpoint *Endpoint) {
	consecutiveFails := endpoint.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		endpoint.SetState(StateCircuitOpen)
		openUntil := time.Now().Add(c.config.CircuitBreakerTimeout).Unix()
		endpoint.circuitOpenUntil.Store(openUntil)

		logger.Warn("Circuit breaker opened", "endpoint", endpoint.name, "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

// performHealthChecks checks health of all endpoints
func (c *Client) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	endpoints := make([]*Endpoint, len(c.endpoints))
	copy(endpoints, c.endpoints)
	c.mu.RUnlock()

	for _, endpoint := range endpoints {
		healthy := c.checkEndpointHealth(ctx, endpoint)
		endpoint.lastHealthCheck.Store(time.Now().Unix())

		oldState := endpoint.GetState()
		newState := oldState

		if healthy {
			if oldState == StateUnhealthy || oldState == StateDegraded {
				newState = StateHealthy
			}
		} else {
			newState = StateUnhealthy
		}

		if newState != oldState {
			endpoint.SetState(newState)
			logger.Info("Endpoint state changed", "endpoint", endpoint.name, "old_state", stateString(oldState), "new_state", stateString(newState))
		}
	}
}

// checkEndpointHealth checks if an endpoint is healthy
func (c *Client) checkEndpointHealth(ctx context.Context, endpoint *Endpoint) bool {
	response, err := c.doRequest(ctx, endpoint, "GET", "/api/health", nil, false)
	if err != nil {
		return false
	}

	return string(response) == "success"
}

// metricsCollector periodically evaluates endpoint performance
func (c *Client) metricsCollector() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evaluateEndpoints()
		case <-c.stopCh:
			return
		}
	}
}

// evaluateEndpoints evaluates and adjusts endpoint states based on metrics
func (c *Client) evaluateEndpoints() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, endpoint := range c.endpoints {
		if endpoint.GetState() == StateCircuitOpen {
			continue
		}

		successRate := endpoint.metrics.SuccessRate()
		avgLatency := endpoint.metrics.AvgLatencyMs()

		// Determine state based on performance
		if successRate < 0.8 || avgLatency > 5000 {
			if endpoint.GetState() != StateDegraded {
				endpoint.SetState(StateDegraded)
				logger.Warn("Endpoint degraded", "endpoint", endpoint.name, "success_rate", successRate, "avg_latency_ms", avgLatency)
			}
		} else if successRate > 0.95 && avgLatency < 2000 {
			if endpoint.GetState() != StateHealthy {
				endpoint.SetState(StateHealthy)
				logger.Info("Endpoint recovered to healthy state", "endpoint", endpoint.name)
			}
		}
	}
}

// GetEndpointStats returns detailed statistics for all endpoints
func (c *Client) GetEndpointStats() []EndpointStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		stats = append(stats, EndpointStats{
			Name:             endpoint.name,
			URL:              endpoint.url,
			State:            stateString(endpoint.GetState()),
			Score:            endpoint.CalculateScore(),
			TotalRequests:    endpoint.metrics.TotalRequests.Load(),
			SuccessfulReqs:   endpoint.metrics.SuccessfulReqs.Load(),
			FailedReqs:       endpoint.metrics.FailedReqs.Load(),
			SuccessRate:      endpoint.metrics.SuccessRate(),
			AvgLatencyMs:     endpoint.metrics.AvgLatencyMs(),
			P95LatencyMs:     endpoint.metrics.P95LatencyMs(),
			LastLatencyMs:    endpoint.metrics.LastLatencyMs.Load(),
			ConsecutiveFails: endpoint.metrics.ConsecutiveFails.Load(),
		})
	}

	// Sort by score
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})

	return stats
}

// Close closes the client and releases resources
func (c *Client) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	logger.Info("Device client closed")
	return nil
}

// Supporting types
type EndpointStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

func stateString(state EndpointState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
