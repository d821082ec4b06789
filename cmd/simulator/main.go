package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/theru/fleet-ads/internal/deviceclient"
)

var cities = []string{"tehran", "isfahan", "shiraz", "tabriz", "mashhad"}

var networkTypes = []string{"4g", "5g", "wifi"}

// SimDevice is one simulated in-vehicle tablet. Each device keeps its own
// API client so it carries its own credentials and circuit state.
type SimDevice struct {
	serial string
	city   string
	client *deviceclient.Client
	rng    *rand.Rand

	mu          sync.RWMutex
	code        string
	battery     int
	lastError   string
	heartbeats  int64
	impressions int64
}

func NewSimDevice(baseURL string, timeout time.Duration, rng *rand.Rand) (*SimDevice, error) {
	client, err := deviceclient.NewClient(&deviceclient.Config{
		Endpoints: []deviceclient.EndpointConfig{
			{Name: "primary", URL: baseURL, Weight: 100},
		},
		Timeout:                 timeout,
		MaxRetries:              3,
		RetryDelay:              500 * time.Millisecond,
		MaxConns:                10,
		ReadBufferSize:          1024 * 4,
		WriteBufferSize:         1024 * 4,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &SimDevice{
		serial:  "SIM-" + uuid.New().String()[:8],
		city:    cities[rng.Intn(len(cities))],
		client:  client,
		rng:     rng,
		battery: 50 + rng.Intn(50),
	}, nil
}

// Run registers the device and then loops: heartbeat, fetch the playlist,
// "play" each ad and report the impression. Exits when ctx is cancelled.
func (d *SimDevice) Run(ctx context.Context) {
	defer d.client.Close()

	resp, err := d.client.Register(ctx, &deviceclient.RegisterRequest{
		Model:            "Galaxy Tab A8",
		OSVersion:        "android-13",
		SerialNumber:     d.serial,
		VehicleRegNumber: fmt.Sprintf("%02d-%c-%03d", d.rng.Intn(99), 'A'+rune(d.rng.Intn(26)), d.rng.Intn(999)),
		City:             d.city,
	})
	if err != nil {
		d.setError(err)
		log.Error().Err(err).Str("serial", d.serial).Msg("Registration failed")
		return
	}

	d.mu.Lock()
	d.code = resp.DeviceCode
	d.mu.Unlock()

	log.Info().
		Str("device_code", resp.DeviceCode).
		Str("city", d.city).
		Int("polling_interval", resp.PollingInterval).
		Msg("Device registered")

	interval := time.Duration(resp.PollingInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *SimDevice) tick(ctx context.Context) {
	d.drainBattery()

	battery := d.batteryLevel()
	charging := battery < 20
	lat := 35.6892 + d.rng.Float64()*0.2
	lon := 51.3890 + d.rng.Float64()*0.2
	storage := 1024 + d.rng.Intn(4096)
	network := networkTypes[d.rng.Intn(len(networkTypes))]

	ack, err := d.client.Heartbeat(ctx, &deviceclient.HeartbeatRequest{
		BatteryLevel:  &battery,
		IsCharging:    &charging,
		Latitude:      &lat,
		Longitude:     &lon,
		StorageFreeMB: &storage,
		NetworkType:   network,
	})
	if err != nil {
		d.setError(err)
		log.Warn().Err(err).Str("serial", d.serial).Msg("Heartbeat failed")
		return
	}

	d.mu.Lock()
	d.heartbeats++
	d.lastError = ""
	d.mu.Unlock()

	if ack.Refresh {
		log.Info().Str("serial", d.serial).Msg("Server requested playlist refresh")
	}

	playlist, err := d.client.GetAds(ctx)
	if err != nil {
		d.setError(err)
		log.Warn().Err(err).Str("serial", d.serial).Msg("Playlist fetch failed")
		return
	}

	for _, item := range playlist.Items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Play time compressed so a full loop fits inside one poll window
		time.Sleep(time.Duration(d.rng.Intn(500)) * time.Millisecond)

		playedAt := time.Now().UTC().Format(time.RFC3339)
		err := d.client.ReportImpression(ctx, &deviceclient.ImpressionRequest{
			AdID:      item.ID,
			PlayedAt:  playedAt,
			Latitude:  &lat,
			Longitude: &lon,
		})
		if err != nil {
			d.setError(err)
			log.Warn().Err(err).Str("serial", d.serial).Int64("ad_id", item.ID).Msg("Impression report failed")
			continue
		}

		d.mu.Lock()
		d.impressions++
		d.mu.Unlock()
	}
}

func (d *SimDevice) drainBattery() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.battery -= d.rng.Intn(3)
	if d.battery < 10 {
		d.battery = 100 // plugged in
	}
}

func (d *SimDevice) batteryLevel() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.battery
}

func (d *SimDevice) setError(err error) {
	d.mu.Lock()
	d.lastError = err.Error()
	d.mu.Unlock()
}

// DeviceStatus is the per-device row of the fleet status endpoint.
type DeviceStatus struct {
	Serial      string `json:"serial"`
	DeviceCode  string `json:"device_code"`
	City        string `json:"city"`
	Battery     int    `json:"battery"`
	Heartbeats  int64  `json:"heartbeats"`
	Impressions int64  `json:"impressions"`
	LastError   string `json:"last_error,omitempty"`
}

func (d *SimDevice) Status() DeviceStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DeviceStatus{
		Serial:      d.serial,
		DeviceCode:  d.code,
		City:        d.city,
		Battery:     d.battery,
		Heartbeats:  d.heartbeats,
		Impressions: d.impressions,
		LastError:   d.lastError,
	}
}

// Handler exposes the simulator's own status API
type Handler struct {
	devices []*SimDevice
}

func NewHandler(devices []*SimDevice) *Handler {
	return &Handler{devices: devices}
}

func (h *Handler) FleetStatus(c *gin.Context) {
	statuses := make([]DeviceStatus, 0, len(h.devices))
	var totalImpressions int64
	for _, d := range h.devices {
		st := d.Status()
		totalImpressions += st.Impressions
		statuses = append(statuses, st)
	}

	c.JSON(http.StatusOK, gin.H{
		"devices":           statuses,
		"total_impressions": totalImpressions,
		"timestamp":         time.Now(),
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"devices": len(h.devices),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	router.GET("/fleet/status", handler.FleetStatus)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	apiURL := getEnv("API_URL", "http://localhost:8080")
	fleetSize := getEnvInt("FLEET_SIZE", 10)
	timeout := getEnvDuration("REQUEST_TIMEOUT", 5*time.Second)

	log.Info().
		Str("port", port).
		Str("api_url", apiURL).
		Int("fleet_size", fleetSize).
		Msg("Starting fleet simulator")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devices := make([]*SimDevice, 0, fleetSize)
	var wg sync.WaitGroup
	for i := 0; i < fleetSize; i++ {
		device, err := NewSimDevice(apiURL, timeout, rand.New(rand.NewSource(rng.Int63())))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create device")
		}
		devices = append(devices, device)

		wg.Add(1)
		go func(d *SimDevice) {
			defer wg.Done()
			// Stagger registrations so the fleet does not thundering-herd
			time.Sleep(time.Duration(rng.Intn(2000)) * time.Millisecond)
			d.Run(ctx)
		}(device)
	}

	handler := NewHandler(devices)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down simulator...")

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Simulator exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
