package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"oscap-monitor/internal/analysis"
	"oscap-monitor/internal/config"
	"oscap-monitor/internal/handlers"
	"oscap-monitor/internal/models"
	"oscap-monitor/internal/services"
	"oscap-monitor/internal/store"

	"github.com/gin-gonic/gin"
)

// analysisWindow is how much history feeds each analysis pass
const analysisWindow = 48 * time.Hour

func main() {
	configPath := getEnv("MONITOR_CONFIG", "config/monitor.yaml")

	// Invalid configuration is fatal before any analysis runs
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	log.Println("Initializing metrics store...")
	metricsStore, err := store.NewMetricsStore(cfg.Store.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize metrics store: %v", err)
	}
	defer metricsStore.Close()

	log.Println("Initializing OpenStack service...")
	osService := services.NewOpenStackService(cfg.OpenStack)
	if cfg.OpenStack.AuthURL == "" {
		log.Println("Warning: no OpenStack auth URL configured, collection disabled")
		osService = nil
	}

	pipeline := analysis.NewPipeline(cfg)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(metricsStore, pipeline, analysisWindow)

	// Set up Gin router
	router := gin.Default()

	// API routes
	api := router.Group("/api")
	{
		api.GET("/nodes", apiHandler.GetNodes)
		api.GET("/nodes/:name", apiHandler.GetNodeDetails)
		api.GET("/nodes/:name/history", apiHandler.GetNodeHistory)
		api.GET("/nodes/:name/analysis", apiHandler.GetNodeAnalysis)
		api.GET("/nodes/:name/forecast", apiHandler.GetNodeForecast)
		api.GET("/nodes/:name/alerts", apiHandler.GetNodeAlerts)
		api.GET("/recommendations", apiHandler.GetRecommendations)
		api.GET("/capacity", apiHandler.GetCapacity)
		api.GET("/alerts", apiHandler.GetAlerts)
		api.POST("/alerts/:id/resolve", apiHandler.ResolveAlert)
	}

	// Prometheus scrape endpoint
	router.GET("/metrics", handlers.MetricsExporter(metricsStore))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Start collection and analysis loop
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go runMonitorLoop(loopCtx, cfg, osService, metricsStore, pipeline)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopLoop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMonitorLoop periodically collects samples, runs the analysis pass and
// cleans up expired data
func runMonitorLoop(ctx context.Context, cfg *config.Config, osService *services.OpenStackService, metricsStore *store.MetricsStore, pipeline *analysis.Pipeline) {
	collectTicker := time.NewTicker(time.Duration(cfg.CollectIntervalMinutes) * time.Minute)
	defer collectTicker.Stop()

	analyzeTicker := time.NewTicker(time.Duration(cfg.AnalyzeIntervalMinutes) * time.Minute)
	defer analyzeTicker.Stop()

	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-collectTicker.C:
			collectSamples(ctx, osService, metricsStore)
		case <-analyzeTicker.C:
			runAnalysisPass(ctx, cfg, metricsStore, pipeline)
		case <-cleanupTicker.C:
			retention := time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
			if err := metricsStore.CleanupOldData(retention); err != nil {
				log.Printf("Failed to clean up old data: %v", err)
			}
		}
	}
}

// collectSamples gathers current hypervisor metrics and stores them
func collectSamples(ctx context.Context, osService *services.OpenStackService, metricsStore *store.MetricsStore) {
	if osService == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	samples, errs := osService.CollectSamples(ctx)
	for _, err := range errs {
		log.Printf("Sample collection: %v", err)
	}

	if err := metricsStore.SaveSamples(samples); err != nil {
		log.Printf("Failed to save samples: %v", err)
		return
	}
	log.Printf("Collected %d samples", len(samples))
}

// runAnalysisPass analyzes every node's recent window, persists the results
// and raises alerts from the recommendations
func runAnalysisPass(ctx context.Context, cfg *config.Config, metricsStore *store.MetricsStore, pipeline *analysis.Pipeline) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	nodes, err := metricsStore.ListNodes()
	if err != nil {
		log.Printf("Failed to list nodes: %v", err)
		return
	}

	end := time.Now().UTC()
	windows := make(map[string][]models.MetricSample, len(nodes))
	for _, node := range nodes {
		window, err := metricsStore.GetWindow(node, end.Add(-analysisWindow), end)
		if err != nil {
			log.Printf("Failed to load window for %s: %v", node, err)
			continue
		}
		windows[node] = window
	}

	reports, failures := pipeline.RunAll(ctx, windows, nodes)
	for node, err := range failures {
		log.Printf("Analysis skipped for %s: %v", node, err)
	}

	for _, report := range reports {
		if err := metricsStore.SaveAnalysis(report.Analysis); err != nil {
			log.Printf("Failed to save analysis for %s: %v", report.Node, err)
		}
		for metric, points := range report.Forecasts {
			if err := metricsStore.SaveForecasts(report.Node, metric, points); err != nil {
				log.Printf("Failed to save forecasts for %s %s: %v", report.Node, metric, err)
			}
		}
		raiseAlerts(metricsStore, report)
	}

	log.Printf("Analysis pass completed for %d nodes", len(reports))
}

// raiseAlerts persists alerts for critical and high recommendations and
// confirmed anomalies
func raiseAlerts(metricsStore *store.MetricsStore, report *analysis.NodeReport) {
	for _, rec := range report.Recommendations {
		if rec.Severity != analysis.SeverityCritical && rec.Severity != analysis.SeverityHigh {
			continue
		}
		severity := "Warning"
		if rec.Severity == analysis.SeverityCritical {
			severity = "Critical"
		}
		alert := &models.Alert{
			Node:     report.Node,
			Severity: severity,
			Message:  rec.Message,
		}
		if err := metricsStore.SaveAlert(alert); err != nil {
			log.Printf("Failed to save alert for %s: %v", report.Node, err)
		}
	}

	for _, a := range report.Anomalies {
		if a.Verdict != models.VerdictAnomalous {
			continue
		}
		alert := &models.Alert{
			Node:     report.Node,
			Severity: "Warning",
			Message:  fmt.Sprintf("Anomalous %s reading of %.1f%% (baseline %.1f%%)", a.Metric, a.Value, a.Mean),
		}
		if err := metricsStore.SaveAlert(alert); err != nil {
			log.Printf("Failed to save anomaly alert for %s: %v", report.Node, err)
		}
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
