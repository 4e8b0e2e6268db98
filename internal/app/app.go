package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/velo-till/internal/domain/checkout"
	"github.com/xenking/velo-till/internal/erpapi"
	"github.com/xenking/velo-till/internal/handler"
	"github.com/xenking/velo-till/internal/session"
	"github.com/xenking/velo-till/internal/storage/filesystem"
	"github.com/xenking/velo-till/pkg/health"
	"github.com/xenking/velo-till/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("erp", cfg.ERP.URL),
		zap.String("documents", cfg.Documents.Dir),
	)

	// Back-office API client.
	erpOpts := []erpapi.Option{
		erpapi.WithHTTPClient(&http.Client{
			Timeout: cfg.ERP.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		}),
	}
	if cfg.ERP.Token != "" {
		erpOpts = append(erpOpts, erpapi.WithToken(cfg.ERP.Token))
	}
	if cfg.ERP.Username != "" {
		erpOpts = append(erpOpts, erpapi.WithCredentials(cfg.ERP.Username, cfg.ERP.Password))
	}
	erp, err := erpapi.NewClient(cfg.ERP.URL, erpOpts...)
	if err != nil {
		return errors.Wrap(err, "create erp client")
	}

	documents, err := filesystem.NewDocumentStore(cfg.Documents.Dir)
	if err != nil {
		return errors.Wrap(err, "create document store")
	}

	sess, err := session.New(session.Deps{
		Catalog:   erpapi.NewCatalogService(erp),
		Directory: erpapi.NewClientService(erp),
		Orders:    erpapi.NewOrderService(erp),
		Invoices:  erpapi.NewInvoiceService(erp),
		Documents: documents,
		Checkout: checkout.Options{
			StepTimeout:    cfg.Checkout.StepTimeout,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		},
	})
	if err != nil {
		return errors.Wrap(err, "create session")
	}

	// The till stays up without the back office; the UI can reload later.
	if err := sess.Load(ctx); err != nil {
		lg.Warn("Initial catalog load failed", zap.Error(err))
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(health.Check{
		Name:           "erp",
		Timeout:        5 * time.Second,
		Func:           erp.Ping,
		StartUnhealthy: true,
	})
	healthSvc.AddReadinessCheck(health.Check{
		Name:    "documents",
		Timeout: time.Second,
		Func:    documents.Ready,
	})
	healthSvc.AddLivenessCheck(health.Check{
		Name:    "goroutines",
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	router := handler.New(handler.Config{APIKey: cfg.APIKey}, sess).Router()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	routeFinder := httpmiddleware.ChiRouteFinder(router)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.Instrument("till-api", routeFinder, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
