package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/controller"
	"github.com/vibast-solutions/ms-go-billing-bff/app/processor"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/types"
	"github.com/vibast-solutions/ms-go-billing-bff/config"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server exposing checkout, success verification and payment views to the browser.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := mustCreateBillingAPI(ctx, cfg)

	tabs, sweepTabs, closeTabs := mustOpenTabState(ctx, cfg)
	defer closeTabs()

	ledger, closeLedger := mustOpenLedger(ctx, cfg)
	defer closeLedger()

	stripeProcessor := processor.NewStripeProcessor(processor.StripeConfig{
		SecretKey:   cfg.Stripe.SecretKey,
		APIBaseURL:  cfg.Stripe.APIBaseURL,
		HTTPTimeout: cfg.Stripe.HTTPTimeout,
	})

	var checkoutService *service.CheckoutService
	if ledger != nil {
		checkoutService = service.NewCheckoutService(api, stripeProcessor, ledger, cfg.Checkout.SuccessRedirect)
	} else {
		logrus.Warn("MYSQL_DSN not set; payment mismatches are only logged")
		checkoutService = service.NewCheckoutService(api, stripeProcessor, nil, cfg.Checkout.SuccessRedirect)
	}
	reconciler := service.NewReconciler(api, tabs)

	checkoutController := controller.NewCheckoutController(checkoutService, reconciler)
	paymentController := controller.NewPaymentController(api, reconciler)

	e := setupHTTPServer(cfg, checkoutController, paymentController)

	go runSweeper(ctx, cfg.Checkout.FlowIdleTTL, checkoutService, api, sweepTabs)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	cfg *config.Config,
	checkoutController *controller.CheckoutController,
	paymentController *controller.PaymentController,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(corsMiddleware(cfg.HTTP.CORSAllowedOrigins))
	e.Use(forwardCredentials())

	e.GET("/health", paymentController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	registerRoutes(e, checkoutController, paymentController)

	return e
}

func registerRoutes(e *echo.Echo, checkoutController *controller.CheckoutController, paymentController *controller.PaymentController) {
	checkout := e.Group("/checkout")
	checkout.GET("", checkoutController.GetCheckout)
	checkout.POST("/intent", checkoutController.CreateIntent)
	checkout.POST("/confirm", checkoutController.ConfirmCard)
	checkout.DELETE("", checkoutController.CloseCheckout)

	e.DELETE("/tab", checkoutController.CloseTab)

	payments := e.Group("/payments")
	payments.POST("/checkout-session", paymentController.CreateCheckoutSession)
	payments.GET("/status/:client_name", paymentController.GetPaymentStatus)
	payments.GET("/invoices/:client_name", paymentController.GetInvoices)
	payments.GET("/success", paymentController.PaymentSuccess)
	payments.POST("/completed/consume", paymentController.ConsumePaymentCompleted)
}

func corsMiddleware(origins []string) echo.MiddlewareFunc {
	if len(origins) == 0 {
		return echomiddleware.CORS()
	}
	return echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestID,
			types.HeaderTabID,
		},
		AllowCredentials: true,
	})
}

// forwardCredentials carries the caller's bearer token and request id into the
// request context so backend calls made on its behalf reuse them. A missing
// request id is generated.
func forwardCredentials() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()

			requestID := strings.TrimSpace(req.Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
				req.Header.Set(echo.HeaderXRequestID, requestID)
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)

			reqCtx := apiclient.WithRequestID(req.Context(), requestID)
			reqCtx = apiclient.WithBearer(reqCtx, req.Header.Get(echo.HeaderAuthorization))
			ctx.SetRequest(req.WithContext(reqCtx))

			return next(ctx)
		}
	}
}

func runSweeper(ctx context.Context, flowIdleTTL time.Duration, checkoutService *service.CheckoutService, api *billingapi.API, sweepTabs func() int) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	logger := logrus.WithField("job", "sweep")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flows := checkoutService.SweepIdle(flowIdleTTL)
			tabs := 0
			if sweepTabs != nil {
				tabs = sweepTabs()
			}
			views := api.SweepCache()
			if flows > 0 || tabs > 0 || views > 0 {
				logger.WithFields(logrus.Fields{
					"flows":        flows,
					"tabs":         tabs,
					"views":        views,
					"active_flows": checkoutService.ActiveFlows(),
				}).Debug("Swept idle checkout state")
			}
		}
	}
}
