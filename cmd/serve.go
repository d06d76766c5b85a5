package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/controller"
	nengtulgrpc "github.com/vibast-solutions/ms-go-nengtul/app/grpc"
	"github.com/vibast-solutions/ms-go-nengtul/app/mail"
	"github.com/vibast-solutions/ms-go-nengtul/app/metrics"
	"github.com/vibast-solutions/ms-go-nengtul/app/middleware"
	"github.com/vibast-solutions/ms-go-nengtul/app/migrations"
	"github.com/vibast-solutions/ms-go-nengtul/app/repository"
	"github.com/vibast-solutions/ms-go-nengtul/app/service"
	"github.com/vibast-solutions/ms-go-nengtul/app/storage"
	"github.com/vibast-solutions/ms-go-nengtul/app/token"
	"github.com/vibast-solutions/ms-go-nengtul/app/validator"
	"github.com/vibast-solutions/ms-go-nengtul/app/worker"
	"github.com/vibast-solutions/ms-go-nengtul/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start the HTTP (Echo) API, the gRPC token service and the blacklist sweeper.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-port", "", "override HTTP_PORT")
	serveCmd.Flags().String("grpc-port", "", "override GRPC_PORT")
	serveCmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

type handlers struct {
	sessions *controller.SessionController
	users    *controller.UserController
	auth     *middleware.AuthMiddleware
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if port, _ := cmd.Flags().GetString("http-port"); port != "" {
		cfg.HTTP.Port = port
	}
	if port, _ := cmd.Flags().GetString("grpc-port"); port != "" {
		cfg.GRPC.Port = port
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err = migrations.Up(ctx, db); err != nil {
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	mailer, err := mail.NewSender(cfg.Mail)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure mail sender")
	}

	userOpts := []service.UserServiceOption{}
	if cfg.S3.Enabled() {
		images, err := storage.NewS3ImageStore(ctx, cfg.S3)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to configure image storage")
		}
		userOpts = append(userOpts, service.WithImageStore(images))
	} else {
		logrus.Warn("S3_BUCKET not set, profile image uploads are disabled")
	}

	userRepo := repository.NewUserRepository(db)
	blacklistRepo := repository.NewBlacklistTokenRepository(db)
	codec := token.NewCodec(token.Config{Secret: cfg.JWT.Secret, Issuer: "nengtul"})

	sessionManager := service.NewSessionManager(userRepo, blacklistRepo, codec, cfg.JWT, service.WithSessionMetrics(recorder))
	userService := service.NewUserService(userRepo, mailer, cfg, userOpts...)

	h := handlers{
		sessions: controller.NewSessionController(sessionManager, cfg.JWT),
		users:    controller.NewUserController(userService, sessionManager),
		auth:     middleware.NewAuthMiddleware(sessionManager, userService),
	}

	sweeper := worker.NewBlacklistSweeper(blacklistRepo, cfg.Blacklist.SweepInterval, recorder)
	go sweeper.Run(ctx)

	grpcServer, err := startGRPCServer(cfg, sessionManager)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
	defer grpcServer.GracefulStop()

	e := newHTTPServer(cfg, h, registry)
	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	go func() {
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newHTTPServer(cfg *config.Config, h handlers, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
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
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		ExposeHeaders: []string{cfg.JWT.AccessHeader, cfg.JWT.RefreshHeader},
	}))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	// Credential endpoints are limited per client IP.
	limited := echomiddleware.RateLimiter(echomiddleware.NewRateLimiterMemoryStoreWithConfig(
		echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimit.LoginPerSecond),
			Burst:     cfg.RateLimit.Burst,
			ExpiresIn: 3 * time.Minute,
		},
	))

	user := e.Group("/v1/user")
	user.POST("/join", h.users.Join, limited)
	user.GET("/verify", h.users.VerifyEmail)
	user.POST("/login", h.sessions.Login, limited)
	user.POST("/refresh", h.sessions.Refresh, limited)
	user.POST("/find/email", h.users.FindEmail, limited)
	user.POST("/find/password", h.users.FindPassword, limited)

	gate := h.auth.RequireAuth
	verified := []echo.MiddlewareFunc{h.auth.RequireAuth, h.auth.RequireVerifiedEmail}
	user.POST("/logout", h.sessions.Logout, gate)
	user.GET("/detail", h.users.Detail, gate)
	user.POST("/verify/resend", h.users.ResendVerification, gate)
	user.DELETE("", h.users.Quit, gate)
	user.PUT("", h.users.UpdateProfile, verified...)
	user.PUT("/password", h.users.ChangePassword, verified...)

	return e
}

func startGRPCServer(cfg *config.Config, sessions *service.SessionManager) (*grpc.Server, error) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, err
	}

	if len(cfg.GRPC.APIKeys) == 0 {
		logrus.Warn("GRPC_API_KEYS is empty, every token service call will be rejected")
	}
	server := nengtulgrpc.NewServer(nengtulgrpc.NewTokenServer(sessions), nengtulgrpc.NewAPIKeyring(cfg.GRPC.APIKeys))

	go func() {
		logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
		if err := server.Serve(lis); err != nil {
			logrus.WithError(err).Error("gRPC server stopped")
		}
	}()
	return server, nil
}
