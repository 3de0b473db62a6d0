package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/clock"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/httpapi"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/ratelimit"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/report"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/storage"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/task"
)

const (
	commandUseName          = "server"
	commandShortDescription = "Run the feedback kiosk server"
	commandLongDescription  = "Serve the satisfaction kiosk page, record submissions and host the admin dashboard"

	flagNamePort                   = "port"
	flagNameDatabasePath           = "db-path"
	flagNameAdminPassword          = "admin-password"
	flagNameSessionSecret          = "session-secret"
	flagNameRateLimitCooldown      = "rate-limit-cooldown"
	flagNameRateLimitCapacity      = "rate-limit-capacity"
	flagNameRateLimitSweepInterval = "rate-limit-sweep-interval"

	flagUsagePort                   = "TCP port for the HTTP server"
	flagUsageDatabasePath           = "path of the SQLite database file"
	flagUsageAdminPassword          = "shared password for the admin area"
	flagUsageSessionSecret          = "key used to sign admin session cookies"
	flagUsageRateLimitCooldown      = "minimum time between two submissions from one client"
	flagUsageRateLimitCapacity      = "maximum number of clients tracked by the rate limiter"
	flagUsageRateLimitSweepInterval = "how often expired rate limiter entries are dropped"

	environmentKeyPort                   = "PORT"
	environmentKeyDatabasePath           = "DB_PATH"
	environmentKeyAdminPassword          = "ADMIN_PASSWORD"
	environmentKeySessionSecret          = "SESSION_SECRET"
	environmentKeyRateLimitCooldown      = "RATE_LIMIT_COOLDOWN"
	environmentKeyRateLimitCapacity      = "RATE_LIMIT_CAPACITY"
	environmentKeyRateLimitSweepInterval = "RATE_LIMIT_SWEEP_INTERVAL"

	defaultPort                   = 5000
	defaultDatabasePath           = "data/feedback.db"
	defaultAdminPassword          = "1234"
	defaultSessionSecret          = "feedback-kiosk-development-session-secret"
	defaultRateLimitSweepInterval = time.Minute

	logEventListening        = "listening"
	logEventShutdown         = "shutdown"
	logEventFallbackPassword = "admin_password_fallback"
	logEventFallbackSecret   = "session_secret_fallback"
	logEventLimiterSweep     = "rate_limit_sweep"
	logEventSweepScheduled   = "rate_limit_sweep_scheduled"
	logEventEnvironmentFile  = "environment_file"
	logFieldAddress          = "addr"
	logFieldRemoved          = "removed"
	logFieldTracked          = "tracked"
	logFieldInterval         = "interval"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	maximumPort       = 65535

	invalidConfigurationMessage   = "invalid configuration"
	loggerCreationErrorMessage    = "logger"
	openDatabaseErrorMessage      = "open database"
	migrateDatabaseErrorMessage   = "migrate database"
	adminGateErrorMessage         = "admin gate"
	serverErrorMessage            = "http server"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	Port                   int
	DatabasePath           string
	AdminPassword          string
	SessionSecret          string
	RateLimitCooldown      time.Duration
	RateLimitCapacity      int
	RateLimitSweepInterval time.Duration
}

// Address returns the listen address for the configured port.
func (configuration ServerConfig) Address() string {
	return ":" + strconv.Itoa(configuration.Port)
}

// DatabaseOpener opens a database connection for the provided configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
	loggerFactory       func() (*zap.Logger, error)
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
		loggerFactory: func() (*zap.Logger, error) {
			return zap.NewProduction()
		},
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// WithLogger makes the application log through logger instead of a production logger.
func (application *ServerApplication) WithLogger(logger *zap.Logger) *ServerApplication {
	application.loggerFactory = func() (*zap.Logger, error) {
		return logger, nil
	}
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyPort, flagName: flagNamePort},
	{environmentKey: environmentKeyDatabasePath, flagName: flagNameDatabasePath},
	{environmentKey: environmentKeyAdminPassword, flagName: flagNameAdminPassword},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret},
	{environmentKey: environmentKeyRateLimitCooldown, flagName: flagNameRateLimitCooldown},
	{environmentKey: environmentKeyRateLimitCapacity, flagName: flagNameRateLimitCapacity},
	{environmentKey: environmentKeyRateLimitSweepInterval, flagName: flagNameRateLimitSweepInterval},
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyPort, defaultPort)
	application.configurationLoader.SetDefault(environmentKeyDatabasePath, defaultDatabasePath)
	application.configurationLoader.SetDefault(environmentKeyAdminPassword, "")
	application.configurationLoader.SetDefault(environmentKeySessionSecret, "")
	application.configurationLoader.SetDefault(environmentKeyRateLimitCooldown, ratelimit.DefaultCooldown)
	application.configurationLoader.SetDefault(environmentKeyRateLimitCapacity, ratelimit.DefaultCapacity)
	application.configurationLoader.SetDefault(environmentKeyRateLimitSweepInterval, defaultRateLimitSweepInterval)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.Int(flagNamePort, defaultPort, flagUsagePort)
	commandFlags.String(flagNameDatabasePath, defaultDatabasePath, flagUsageDatabasePath)
	commandFlags.String(flagNameAdminPassword, "", flagUsageAdminPassword)
	commandFlags.String(flagNameSessionSecret, "", flagUsageSessionSecret)
	commandFlags.Duration(flagNameRateLimitCooldown, ratelimit.DefaultCooldown, flagUsageRateLimitCooldown)
	commandFlags.Int(flagNameRateLimitCapacity, ratelimit.DefaultCapacity, flagUsageRateLimitCapacity)
	commandFlags.Duration(flagNameRateLimitSweepInterval, defaultRateLimitSweepInterval, flagUsageRateLimitSweepInterval)

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range flagBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound || strings.TrimSpace(environmentValue) == "" {
		return nil
	}

	if setErr := flagSet.Set(flagName, strings.TrimSpace(environmentValue)); setErr != nil {
		return fmt.Errorf("%s: %s: %w", environmentConfigurationError, environmentKey, setErr)
	}

	return nil
}

// loadConfiguration reads the resolved flag and environment values.
func (application *ServerApplication) loadConfiguration() ServerConfig {
	loader := application.configurationLoader
	return ServerConfig{
		Port:                   loader.GetInt(environmentKeyPort),
		DatabasePath:           strings.TrimSpace(loader.GetString(environmentKeyDatabasePath)),
		AdminPassword:          loader.GetString(environmentKeyAdminPassword),
		SessionSecret:          loader.GetString(environmentKeySessionSecret),
		RateLimitCooldown:      loader.GetDuration(environmentKeyRateLimitCooldown),
		RateLimitCapacity:      loader.GetInt(environmentKeyRateLimitCapacity),
		RateLimitSweepInterval: loader.GetDuration(environmentKeyRateLimitSweepInterval),
	}
}

func validateConfiguration(configuration ServerConfig) error {
	var problems []string

	if configuration.Port < 1 || configuration.Port > maximumPort {
		problems = append(problems, flagNamePort)
	}
	if configuration.DatabasePath == "" {
		problems = append(problems, flagNameDatabasePath)
	}
	if configuration.RateLimitCooldown <= 0 {
		problems = append(problems, flagNameRateLimitCooldown)
	}
	if configuration.RateLimitCapacity <= 0 {
		problems = append(problems, flagNameRateLimitCapacity)
	}
	if configuration.RateLimitSweepInterval <= 0 {
		problems = append(problems, flagNameRateLimitSweepInterval)
	}

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", invalidConfigurationMessage, strings.Join(problems, ", "))
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadConfiguration()
	if validationErr := validateConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := application.loggerFactory()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	serverConfig = applySecretFallbacks(serverConfig, logger)

	database, databaseErr := application.databaseOpener(storage.SQLiteFileConfig(serverConfig.DatabasePath))
	if databaseErr != nil {
		return fmt.Errorf("%s: %w", openDatabaseErrorMessage, databaseErr)
	}
	defer closeDatabase(database)

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		return fmt.Errorf("%s: %w", migrateDatabaseErrorMessage, migrateErr)
	}

	serverClock := clock.New()
	store := storage.NewFeedbackStore(database)
	limiter := ratelimit.NewCooldownLimiter(ratelimit.Config{
		Cooldown: serverConfig.RateLimitCooldown,
		Capacity: serverConfig.RateLimitCapacity,
		Clock:    serverClock,
	})
	adminGate, gateErr := httpapi.NewAdminGate(logger, serverConfig.AdminPassword, serverConfig.SessionSecret)
	if gateErr != nil {
		return fmt.Errorf("%s: %w", adminGateErrorMessage, gateErr)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	registerRoutes(router, routeHandlers{
		adminGate: adminGate,
		public:    httpapi.NewPublicHandlers(store, limiter, serverClock, logger),
		admin:     httpapi.NewAdminHandlers(store, report.NewEngine(store), serverClock, logger),
		login:     httpapi.NewLoginHandlers(adminGate, logger),
	})

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	sweepScheduler := task.NewScheduler(serverConfig.RateLimitSweepInterval, func(context.Context) {
		if removed := limiter.Sweep(); removed > 0 {
			logger.Debug(logEventLimiterSweep, zap.Int(logFieldRemoved, removed), zap.Int(logFieldTracked, limiter.Len()))
		}
	})
	sweepScheduler.Start(signalContext)
	logger.Info(logEventSweepScheduled, zap.Duration(logFieldInterval, sweepScheduler.Interval()))
	defer sweepScheduler.Stop()

	httpServer := &http.Server{
		Addr:              serverConfig.Address(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return serveUntilDone(signalContext, httpServer, logger)
}

// serveUntilDone runs httpServer until ctx ends, then drains in-flight requests.
func serveUntilDone(ctx context.Context, httpServer *http.Server, logger *zap.Logger) error {
	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, httpServer.Addr))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", serverErrorMessage, serveErr)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(logEventShutdown)
	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
		return fmt.Errorf("%s: %w", serverErrorMessage, shutdownErr)
	}
	return nil
}

// applySecretFallbacks fills in development credentials and warns that they are in use.
func applySecretFallbacks(configuration ServerConfig, logger *zap.Logger) ServerConfig {
	if configuration.AdminPassword == "" {
		logger.Warn(logEventFallbackPassword, zap.String("hint", "set "+environmentKeyAdminPassword))
		configuration.AdminPassword = defaultAdminPassword
	}
	if strings.TrimSpace(configuration.SessionSecret) == "" {
		logger.Warn(logEventFallbackSecret, zap.String("hint", "set "+environmentKeySessionSecret))
		configuration.SessionSecret = defaultSessionSecret
	}
	return configuration
}

func closeDatabase(database *gorm.DB) {
	sqlDatabase, sqlErr := database.DB()
	if sqlErr != nil {
		return
	}
	_ = sqlDatabase.Close()
}

func main() {
	if loadErr := godotenv.Load(); loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", logEventEnvironmentFile, loadErr)
	}

	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
