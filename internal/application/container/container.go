// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/aimarket/aimarket-go/internal/application/services"
	"github.com/aimarket/aimarket-go/internal/application/state"
	"github.com/aimarket/aimarket-go/internal/infrastructure/email"
	identityinfra "github.com/aimarket/aimarket-go/internal/infrastructure/identity"
	"github.com/aimarket/aimarket-go/internal/infrastructure/media"
	"github.com/aimarket/aimarket-go/internal/infrastructure/messaging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/catalog"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/localstore"
	userrepo "github.com/aimarket/aimarket-go/internal/infrastructure/persistence/user"
	"github.com/aimarket/aimarket-go/internal/infrastructure/security"
	"github.com/aimarket/aimarket-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Infrastructure
	Logger      *logging.ChanneledLogger
	CatalogDB   *database.DB
	LocalDB     *database.DB
	Store       *localstore.Store
	Broadcaster *messaging.ActivityBroadcaster
	Provider    *identityinfra.LocalProvider
	Images      *media.ImageProcessor
	Email       email.Service
	JWTSecret   string

	// Repositories
	OptionRepo   *catalog.SQLOptionRepository
	ProfileRepo  *userrepo.SQLProfileRepository
	InterestRepo *userrepo.SQLInterestRepository

	// Session state
	State *state.Container

	// Application services
	OptionService     *services.OptionService
	OnboardingService *services.OnboardingService
	ReconcileService  *services.ReconcileService
	IdleService       *services.IdleService
	ProfileService    *services.ProfileService
}

// NewContainer creates and wires all singleton services
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// A remote catalog DSN can open and ping fine yet fail on the first real
	// statement; verify it answers queries before wiring anything on top.
	if database.DriverForDSN(config.CatalogDSN) == "libsql" {
		if err := database.VerifyCatalogConnection(config.CatalogDSN, logger); err != nil {
			return nil, fmt.Errorf("remote catalog verification failed: %w", err)
		}
	}

	catalogDB, err := database.NewConnectionWithLogger(config.CatalogDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect catalog database: %w", err)
	}

	localDB, err := database.NewConnectionWithLogger(config.LocalStoreDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect local store database: %w", err)
	}

	store := localstore.NewStore(localDB, logger)
	broadcaster := messaging.NewActivityBroadcaster(logger)

	jwtSecret := config.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = security.GenerateSecureKey(64)
		if err != nil {
			return nil, fmt.Errorf("failed to generate session signing key: %w", err)
		}
		logger.System().Warn("JWT_SECRET not set, using an ephemeral signing key; sessions will not survive a restart")
	}

	provider := identityinfra.NewLocalProvider(catalogDB, jwtSecret, config.SessionTTL, logger)
	images := media.NewImageProcessor(config.MediaPath)

	// Email is optional; without an API key the welcome mail is skipped.
	var mail email.Service
	if config.ResendAPIKey != "" {
		mail, err = email.NewService()
		if err != nil {
			return nil, fmt.Errorf("failed to create email service: %w", err)
		}
	}

	optionRepo := catalog.NewSQLOptionRepository(catalogDB, logger)
	profileRepo := userrepo.NewSQLProfileRepository(catalogDB, logger)
	interestRepo := userrepo.NewSQLInterestRepository(catalogDB, logger)

	sessionState := state.NewContainer()

	optionService := services.NewOptionService(optionRepo, store, config.OnboardingCacheVersion, logger)
	onboardingService := services.NewOnboardingService(optionService, store, logger)
	reconcileService := services.NewReconcileService(provider, profileRepo, interestRepo, onboardingService, sessionState, mail, logger)
	idleService := services.NewIdleService(provider, broadcaster, store, config.IdleTimeout, config.ActivityThrottle, logger)
	profileService := services.NewProfileService(profileRepo, interestRepo, sessionState, images, logger)

	return &Container{
		Logger:      logger,
		CatalogDB:   catalogDB,
		LocalDB:     localDB,
		Store:       store,
		Broadcaster: broadcaster,
		Provider:    provider,
		Images:      images,
		Email:       mail,
		JWTSecret:   jwtSecret,

		OptionRepo:   optionRepo,
		ProfileRepo:  profileRepo,
		InterestRepo: interestRepo,

		State: sessionState,

		OptionService:     optionService,
		OnboardingService: onboardingService,
		ReconcileService:  reconcileService,
		IdleService:       idleService,
		ProfileService:    profileService,
	}, nil
}

// Close releases the container's database connections.
func (c *Container) Close() error {
	var firstErr error
	if err := c.CatalogDB.Close(); err != nil {
		firstErr = err
	}
	if err := c.LocalDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
