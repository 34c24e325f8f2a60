// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/aimarket/aimarket-go/internal/application/container"
	"github.com/aimarket/aimarket-go/internal/presentation/http/handlers"
	"github.com/aimarket/aimarket-go/internal/presentation/http/middleware"
	"github.com/aimarket/aimarket-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Serve processed avatars and other media.
	r.Static("/media", config.MediaPath)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(container.Provider, container.State, container.Logger)
	onboardingHandlers := handlers.NewOnboardingHandlers(container.OnboardingService, container.Logger)
	profileHandlers := handlers.NewProfileHandlers(container.ProfileService, container.Logger)
	activityHandlers := handlers.NewActivityHandlers(container.IdleService, container.Broadcaster, container.JWTSecret, container.Logger)

	api := r.Group("/api/v1")
	{
		// Authentication routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandlers.PostRegister)
			auth.POST("/login", authHandlers.PostLogin)
			auth.POST("/logout", authHandlers.PostLogout)
			auth.POST("/refresh", authHandlers.PostRefresh)
			auth.GET("/session", authHandlers.GetSession)
		}

		// The websocket authenticates via query token, not the bearer header.
		api.GET("/activity/ws", activityHandlers.GetActivitySocket)

		// Authenticated routes
		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(container.JWTSecret))
		{
			onboarding := authed.Group("/onboarding")
			{
				onboarding.POST("/start", onboardingHandlers.PostStart)
				onboarding.GET("/status", onboardingHandlers.GetStatus)
				onboarding.GET("/options", onboardingHandlers.GetOptions)
				onboarding.POST("/select", onboardingHandlers.PostSelect)
				onboarding.POST("/advance", onboardingHandlers.PostAdvance)
				onboarding.POST("/back", onboardingHandlers.PostBack)
				onboarding.POST("/submit", onboardingHandlers.PostSubmit)
				onboarding.POST("/restart", onboardingHandlers.PostRestart)
			}

			profile := authed.Group("/profile")
			{
				profile.PUT("/nickname", profileHandlers.PutNickname)
				profile.POST("/avatar", profileHandlers.PostAvatar)
				profile.PUT("/interests", profileHandlers.PutInterests)
			}

			authed.POST("/activity", activityHandlers.PostActivity)
		}
	}

	return r
}
