package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/CoachForgeHQ/coachforge-go/api"
	"github.com/CoachForgeHQ/coachforge-go/backend"
	"github.com/CoachForgeHQ/coachforge-go/config"
	"github.com/CoachForgeHQ/coachforge-go/services"
	"github.com/CoachForgeHQ/coachforge-go/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found -- config defaults will be used")
	}

	// Session manager owns one context per editing tab
	sessionManager := session.NewManager()
	session.StartCleanupRoutine(sessionManager)

	// Editor hub pushes reset and save-state events to connected editors
	hub := services.NewEditorHub()
	go hub.Run()
	sessionManager.SetResetListener(hub.ResetVersionChanged)

	// Orchestrator commits pending changes to the persistence backend
	committer := backend.NewClient(config.BackendBaseURL, config.BackendTimeout)
	orchestrator := services.NewSaveOrchestrator(committer)
	orchestrator.SetNotifier(hub)

	api.SessionManager = sessionManager
	api.Orchestrator = orchestrator
	api.Hub = hub

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(api.FilteredLogger(), gin.Recovery())
	r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			session.SessionIDHeader, "X-Requested-With",
		},
		AllowCredentials: true,
	}))

	// Session bootstrap does not require an existing session
	r.POST("/api/v1/edit-sessions", api.CreateSessionHandler)

	// Browsers cannot attach headers to a websocket handshake, so the events
	// route authenticates itself from query parameters
	r.GET("/api/v1/edits/events", api.EditorEventsHandler)

	// Everything else is scoped to one editing session
	v1 := r.Group("/api/v1", api.RequireSessionToken(), api.SessionMiddleware(sessionManager))
	{
		v1.PUT("/edit-sessions/program", api.SetProgramHandler)
		v1.DELETE("/edit-sessions", api.CloseSessionHandler)

		edits := v1.Group("/edits")
		{
			edits.POST("", api.RegisterChangeHandler)
			edits.PATCH("", api.UpdateChangeHandler)
			edits.GET("/one", api.GetChangeHandler)
			edits.DELETE("", api.DiscardChangeHandler)
			edits.DELETE("/all", api.DiscardAllHandler)
			edits.GET("/status", api.StatusHandler)
			edits.POST("/save", api.SaveAllHandler)
		}
	}

	log.Println("Starting server on :" + config.Port)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
