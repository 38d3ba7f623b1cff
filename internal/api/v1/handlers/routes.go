package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	v1websocket "github.com/medicman/assist/internal/api/v1/handlers/websocket"
	v1mware "github.com/medicman/assist/internal/api/v1/middleware"
	"github.com/medicman/assist/internal/connections"
	"github.com/medicman/assist/internal/services"
)

func RegisterV1Routes(router *mux.Router, services *services.Services, manager *connections.Manager) {
	// v1 routes
	v1 := router.PathPrefix("/v1").Subrouter()

	// Auth v1 routes (no auth required)
	v1authRouter := v1.PathPrefix("/auth").Subrouter()
	v1authRouter.Handle("/token", v1mware.RateLimit("auth_token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleToken(services.GetAuthService(), w, r)
	}))).Methods("POST")

	// Protected v1 routes (require auth)
	v1protectedRouter := v1.NewRoute().Subrouter()
	v1protectedRouter.Use(v1mware.RequireAuth(services.GetAuthService()))

	// Intake pipeline routes
	v1intakeRouter := v1protectedRouter.PathPrefix("/intake").Subrouter()
	v1intakeRouter.Use(v1mware.RateLimit("intake"))
	v1intakeRouter.HandleFunc("/init", func(w http.ResponseWriter, r *http.Request) {
		HandleInit(services.GetIntakeService(), w, r)
	}).Methods("POST")
	v1intakeRouter.HandleFunc("/personal-info", func(w http.ResponseWriter, r *http.Request) {
		HandlePersonalInfo(services.GetIntakeService(), w, r)
	}).Methods("POST")
	v1intakeRouter.HandleFunc("/followups", func(w http.ResponseWriter, r *http.Request) {
		HandleFollowUps(services.GetIntakeService(), w, r)
	}).Methods("POST")
	v1intakeRouter.HandleFunc("/answers", func(w http.ResponseWriter, r *http.Request) {
		HandleAnswers(services.GetIntakeService(), w, r)
	}).Methods("POST")
	v1intakeRouter.HandleFunc("/final-prompt", func(w http.ResponseWriter, r *http.Request) {
		HandleFinalPrompt(services.GetIntakeService(), w, r)
	}).Methods("POST")
	v1intakeRouter.Handle("/diagnosis", v1mware.RateLimit("diagnosis")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleDiagnosis(services.GetIntakeService(), w, r)
	}))).Methods("POST")

	// Media analysis
	v1protectedRouter.Handle("/media/analyze", v1mware.RateLimit("media")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleAnalyzeMedia(services.GetMediaService(), w, r)
	}))).Methods("POST")

	// Chat history
	v1protectedRouter.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		HandleCreateThread(services.GetHistoryService(), w, r)
	}).Methods("POST")
	v1protectedRouter.HandleFunc("/threads/initial", func(w http.ResponseWriter, r *http.Request) {
		HandleInitialThread(services.GetHistoryService(), w, r)
	}).Methods("GET")
	v1protectedRouter.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		HandleTranscript(services.GetHistoryService(), w, r)
	}).Methods("GET")
	v1protectedRouter.HandleFunc("/chats/sidebar", func(w http.ResponseWriter, r *http.Request) {
		HandleSidebar(services.GetHistoryService(), w, r)
	}).Methods("GET")

	// Event channel. The handler validates the channel token itself so the
	// upgrade can fall back to the access_token query parameter.
	wsHandler := v1websocket.NewHandler(
		manager,
		services.GetAuthService(),
		services.GetIntakeService(),
		services.GetHistoryService(),
		services.GetOpenAIService(),
	)
	v1.HandleFunc("/ws", wsHandler.HandleWebSocket).Methods("GET")
}
