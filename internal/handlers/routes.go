package handlers

import "net/http"

// RegisterRoutes wires every endpoint onto mux.
func RegisterRoutes(mux *http.ServeMux, mw *Middleware, ingest *IngestHandler, admin *AdminHandler, health *HealthHandler) {
	mux.HandleFunc("GET /healthz", health.Health)

	// Ingestion API
	mux.HandleFunc("POST /api/v1/attempts", mw.RequireAPIKey(ingest.RecordAttempt))
	mux.HandleFunc("POST /api/v1/mr/session/start", mw.RequireAPIKey(ingest.StartSession))
	mux.HandleFunc("POST /api/v1/mr/session/end", mw.RequireAPIKey(ingest.EndSession))
	mux.HandleFunc("POST /api/v1/mr/question", mw.RequireAPIKey(ingest.RecordQuestion))

	// Admin read API
	mux.HandleFunc("GET /api/v1/attempts/{id}", mw.RequireAdmin(admin.Attempt))
	mux.HandleFunc("GET /api/v1/mr/sessions/recent", mw.RequireAdmin(admin.RecentSessions))
	mux.HandleFunc("GET /api/v1/mr/session", mw.RequireAdmin(admin.Session))
	mux.HandleFunc("GET /api/v1/mr/session/events", mw.RequireAdmin(admin.SessionEvents))

	// Admin pages
	mux.HandleFunc("GET /admin/login", admin.ShowLogin)
	mux.HandleFunc("POST /admin/login", admin.Login)
	mux.HandleFunc("POST /admin/logout", admin.Logout)
	mux.HandleFunc("GET /admin", mw.RequireAdminPage(admin.Dashboard))
}
