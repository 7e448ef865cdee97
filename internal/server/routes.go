package server

import "net/http"

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/scan/organization/{org}/tag/{tag}", s.handleScanOrganization)
	mux.HandleFunc("GET /api/v1/scan/organization/{org}/patterns/{prefix}", s.handleScanPatterns)
	mux.HandleFunc("GET /api/v1/scan/local/tag/{tag}", s.handleScanLocal)

	mux.HandleFunc("GET /api/v1/scans", s.handleListScans)
	mux.HandleFunc("GET /api/v1/scans/{id}", s.handleGetScan)

	mux.HandleFunc("GET /api/v1/document", s.handleDocument)
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
}
