package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aira-technology/tag-scanner/internal/gitsource"
	"github.com/aira-technology/tag-scanner/internal/match"
	"github.com/aira-technology/tag-scanner/internal/model"
	"github.com/aira-technology/tag-scanner/internal/scan"
	"github.com/aira-technology/tag-scanner/internal/transform"
	"github.com/aira-technology/tag-scanner/internal/view"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dataDirOK := true
	if err := os.MkdirAll(s.store.Dir(), 0o755); err != nil {
		dataDirOK = false
	}

	historyOK := true
	if s.history == nil {
		historyOK = false
	} else if err := s.history.PingContext(r.Context()); err != nil {
		historyOK = false
	}

	status := "healthy"
	code := http.StatusOK
	if !dataDirOK || !historyOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":            status,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"github_configured": s.githubSet,
		"data_dir_writable": dataDirOK,
		"history_available": historyOK,
	})
}

func (s *Server) handleScanOrganization(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	tag := r.PathValue("tag")

	// include_patterns defaults on: most callers pass a bare version and
	// expect the v-prefixed tag to match. Only an explicit false disables it.
	kind := match.NormalizedPrefix
	if !boolParamDefault(r, "include_patterns", true) {
		kind = match.Exact
	}

	s.runScan(w, r, s.hosted, org, match.Spec{Version: tag, Kind: kind},
		model.ScanTypeSpecificTag, s.scanOpts)
}

// defaultMaxResults caps pattern scans when the caller does not say otherwise.
const defaultMaxResults = 50

func (s *Server) handleScanPatterns(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	prefix := r.PathValue("prefix")

	opts := s.scanOpts
	opts.MaxResults = defaultMaxResults
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "max_results must be a positive integer")
			return
		}
		opts.MaxResults = n
	}

	s.runScan(w, r, s.hosted, org, match.Spec{Version: prefix, Kind: match.Pattern},
		model.ScanTypePatternMatch, opts)
}

func (s *Server) handleScanLocal(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")

	basePath := r.URL.Query().Get("base_path")
	if basePath == "" {
		basePath = "."
	}
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}

	// Local scans are always sequential; the repositories share one disk.
	opts := s.scanOpts
	opts.Workers = 1

	s.runScan(w, r, s.local, basePath, match.Spec{Version: tag, Kind: match.NormalizedPrefix},
		model.ScanTypeLocalScan, opts)
}

// runScan executes a scan against the given source, records it in the
// history, optionally persists the transformed document (?save=true), and
// writes the raw ScanResult back.
func (s *Server) runScan(w http.ResponseWriter, r *http.Request, source gitsource.TagSource, scope string, spec match.Spec, scanType string, opts scan.Options) {
	orch := scan.New(source, s.logger)

	result, err := orch.Run(r.Context(), scope, spec, opts)
	if err != nil {
		if errors.Is(err, gitsource.ErrUnreachable) {
			writeError(w, http.StatusBadGateway, "source_unreachable", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "scan_failed", err.Error())
		return
	}

	if s.history != nil {
		if _, err := s.history.RecordScan(r.Context(), scanType, scope, spec.Version, result); err != nil {
			s.logger.Warn("failed to record scan", "error", err)
		}
	}

	if boolParam(r, "save") {
		if err := s.persist(scope, scanType, result); err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusConflict, "invalid_document", verr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "persist_failed", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// persist merges the result into the canonical document and refreshes the
// materialized views under the same data dir.
func (s *Server) persist(scope, scanType string, result *model.ScanResult) error {
	org := scope
	if scanType == model.ScanTypeLocalScan {
		org = "local"
	}

	doc, err := s.store.Update(func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error) {
		return transform.Transform(result, existing, s.deployCfg, transform.Options{
			Organization: org,
			ScanType:     scanType,
		})
	})
	if err != nil {
		return err
	}

	summary, envs := view.Materialize(doc, view.AllStatuses)
	if err := s.store.SaveSummary(summary); err != nil {
		return err
	}
	return s.store.SaveEnvironments(envs)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_unavailable", "scan history is not configured")
		return
	}

	limit := intParam(r, "limit", 50)
	offset := intParam(r, "offset", 0)

	records, err := s.history.ListScans(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	if records == nil {
		records = []model.ScanRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scans": records,
		"count": len(records),
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_unavailable", "scan history is not configured")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "id must be an integer")
		return
	}

	record, err := s.history.GetScan(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.LoadDocument()
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusInternalServerError, "invalid_document", verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "not_found", "no document has been persisted yet")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.LoadDocument()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "not_found", "no document has been persisted yet")
		return
	}

	policy := view.AllStatuses
	if boolParam(r, "deployed_only") {
		policy = view.DeployedOnly
	}

	summary, _ := view.Materialize(doc, policy)
	writeJSON(w, http.StatusOK, summary)
}

func boolParam(r *http.Request, name string) bool {
	return boolParamDefault(r, name, false)
}

func boolParamDefault(r *http.Request, name string, def bool) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{
		"error":   kind,
		"message": message,
	})
}
