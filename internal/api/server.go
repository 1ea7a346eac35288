// Package api exposes the schema-mapping engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/internal/detector"
	"github.com/user/fieldbridge/internal/registry"
	"github.com/user/fieldbridge/pkg/importer"
)

type Server struct {
	storage  registry.Storage
	detector *detector.Detector
	executor *importer.Executor
	logger   fieldbridge.Logger
}

func NewServer(store registry.Storage, det *detector.Detector, exec *importer.Executor, logger fieldbridge.Logger) *Server {
	if logger == nil {
		logger = fieldbridge.NopLogger{}
	}
	return &Server{storage: store, detector: det, executor: exec, logger: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/mappings/detect", s.detectDrift)
	mux.HandleFunc("GET /api/mappings", s.listMappings)
	mux.HandleFunc("POST /api/mappings/activate", s.activateMapping)
	mux.HandleFunc("POST /api/compile", s.compileMappingSet)
	mux.HandleFunc("POST /api/import", s.executeImport)

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// respond writes the success envelope shared by every endpoint.
func (s *Server) respond(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// respondError writes the failure envelope: a stable error code plus a
// human-readable message.
func (s *Server) respondError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]any{"success": false, "error": errCode}
	if message != "" {
		body["message"] = message
	}
	_ = json.NewEncoder(w).Encode(body)
}
