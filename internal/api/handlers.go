package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/internal/registry"
	"github.com/user/fieldbridge/pkg/compiler"
	"github.com/user/fieldbridge/pkg/importer"
	"github.com/user/fieldbridge/pkg/sampler"
	"github.com/user/fieldbridge/pkg/transform"
)

func (s *Server) detectDrift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MappingKey string `json:"mapping_key"`
		RecordType string `json:"record_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.MappingKey == "" && req.RecordType == "" {
		s.respondError(w, http.StatusBadRequest, "validation_error", "mapping_key or record_type is required")
		return
	}

	recordType := req.RecordType
	if recordType == "" {
		// Resolve the record type through the mapping's stored association.
		rt, err := s.storage.RecordType(r.Context(), req.MappingKey)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				s.respondError(w, http.StatusNotFound, "not_found", "unknown mapping key: "+req.MappingKey)
				return
			}
			s.respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		recordType = rt
	}

	mappingKey := req.MappingKey
	if mappingKey == "" {
		mappingKey = recordType
	}

	res, err := s.detector.Detect(r.Context(), mappingKey, recordType)
	if err != nil {
		var srcErr *sampler.SourceUnavailableError
		if errors.As(err, &srcErr) {
			DetectRuns.WithLabelValues("source_unavailable").Inc()
			s.respondError(w, http.StatusInternalServerError, "source_unavailable", srcErr.Error())
			return
		}
		DetectRuns.WithLabelValues("error").Inc()
		s.respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	DetectRuns.WithLabelValues("ok").Inc()
	FieldsProposed.Add(float64(res.Inserted))
	s.respond(w, http.StatusOK, res)
}

func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) {
	mappingKey := r.URL.Query().Get("mapping_key")
	includeActive := r.URL.Query().Get("include_active") == "true"

	fields, err := s.storage.ListPending(r.Context(), mappingKey, includeActive)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"total":  len(fields),
		"fields": fields,
	})
}

func (s *Server) activateMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MappingKey   string `json:"mapping_key"`
		SourceField  string `json:"source_field"`
		Active       bool   `json:"active"`
		TargetColumn string `json:"target_column"`
		TargetType   string `json:"target_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.MappingKey == "" || req.SourceField == "" {
		s.respondError(w, http.StatusBadRequest, "validation_error", "mapping_key and source_field are required")
		return
	}

	if req.TargetColumn != "" || req.TargetType != "" {
		if err := s.storage.UpdateTarget(r.Context(), req.MappingKey, req.SourceField, req.TargetColumn, req.TargetType); err != nil {
			s.reviewError(w, req.MappingKey, req.SourceField, err)
			return
		}
	}
	if err := s.storage.SetActive(r.Context(), req.MappingKey, req.SourceField, req.Active); err != nil {
		s.reviewError(w, req.MappingKey, req.SourceField, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"mapping_key":  req.MappingKey,
		"source_field": req.SourceField,
		"active":       req.Active,
	})
}

func (s *Server) reviewError(w http.ResponseWriter, mappingKey, sourceField string, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "not_found", "no mapping for "+mappingKey+"/"+sourceField)
		return
	}
	s.respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
}

type wireMapping struct {
	SourceField     string            `json:"source_field"`
	TargetField     string            `json:"target_field"`
	SourceType      string            `json:"source_type"`
	TargetType      string            `json:"target_type"`
	TransformType   string            `json:"transform_type"`
	TransformConfig map[string]string `json:"transform_config"`
	Required        bool              `json:"required"`
}

func toCompilerMappings(wire []wireMapping) []compiler.Mapping {
	out := make([]compiler.Mapping, 0, len(wire))
	for _, m := range wire {
		rule := transform.Rule{Kind: transform.Kind(m.TransformType), Config: m.TransformConfig}
		if m.TransformType == "" {
			rule = transform.Direct()
		}
		out = append(out, compiler.Mapping{
			SourceField:  m.SourceField,
			TargetColumn: m.TargetField,
			TargetType:   m.TargetType,
			SourceType:   fieldbridge.FieldType(m.SourceType),
			Required:     m.Required,
			Rule:         rule,
		})
	}
	return out
}

func (s *Server) compileMappingSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetTable       string          `json:"target_table"`
		Mappings          json.RawMessage `json:"mappings"`
		PrimaryKey        string          `json:"primary_key"`
		CreateIfNotExists bool            `json:"create_if_not_exists"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	wire, err := decodeMappings(req.Mappings)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	stmt, err := compiler.Compile(req.TargetTable, toCompilerMappings(wire), req.PrimaryKey, !req.CreateIfNotExists)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"sql":  stmt.SQL,
		"mode": stmt.Mode,
	})
}

func (s *Server) executeImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetTable string               `json:"target_table"`
		Mappings    json.RawMessage      `json:"mappings"`
		SourceRows  []fieldbridge.Record `json:"source_rows"`
		PrimaryKey  string               `json:"primary_key"`
		Mode        string               `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	mode := compiler.Mode(req.Mode)
	if mode != compiler.ModeCreate && mode != compiler.ModeUpsert {
		s.respondError(w, http.StatusBadRequest, "validation_error", "mode must be create or upsert")
		return
	}

	wire, err := decodeMappings(req.Mappings)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := s.executor.Execute(r.Context(), importer.Request{
		TargetTable: req.TargetTable,
		Mappings:    toCompilerMappings(wire),
		PrimaryKey:  req.PrimaryKey,
		Mode:        mode,
		Rows:        req.SourceRows,
	})
	if err != nil {
		// Destination failures are storage-class, not caller mistakes.
		var destErr *importer.DestinationError
		if errors.Is(err, importer.ErrNoDestination) || errors.As(err, &destErr) {
			s.respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	RowsImported.Add(float64(res.Imported))
	RowErrors.Add(float64(len(res.Errors)))

	s.respond(w, http.StatusOK, map[string]any{
		"imported": res.Imported,
		"skipped":  res.Skipped,
		"errors":   res.Errors,
		"run_id":   res.RunID,
	})
}
