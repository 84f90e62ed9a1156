package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/httputil"
)

// searchAudit handles GET /audit/events
func (s *Server) searchAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := s.service.SearchAudit(r.Context(), actor(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}

// exportAudit handles GET /audit/export?format=json|ndjson|csv
func (s *Server) exportAudit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format := audit.ExportFormat(query.Get("format"))
	switch format {
	case "":
		format = audit.ExportFormatJSON
	case audit.ExportFormatJSON, audit.ExportFormatNDJSON, audit.ExportFormatCSV:
	default:
		httputil.WriteBadRequest(w, fmt.Sprintf("unsupported export format: %s", format))
		return
	}

	filter, err := parseAuditFilter(query)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := s.service.SearchAudit(r.Context(), actor(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := audit.Export(events, format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.%s", time.Now().UTC().Format("20060102T150405Z"), format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseAuditFilter reads start, end (RFC 3339), user_id, event_type
// (repeatable), status, limit and offset
func parseAuditFilter(query url.Values) (audit.SearchFilter, error) {
	var filter audit.SearchFilter

	for _, p := range []struct {
		key  string
		dest **time.Time
	}{{"start", &filter.StartTime}, {"end", &filter.EndTime}} {
		if v := query.Get(p.key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, fmt.Errorf("invalid %s: %s", p.key, v)
			}
			*p.dest = &t
		}
	}

	if v := query.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid user_id: %s", v)
		}
		filter.UserID = &id
	}

	for _, v := range query["event_type"] {
		filter.EventTypes = append(filter.EventTypes, audit.EventType(v))
	}
	filter.Status = audit.EventStatus(query.Get("status"))

	for _, p := range []struct {
		key  string
		dest *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		if v := query.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return filter, fmt.Errorf("invalid %s: %s", p.key, v)
			}
			*p.dest = n
		}
	}

	return filter, nil
}
