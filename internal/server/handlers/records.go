package handlers

import (
	"net/http"

	"github.com/agentstation/shelf/internal/server/filter"
	"github.com/agentstation/shelf/internal/server/response"
	ws "github.com/agentstation/shelf/internal/server/websocket"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/query"
)

// HandleRecords handles GET {prefix}/records?q=&category=.
// It performs one merged load against the server-wide external snapshot.
func (h *Handlers) HandleRecords(w http.ResponseWriter, r *http.Request) {
	f := filter.ParseRecordFilter(r)

	recs, err := h.client.Load(r.Context(), f.Query, f.Category)
	if err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("Record load failed")
		response.ErrorFromType(w, err)
		return
	}
	recs = f.Apply(recs)

	views := make([]ws.RecordView, len(recs))
	for i, rec := range recs {
		views[i] = ws.RecordView{Record: rec, Link: rec.ReaderLink()}
	}

	response.OK(w, map[string]any{
		"records":    views,
		"count":      len(views),
		"query":      f.Query,
		"category":   f.Category,
		"categories": query.Categories(recs),
	})
}
