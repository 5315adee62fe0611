package export

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/export"
	"tag-designer/handlers/api/templates"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Exporter renders a document into a downloadable artifact.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Artifact, error)
}

type request struct {
	Format      string  `json:"format"`
	Quality     float64 `json:"quality"`
	Scale       float64 `json:"scale"`
	IncludeGrid bool    `json:"includeGrid"`
	GridSize    float64 `json:"gridSize"`
}

// HandleExportTemplate renders a saved template server-side and streams
// the artifact back as an attachment.
func HandleExportTemplate(store core.TemplateStore, exporter Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := templates.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{"userID": userID, "id": id})

		var body request
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			templates.RespondError(w, r, core.Validationf("invalid request body"), "")
			return
		}
		format, err := export.ParseFormat(body.Format)
		if err != nil {
			templates.RespondError(w, r, err, "")
			return
		}

		tpl, err := store.Get(r.Context(), userID, id)
		if err != nil {
			log.WithField("error", err).Warn("Failed to get template for export")
			templates.RespondError(w, r, err, "Export failed")
			return
		}
		doc, err := document.FromTemplate(tpl)
		if err != nil {
			templates.RespondError(w, r, err, "Export failed")
			return
		}

		art, err := exporter.Export(r.Context(), export.Request{
			Document:    doc,
			Format:      format,
			Quality:     body.Quality,
			Scale:       body.Scale,
			IncludeGrid: body.IncludeGrid,
			GridSize:    body.GridSize,
			Name:        tpl.Name,
		})
		if err != nil {
			log.WithField("error", err).Error("Failed to export template")
			templates.RespondError(w, r, err, "Export failed")
			return
		}

		w.Header().Set("Content-Type", art.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
		w.WriteHeader(http.StatusOK)
		w.Write(art.Data)
	}
}
