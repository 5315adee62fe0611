package templates

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// MaxPageLimit caps the page size a client may request.
const MaxPageLimit = 100

type listResponse struct {
	Templates []*core.Template `json:"templates"`
	Total     int              `json:"total"`
	Page      int              `json:"page"`
	Limit     int              `json:"limit"`
}

// payload is the writable part of a template. Canvas accepts either a
// serialized document string or the document object itself.
type payload struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Width       *float64        `json:"width"`
	Height      *float64        `json:"height"`
	Canvas      json.RawMessage `json:"canvas"`
	Thumbnail   *string         `json:"thumbnail"`
}

// RespondError maps err onto a status code and a JSON error body.
func RespondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, msg = http.StatusNotFound, "Template not found"
	case errors.Is(err, core.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrConflictOnExport):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrTransport):
		status = http.StatusBadGateway
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// UserID returns the caller's user ID, answering 401 when the request
// carries no claims.
func UserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.Claims(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return "", false
	}
	return claims.UserID(), true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func HandleListTemplates(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(w, r)
		if !ok {
			return
		}
		page := queryInt(r, "page", 1)
		limit := min(queryInt(r, "limit", core.DefaultPageLimit), MaxPageLimit)

		list, total, err := store.List(r.Context(), userID, page, limit)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": userID,
			}).Error("Failed to list templates")
			RespondError(w, r, err, "Failed to fetch templates")
			return
		}

		// Return an empty slice instead of null.
		if list == nil {
			list = []*core.Template{}
		}
		render.JSON(w, r, listResponse{Templates: list, Total: total, Page: page, Limit: limit})
	}
}

func HandleGetTemplate(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		tpl, err := store.Get(r.Context(), userID, id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": userID,
				"id":     id,
			}).Warn("Failed to get template")
			RespondError(w, r, err, "Failed to fetch template")
			return
		}
		render.JSON(w, r, tpl)
	}
}

func HandleCreateTemplate(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(w, r)
		if !ok {
			return
		}

		var body payload
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			RespondError(w, r, core.Validationf("invalid request body"), "")
			return
		}

		tpl := &core.Template{UserID: userID}
		if err := body.apply(tpl); err != nil {
			RespondError(w, r, err, "")
			return
		}
		if err := store.Save(r.Context(), tpl); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": userID,
			}).Error("Failed to create template")
			RespondError(w, r, err, "Failed to create template")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, tpl)
	}
}

// HandleUpdateTemplate merges the fields present in the body into the stored template.
func HandleUpdateTemplate(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{"userID": userID, "id": id})

		var body payload
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			RespondError(w, r, core.Validationf("invalid request body"), "")
			return
		}

		tpl, err := store.Get(r.Context(), userID, id)
		if err != nil {
			log.WithField("error", err).Warn("Failed to get template for update")
			RespondError(w, r, err, "Failed to update template")
			return
		}
		if err := body.apply(tpl); err != nil {
			RespondError(w, r, err, "")
			return
		}
		if err := store.Save(r.Context(), tpl); err != nil {
			log.WithField("error", err).Error("Failed to update template")
			RespondError(w, r, err, "Failed to update template")
			return
		}
		render.JSON(w, r, tpl)
	}
}

func HandleDeleteTemplate(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		if err := store.Delete(r.Context(), userID, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": userID,
				"id":     id,
			}).Warn("Failed to delete template")
			RespondError(w, r, err, "Failed to delete template")
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// apply copies the fields present in p onto t. A canvas must parse as a
// document; its size fills in a missing width or height.
func (p *payload) apply(t *core.Template) error {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Thumbnail != nil {
		t.Thumbnail = *p.Thumbnail
	}
	if p.Width != nil {
		t.Width = *p.Width
	}
	if p.Height != nil {
		t.Height = *p.Height
	}
	if len(p.Canvas) > 0 && string(p.Canvas) != "null" {
		canvas := string(p.Canvas)
		var s string
		if json.Unmarshal(p.Canvas, &s) == nil {
			canvas = s
		}
		doc, err := document.Parse(canvas)
		if err != nil {
			return err
		}
		if p.Width == nil {
			t.Width = doc.Width
		}
		if p.Height == nil {
			t.Height = doc.Height
		}
		t.Canvas = canvas
	}
	return t.Validate()
}
