package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	store "github.com/likearthian/recordstore"
)

// recordHandler serves table rows as JSON objects.
type recordHandler struct {
	backend store.Backend
}

func newRouter(backend store.Backend) http.Handler {
	h := &recordHandler{backend: backend}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/{table}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.find)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})

	return r
}

func (h *recordHandler) model(r *http.Request) *store.DynamicModel {
	m := store.NewDynamicModel()
	m.SetConnection(h.backend, chi.URLParam(r, "table"))
	return m
}

// list returns every row. limit, offset and sort (comma separated) page the
// result; any other query parameter filters on equality.
func (h *recordHandler) list(w http.ResponseWriter, r *http.Request) {
	m := h.model(r)
	params := r.URL.Query()

	var limit int
	var offset int64
	var err error
	if v := params.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	if v := params.Get("offset"); v != "" {
		if offset, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
	}

	var sorter []string
	if v := params.Get("sort"); v != "" {
		sorter = strings.Split(v, ",")
	}

	var q *store.Query
	for field, values := range params {
		if field == "limit" || field == "offset" || field == "sort" {
			continue
		}

		var value any = values[0]
		if len(values) > 1 {
			value = values
		}

		if q == nil {
			q = m.Where(field, value)
		} else {
			q.Where(field, value)
		}
	}

	var rows []store.Row
	if q == nil {
		rows, err = m.GetAll(r.Context(), store.WithLimit(limit), store.WithOffset(offset), store.WithSorter(sorter...))
	} else {
		rows, err = q.OrderBy(sorter...).Limit(limit).Offset(offset).GetAll(r.Context())
	}

	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

func (h *recordHandler) find(w http.ResponseWriter, r *http.Request) {
	m := h.model(r)

	found, err := m.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if !found {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	writeJSON(w, http.StatusOK, m.Attributes())
}

func (h *recordHandler) create(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	m := h.model(r)
	if err := m.Fill(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.Create(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m.Attributes())
}

func (h *recordHandler) update(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	delete(body, "id")

	m := h.model(r)
	m.Set("id", chi.URLParam(r, "id"))
	if err := m.Fill(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.Update(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *recordHandler) remove(w http.ResponseWriter, r *http.Request) {
	m := h.model(r)
	m.Set("id", chi.URLParam(r, "id"))

	if err := m.Remove(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	return body, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrKeynotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrKeyAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrMissingID):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrUnsupported):
		status = http.StatusNotImplemented
	}

	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
