package handlers

import (
	"net/http"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/services"
)

// ProductHandler exposes the catalog.
type ProductHandler struct {
	catalog *services.CatalogService
	actors  ActorResolver
	log     *logging.Logger
}

func NewProductHandler(catalog *services.CatalogService, actors ActorResolver, log *logging.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, actors: actors, log: log}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.ProductFilter{
		Query:      q.Get("q"),
		ActiveOnly: q.Get("active") == "1" || q.Get("active") == "true",
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
	}
	products, total, err := h.catalog.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPage(products, total, f.Page, f.Limit))
}

func (h *ProductHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	var in services.ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	var in services.ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Deactivate handles POST /api/products/{id}/deactivate.
func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	p, err := h.catalog.Deactivate(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
