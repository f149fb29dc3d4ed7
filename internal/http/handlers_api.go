package http

import (
	"context"
	"net/http"
	"time"

	"estatecrm/internal/crm"
	"estatecrm/internal/log"
)

// resource is the JSON CRUD surface of one repository. The hooks default to
// the repository methods; services plug in where writes have side effects.
type resource[T crm.Entity, P crm.Stamped[T]] struct {
	name    string
	repo    crm.Repository[T]
	create  func(context.Context, *T) error
	update  func(context.Context, *T) error
	remove  func(context.Context, string) error
	skipGet bool
}

type listBody[T any] struct {
	Items  []T `json:"items"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func registerResource[T crm.Entity, P crm.Stamped[T]](s *Server, mux *http.ServeMux, res resource[T, P]) {
	if res.create == nil {
		res.create = res.repo.Create
	}
	if res.update == nil {
		res.update = res.repo.Update
	}
	if res.remove == nil {
		res.remove = res.repo.Delete
	}

	base := "/api/" + res.name
	s.handle(mux, "GET "+base, res.list, api)
	s.handle(mux, "POST "+base, res.post, api)
	if !res.skipGet {
		s.handle(mux, "GET "+base+"/{id}", res.get, api)
	}
	s.handle(mux, "PUT "+base+"/{id}", res.put, api)
	s.handle(mux, "DELETE "+base+"/{id}", res.delete, api)
}

func (res resource[T, P]) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := res.repo.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody[T]{Items: items, Count: len(items), Limit: f.Limit, Offset: f.Offset})
}

func (res resource[T, P]) get(w http.ResponseWriter, r *http.Request) {
	v, err := res.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// post creates a record. IDs and timestamps are always assigned by the
// store.
func (res resource[T, P]) post(w http.ResponseWriter, r *http.Request) {
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	meta := P(&v).Meta()
	meta.ID = ""
	meta.CreatedAt, meta.UpdatedAt = time.Time{}, time.Time{}

	if err := res.create(r.Context(), &v); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Record created",
		log.FieldOperation, log.OpCreate,
		"resource", res.name,
		"id", v.GetID())
	w.Header().Set("Location", "/api/"+res.name+"/"+v.GetID())
	writeJSON(w, http.StatusCreated, v)
}

func (res resource[T, P]) put(w http.ResponseWriter, r *http.Request) {
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	P(&v).Meta().ID = r.PathValue("id")

	if err := res.update(r.Context(), &v); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (res resource[T, P]) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := res.remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Record deleted",
		log.FieldOperation, log.OpDelete,
		"resource", res.name,
		"id", id)
	w.WriteHeader(http.StatusNoContent)
}
