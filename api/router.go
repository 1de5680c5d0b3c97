package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"objectstore/store"
)

// NewRouter builds the gorilla/mux router for the object store's HTTP
// surface (spec.md §6). Every route except /healthz is wrapped in the auth
// middleware via Chain; each handler then opens its own transaction scope
// through Handlers.run, giving the "auth -> transaction scope -> handler"
// pipeline.
func NewRouter(coord *store.Coordinator, auth *Authenticator) *mux.Router {
	h := NewHandlers(coord)
	authMW := AuthMiddleware(auth)

	r := mux.NewRouter()
	svc := r.PathPrefix("/svc/v1").Subrouter()

	svc.HandleFunc("/healthz", NewHealthHandler(coord).Health).Methods(http.MethodGet)
	svc.HandleFunc("/mappings", Chain(h.ListMappings, authMW)).Methods(http.MethodGet)

	// Aliased operation paths must be registered before the generic
	// {ns}/{object_id}[/{prop}] patterns below, since mux matches routes
	// in registration order and the alias and the generic pattern can
	// have the same path arity.
	svc.HandleFunc("/store/{ns}", Chain(h.Store, authMW)).Methods(http.MethodPost)
	svc.HandleFunc("/retrieve/{ns}/{object_id}", Chain(h.Retrieve, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/retrieve/{ns}/{object_id}/{prop}", Chain(h.Retrieve, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/delete/{ns}/{object_id}", Chain(h.Delete, authMW)).Methods(http.MethodDelete)
	svc.HandleFunc("/query/{ns}/{object_id}", Chain(h.Revisions, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/query/{ns}", Chain(h.NamespaceQuery, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/clear/{ns}", Chain(h.ClearNamespace, authMW)).Methods(http.MethodDelete)

	svc.HandleFunc("/tags/{ns}/{object_id}", Chain(h.Tags, authMW)).
		Methods(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch)

	svc.HandleFunc("/{ns}/{object_id}/revisions", Chain(h.Revisions, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/{ns}/{object_id}/{prop}", Chain(h.Retrieve, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/{ns}/{object_id}", Chain(h.Store, authMW)).Methods(http.MethodPost)
	svc.HandleFunc("/{ns}/{object_id}", Chain(h.Retrieve, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/{ns}/{object_id}", Chain(h.Delete, authMW)).Methods(http.MethodDelete)
	svc.HandleFunc("/{ns}", Chain(h.Store, authMW)).Methods(http.MethodPost)
	svc.HandleFunc("/{ns}", Chain(h.NamespaceQuery, authMW)).Methods(http.MethodGet)
	svc.HandleFunc("/{ns}", Chain(h.ClearNamespace, authMW)).Methods(http.MethodDelete)

	return r
}
