// Package fixture serves a local copy of the settings page contract:
// a #settings-button that toggles the "hidden" class on #settings-panel and
// a #hsk-level select defaulting to 3, persisted in localStorage.
// It exists so the runner can be exercised end to end in tests.
package fixture

import (
	"embed"
	"io/fs"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
)

//go:embed page
var pageFS embed.FS

// Handler serves the page at "/" and its assets
func Handler() http.Handler {
	sub, err := fs.Sub(pageFS, "page")
	if err != nil {
		panic(err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	router.PathPrefix("/").Handler(http.FileServer(http.FS(sub))).Methods("GET", "HEAD")
	return router
}

// NewServer starts the page on a random loopback port
func NewServer() *httptest.Server {
	return httptest.NewServer(Handler())
}
