package routes

import (
	"net/http"

	"github.com/terabiome/testbed/internal/handler"
)

// Router wraps http.ServeMux and provides route setup
type Router struct {
	*http.ServeMux
}

// V1Handler returns a handler for v1 API routes
func (router *Router) V1Handler(placementHandler *handler.Placement) http.Handler {
	mux := http.NewServeMux()

	placementMux := http.NewServeMux()
	placementMux.HandleFunc("POST /plan", placementHandler.Plan)
	mux.Handle("/placement/", http.StripPrefix("/placement", placementMux))

	return mux
}

// SetupMux creates and configures the main router
func SetupMux(placementHandler *handler.Placement) *Router {
	router := Router{http.NewServeMux()}

	router.ServeMux.Handle("/api/v1/", http.StripPrefix("/api/v1", router.V1Handler(placementHandler)))

	router.ServeMux.HandleFunc("/heartbeat", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
		writer.Write([]byte("i have not exploded"))
	})

	return &router
}
