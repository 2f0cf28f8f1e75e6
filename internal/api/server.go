package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
}

const (
	StatusError = "ERROR"
	StatusOk    = "OK"
)

// NewServer creates a server on address. Routes are added before ListenAndServe.
func NewServer(address string) *Server {
	srv := &http.Server{
		Addr:         address,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
	}
	apiServer := &Server{
		httpServer: srv,
		router:     mux.NewRouter(),
	}
	apiServer.httpServer.Handler = apiServer.router
	return apiServer
}

func (w *Server) ListenAndServe() {
	go func() {
		log.Infof("[api] Server started at %s", w.httpServer.Addr)
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("[api] %v", err)
		}
	}()
}

func (w *Server) Shutdown(ctx context.Context) error {
	return w.httpServer.Shutdown(ctx)
}

func (w *Server) Handler() http.Handler {
	return w.router
}

func (w *Server) PathPrefix(path string, handler http.Handler) {
	w.router.PathPrefix(path).Handler(handler)
}

func (w *Server) AppendRoute(path string, handler func(http.ResponseWriter, *http.Request), methods ...string) {
	r := w.router.HandleFunc(path, LoggingMiddleware("API", handler))
	if len(methods) > 0 {
		r.Methods(methods...)
	}
}

type Response struct {
	Status string      `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func WriteResponse(writer http.ResponseWriter, response interface{}) error {
	jsonResponse, err := json.Marshal(response)
	if err != nil {
		return err
	}
	writer.Header().Set("Content-Type", "application/json")
	_, err = writer.Write(jsonResponse)
	return err
}

// WriteError writes a JSON error response with the given status code.
func WriteError(writer http.ResponseWriter, code int, err error) {
	log.Warnf("[api] %v", err)
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(code)
	jsonResponse, _ := json.Marshal(Response{Status: StatusError, Reason: err.Error()})
	_, _ = writer.Write(jsonResponse)
}
