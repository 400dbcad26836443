package statsapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/mpetrov/chessmatch/internal/obslog"
	"github.com/mpetrov/chessmatch/internal/records"
)

// Server is a small read-only HTTP sidecar: liveness plus record lookups.
// It never touches coordinator state.
type Server struct {
	store records.Store
	srv   *fasthttp.Server
}

func NewServer(store records.Store) *Server {
	s := &Server{store: store}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

// Serve accepts on a caller-provided listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok\n")
	case "/records":
		s.handleRecord(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleRecord(ctx *fasthttp.RequestCtx) {
	name := strings.TrimSpace(string(ctx.QueryArgs().Peek("name")))
	if name == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("missing name parameter\n")
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := s.store.Get(rctx, name)
	if err != nil {
		obslog.L().Warn("stats_record_error", zap.String("name", name), zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}
