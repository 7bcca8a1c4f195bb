package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmw "github.com/meetwire/signal-service/internal/transport/http/middleware"
	"github.com/meetwire/signal-service/internal/transport/ws"
)

func NewRouter(h *Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// Signaling endpoint; token check happens inside the handler before the
	// upgrade.
	r.Get("/ws", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Logging)
		pr.Use(httpmw.AuthMiddleware)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/sessions", func(sr chi.Router) {
			sr.Post("/", h.CreateSession)
			sr.Get("/", h.ListSessions)

			sr.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetSession)
				rr.Get("/participants", h.GetParticipants)
				rr.Post("/join", h.JoinSession)
				rr.Post("/leave", h.LeaveSession)
				rr.Post("/end", h.EndSession)
				rr.Get("/streams", h.ListSessionStreams)
			})
		})

		pr.Route("/streams/{id}", func(sr chi.Router) {
			sr.Get("/", h.GetStream)
			sr.Post("/stop", h.StopStream)
			sr.Put("/quality", h.SetStreamQuality)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
