package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"live-interpreter-service/internal/app"
	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/service/transcribe"
	"live-interpreter-service/internal/service/transcript"
)

// Deps are the collaborators behind the API.
type Deps struct {
	Session     SessionController
	Log         *transcript.Log
	Hub         *Hub
	Translator  Translator
	Synthesizer Synthesizer
	Transcriber transcribe.Transcriber
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, deps Deps) http.Handler {
	h := &handlers{
		session:     deps.Session,
		log:         deps.Log,
		translator:  deps.Translator,
		synthesizer: deps.Synthesizer,
		transcriber: deps.Transcriber,
		logger:      logging.WithComponent("http"),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if application != nil && !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/languages", h.languages)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.status)
			r.Post("/start", h.start)
			r.Post("/switch", h.switchSpeaker)
			r.Post("/stop", h.stop)
			r.Post("/clear", h.clear)
			r.Put("/config", h.updateConfig)
		})

		r.Get("/transcripts", h.transcripts)
		if deps.Hub != nil {
			r.Get("/transcripts/ws", deps.Hub.ServeWS)
		}

		r.Post("/translate", h.translate)
		r.Post("/speak", h.speak)
		r.Post("/transcribe", h.transcribe)
	})

	return r
}
