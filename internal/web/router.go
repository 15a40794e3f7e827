package web

import (
	"net/http"

	"github.com/glebovdev/radiobox/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the device API. m may be nil, in which case /metrics is not served.
// updateGauges runs before each metrics scrape.
func NewRouter(h *Handler, m *metrics.Metrics, updateGauges func()) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Method(http.MethodGet, "/metrics", m.Handler(updateGauges))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)

		r.Get("/stations", h.ListStations)
		r.Get("/stations/info", h.StationsInfo)
		r.Get("/stations/export", h.ExportStations)
		r.Post("/stations/import", h.ImportStations)
		r.Post("/stations/order", h.ReorderStations)
		r.Post("/add", h.AddStation)
		r.Post("/delete", h.DeleteStation)
		r.Post("/update", h.UpdateStation)

		r.Route("/player", func(r chi.Router) {
			r.Post("/next", h.Next)
			r.Post("/previous", h.Previous)
			r.Post("/volume", h.Volume)
		})

		r.Get("/visualizer/style", h.VisualizerStyle)
		r.Post("/visualizer/style", h.SetVisualizerStyle)
		r.Get("/visualizer/styles", h.VisualizerStyles)

		r.Post("/system/reboot", h.Reboot)
	})

	return r
}
