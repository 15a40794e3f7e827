// Package web serves the device API used by the companion web page.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/glebovdev/radiobox/internal/appliance"
	"github.com/glebovdev/radiobox/internal/command"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/station"
	"github.com/glebovdev/radiobox/internal/urlguard"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const maxImportBytes = 64 << 10

// Device is the part of the appliance the API may touch: the station registry, the
// command queue and read-only snapshots.
type Device interface {
	Registry() *station.Registry
	Enqueue(cmd command.Command) bool
	MarkBusy()
	Status() appliance.Status
	Visualizer() string
	SetVisualizer(name string) error
}

// Handler exposes the device endpoints.
type Handler struct {
	dev Device
}

func NewHandler(dev Device) *Handler {
	return &Handler{dev: dev}
}

type stationsInfo struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Available int `json:"available"`
}

type visualizerStyle struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ListStations handles GET /api/stations.
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	h.dev.MarkBusy()
	writeJSON(w, http.StatusOK, station.Records(h.dev.Registry().Snapshot()))
}

// StationsInfo handles GET /api/stations/info.
func (h *Handler) StationsInfo(w http.ResponseWriter, r *http.Request) {
	reg := h.dev.Registry()
	writeJSON(w, http.StatusOK, stationsInfo{
		Current:   reg.Len(),
		Max:       reg.Limit(),
		Available: reg.Remaining(),
	})
}

// AddStation handles POST /api/add with form fields name and url.
func (h *Handler) AddStation(w http.ResponseWriter, r *http.Request) {
	reg := h.dev.Registry()
	if reg.Remaining() <= 0 {
		writeText(w, http.StatusBadRequest, limitMessage(reg.Limit()))
		return
	}

	name, url := strings.TrimSpace(r.PostFormValue("name")), strings.TrimSpace(r.PostFormValue("url"))
	if name == "" || url == "" {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if !validURL(w, url) {
		return
	}

	if err := reg.Add(station.Station{Name: name, URL: url}); err != nil {
		if errors.Is(err, station.ErrLimitReached) {
			writeText(w, http.StatusBadRequest, limitMessage(reg.Limit()))
			return
		}
		log.Error().Err(err).Msg("Failed to add station")
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	log.Info().Str("name", name).Str("url", urlguard.SanitizeForLog(url)).Msg("Station added")
	h.saveStations()
	writeText(w, http.StatusOK, "OK")
}

// DeleteStation handles POST /api/delete with form field name.
func (h *Handler) DeleteStation(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	if name == "" {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if h.dev.Registry().Remove(name) {
		log.Info().Str("name", name).Msg("Station removed")
	}
	h.saveStations()
	writeText(w, http.StatusOK, "OK")
}

// UpdateStation handles POST /api/update with form fields originalName, name and url.
func (h *Handler) UpdateStation(w http.ResponseWriter, r *http.Request) {
	orig := r.PostFormValue("originalName")
	name, url := strings.TrimSpace(r.PostFormValue("name")), strings.TrimSpace(r.PostFormValue("url"))
	if orig == "" || name == "" || url == "" {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if !validURL(w, url) {
		return
	}

	if err := h.dev.Registry().Update(orig, name, url); err != nil {
		if errors.Is(err, station.ErrNotFound) {
			writeText(w, http.StatusNotFound, "Station not found")
			return
		}
		log.Error().Err(err).Msg("Failed to update station")
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	log.Info().Str("from", orig).Str("name", name).Str("url", urlguard.SanitizeForLog(url)).Msg("Station updated")
	h.saveStations()
	writeText(w, http.StatusOK, "OK")
}

// ReorderStations handles POST /api/stations/order with a JSON array of names.
func (h *Handler) ReorderStations(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		log.Debug().Err(err).Msg("Invalid order body")
		writeText(w, http.StatusBadRequest, "Invalid station order data")
		return
	}

	if err := h.dev.Registry().Reorder(names); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid station order data")
		return
	}

	h.saveStations()
	writeText(w, http.StatusOK, "Order saved")
}

// ExportStations handles GET /api/stations/export.
func (h *Handler) ExportStations(w http.ResponseWriter, r *http.Request) {
	h.dev.MarkBusy()
	data, err := yaml.Marshal(station.Records(h.dev.Registry().Snapshot()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode stations")
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", config.StationsFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportStations handles POST /api/stations/import with a YAML station list as the body.
// The list replaces the registry only when every address passes validation.
func (h *Handler) ImportStations(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	var records []station.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		log.Debug().Err(err).Msg("Invalid import body")
		writeText(w, http.StatusBadRequest, "Invalid station list")
		return
	}

	valid := make([]station.Record, 0, len(records))
	for _, rec := range records {
		if rec.Name == "" || rec.URL == "" {
			continue
		}
		if result := urlguard.Validate(rec.URL); result != urlguard.Valid {
			writeText(w, http.StatusBadRequest, fmt.Sprintf("Invalid URL for %s: %s", rec.Name, result.Message()))
			return
		}
		valid = append(valid, rec)
	}

	reg := h.dev.Registry()
	reg.Replace(station.FromRecords(valid))
	log.Info().Int("count", reg.Len()).Msg("Stations imported")
	h.saveStations()
	writeText(w, http.StatusOK, "Import successful")
}

// Next handles POST /api/player/next.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, command.Next(), "OK")
}

// Previous handles POST /api/player/previous.
func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, command.Previous(), "OK")
}

// Volume handles POST /api/player/volume with form field volume in [0, 1].
func (h *Handler) Volume(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.ParseFloat(r.PostFormValue("volume"), 64)
	if err != nil || math.IsNaN(v) || v < config.MinVolume || v > config.MaxVolume {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	h.enqueue(w, command.Volume(v), "OK")
}

// Reboot handles POST /api/system/reboot.
func (h *Handler) Reboot(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, command.Reboot(), "Rebooting...")
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dev.Status())
}

// VisualizerStyle handles GET /api/visualizer/style.
func (h *Handler) VisualizerStyle(w http.ResponseWriter, r *http.Request) {
	name := h.dev.Visualizer()
	writeJSON(w, http.StatusOK, visualizerStyle{ID: styleID(name), Name: name})
}

// SetVisualizerStyle handles POST /api/visualizer/style with form field style, given
// either as a name or as an index into the style list.
func (h *Handler) SetVisualizerStyle(w http.ResponseWriter, r *http.Request) {
	style := r.PostFormValue("style")
	if style == "" {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if i, err := strconv.Atoi(style); err == nil && i >= 0 && i < len(config.VisualizerStyles) {
		style = config.VisualizerStyles[i]
	}

	if err := h.dev.SetVisualizer(style); err != nil {
		if errors.Is(err, appliance.ErrUnknownVisualizer) {
			writeText(w, http.StatusBadRequest, "Invalid style")
			return
		}
		log.Error().Err(err).Msg("Failed to set visualizer style")
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeText(w, http.StatusOK, "OK")
}

// VisualizerStyles handles GET /api/visualizer/styles.
func (h *Handler) VisualizerStyles(w http.ResponseWriter, r *http.Request) {
	styles := make([]visualizerStyle, len(config.VisualizerStyles))
	for i, name := range config.VisualizerStyles {
		styles[i] = visualizerStyle{ID: i, Name: name}
	}
	writeJSON(w, http.StatusOK, styles)
}

func (h *Handler) enqueue(w http.ResponseWriter, cmd command.Command, ok string) {
	if !h.dev.Enqueue(cmd) {
		writeText(w, http.StatusServiceUnavailable, "Queue full, try again")
		return
	}
	writeText(w, http.StatusOK, ok)
}

// saveStations asks the tick loop to persist the registry. A full queue only delays the
// write until the next registry change.
func (h *Handler) saveStations() {
	if !h.dev.Enqueue(command.SaveStations()) {
		log.Warn().Msg("Could not schedule station save, queue full")
	}
}

func validURL(w http.ResponseWriter, url string) bool {
	result := urlguard.Validate(url)
	if result == urlguard.Valid {
		return true
	}
	log.Warn().Str("url", urlguard.SanitizeForLog(url)).Str("reason", result.String()).Msg("Rejected station URL")
	writeText(w, http.StatusBadRequest, "Invalid URL: "+result.Message())
	return false
}

func limitMessage(limit int) string {
	return fmt.Sprintf("Maximum stations limit reached (%d)", limit)
}

func styleID(name string) int {
	for i, s := range config.VisualizerStyles {
		if s == name {
			return i
		}
	}
	return -1
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
