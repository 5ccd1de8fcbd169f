package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mowthos/mowthos-gateway/internal/models"
)

// NewRouter builds the gateway's HTTP route table.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/devices", h.ListDevices).Methods(http.MethodGet)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)

	r.HandleFunc("/start-mow", h.Command(models.CommandStart, "Mowing started successfully")).Methods(http.MethodPost)
	r.HandleFunc("/stop-mow", h.Command(models.CommandStop, "Mowing stopped successfully")).Methods(http.MethodPost)
	r.HandleFunc("/pause-mowing", h.Command(models.CommandPause, "Mowing paused successfully")).Methods(http.MethodPost)
	r.HandleFunc("/resume-mowing", h.Command(models.CommandResume, "Mowing resumed successfully")).Methods(http.MethodPost)
	r.HandleFunc("/return-to-dock", h.Command(models.CommandReturnToDock, "Mower returning to dock")).Methods(http.MethodPost)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return r
}
