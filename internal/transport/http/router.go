// Package http exposes the operational HTTP surface: health probes, metrics,
// the manual sync trigger and the admin endpoints for notification addresses
// and person contact lookups.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	orgmodels "profil/internal/organization/models"
	orgservice "profil/internal/organization/service"
	profilemodels "profil/internal/profile/models"
	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
)

// Runner starts one sync run to completion.
type Runner interface {
	Run(ctx context.Context) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Pinger covers *sql.DB readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AddressService edits organization notification addresses.
type AddressService interface {
	ListAddresses(ctx context.Context, orgNumber string) ([]*orgmodels.NotificationAddress, error)
	CreateAddress(ctx context.Context, orgNumber string, input orgservice.AddressInput) (*orgmodels.NotificationAddress, error)
	UpdateAddress(ctx context.Context, addressID uuid.UUID, input orgservice.AddressInput) (*orgmodels.NotificationAddress, error)
	DeleteAddress(ctx context.Context, addressID uuid.UUID) error
}

// ProfileService reads synced person contact details.
type ProfileService interface {
	GetContactDetails(ctx context.Context, nin string) (*profilemodels.PersonContactRecord, error)
}

// Deps wires the router to the rest of the process. Nil services leave their
// endpoints unregistered.
type Deps struct {
	DB        Pinger
	Redis     HealthChecker // nil when Redis is not configured
	Jobs      map[models.SourceType]Runner
	Addresses AddressService
	Profiles  ProfileService
	Log       *slog.Logger
}

// NewRouter builds the ops router.
func NewRouter(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable", "postgres": err.Error(),
				})
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable", "redis": err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/admin/sync/{source}/run", func(w http.ResponseWriter, req *http.Request) {
		source := models.SourceType(chi.URLParam(req, "source"))
		runner, ok := deps.Jobs[source]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "unknown sync source",
			})
			return
		}

		// Fire and forget; the run lock rejects overlap and the run outlives
		// the request.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if err := runner.Run(ctx); err != nil {
				log.Error("manual sync run failed", "source", string(source), "error", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "started", "source": string(source),
		})
	})

	if deps.Addresses != nil {
		registerAddressRoutes(r, deps.Addresses)
	}
	if deps.Profiles != nil {
		r.Get("/admin/persons/{nin}/contact", func(w http.ResponseWriter, req *http.Request) {
			rec, err := deps.Profiles.GetContactDetails(req.Context(), chi.URLParam(req, "nin"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})
	}

	return r
}

type addressRequest struct {
	AddressType      string `json:"addressType"`
	Domain           string `json:"domain"`
	Address          string `json:"address"`
	NotificationName string `json:"notificationName"`
}

func (a addressRequest) input() orgservice.AddressInput {
	return orgservice.AddressInput{
		AddressType:      orgmodels.AddressType(a.AddressType),
		Domain:           a.Domain,
		Address:          a.Address,
		NotificationName: a.NotificationName,
	}
}

func registerAddressRoutes(r chi.Router, svc AddressService) {
	r.Get("/admin/organizations/{orgNumber}/addresses", func(w http.ResponseWriter, req *http.Request) {
		addrs, err := svc.ListAddresses(req.Context(), chi.URLParam(req, "orgNumber"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, addrs)
	})

	r.Post("/admin/organizations/{orgNumber}/addresses", func(w http.ResponseWriter, req *http.Request) {
		var body addressRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		addr, err := svc.CreateAddress(req.Context(), chi.URLParam(req, "orgNumber"), body.input())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, addr)
	})

	r.Put("/admin/addresses/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := uuid.Parse(chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address id"})
			return
		}
		var body addressRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		addr, err := svc.UpdateAddress(req.Context(), id, body.input())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, addr)
	})

	r.Delete("/admin/addresses/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := uuid.Parse(chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address id"})
			return
		}
		if err := svc.DeleteAddress(req.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sentinel.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, sentinel.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, orgservice.ErrPushFailed):
		// The edit is stored locally; only the outbound push failed.
		status = http.StatusBadGateway
	case errors.Is(err, sentinel.ErrUnavailable):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
