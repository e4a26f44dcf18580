package api

import (
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/foodrescue-nyc/coordinator/internal/assistant"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

type chatRequest struct {
	Message   string `json:"message" validate:"required"`
	UserEmail string `json:"user_email" validate:"required,email"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Chat == nil {
			httpError(w, http.StatusBadRequest, "chat assistant is not configured (set the model API key)")
			return
		}

		var req chatRequest
		if !decodeValid(w, r, &req) {
			return
		}

		reply, err := deps.Chat.Respond(r.Context(), req.UserEmail, req.Message)
		if err != nil {
			// The model being down is the one failure that is not ours.
			if errors.Is(err, assistant.ErrCompletion) {
				httpError(w, http.StatusBadGateway, "processing message: %v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "processing message: %v", err)
			return
		}
		writeData(w, reply)
	}
}

// dbState is the full inspection dump behind GET /api/db-state.
type dbState struct {
	Volunteers    []storage.Volunteer    `json:"volunteers"`
	Deliveries    []storage.Delivery     `json:"deliveries"`
	Routes        []storage.RouteDetail  `json:"routes"`
	Organizations []storage.Organization `json:"organizations"`
}

func handleDBState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state dbState
		g, _ := errgroup.WithContext(r.Context())

		g.Go(func() error {
			var err error
			state.Volunteers, err = deps.Store.ListVolunteers()
			return err
		})
		g.Go(func() error {
			var err error
			state.Deliveries, err = deps.Store.ListDeliveries()
			return err
		})
		g.Go(func() error {
			var err error
			state.Routes, err = deps.Store.ListDeliveryRoutes("")
			return err
		})
		g.Go(func() error {
			var err error
			state.Organizations, err = deps.Store.ListOrganizations("")
			return err
		})

		if err := g.Wait(); err != nil {
			writeError(w, err)
			return
		}
		writeData(w, state)
	}
}
