package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/mjpegnode/internal/api/models"
)

func (s *Server) registerStateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/state",
		Summary:     "Camera State",
		Description: "Current capture state and control channel connection",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StateResponse, error) {
		return &models.StateResponse{Body: s.stateData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-state",
		Method:      http.MethodPut,
		Path:        "/api/state",
		Summary:     "Set Camera State",
		Description: "Start or stop the camera exactly like the on/off control topics, publishing the new state when it changes",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 500},
	}, func(_ context.Context, input *models.StateUpdateRequest) (*models.StateResponse, error) {
		changed, err := s.options.Control.Apply(input.Body.On)
		if err != nil {
			s.logger.Error("State update failed", "on", input.Body.On, "error", err)
			return nil, huma.Error500InternalServerError("Camera transition failed", err)
		}
		data := s.stateData()
		data.Changed = &changed
		return &models.StateResponse{Body: data}, nil
	})
}

func (s *Server) stateData() models.StateData {
	return models.StateData{
		On:     s.options.Camera.IsOn(),
		Broker: s.options.Control.State().String(),
	}
}
