// Package models holds the request and response bodies of the admin API.
package models

import (
	"github.com/smazurov/mjpegnode/internal/metrics"
	"github.com/smazurov/mjpegnode/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionResponse struct {
	Body version.Info
}

// State models
type StateData struct {
	On      bool   `json:"on" doc:"Whether the camera is streaming"`
	Broker  string `json:"broker" example:"connected" enum:"disconnected,connecting,connected" doc:"Control channel connection state"`
	Changed *bool  `json:"changed,omitempty" doc:"Set on updates: whether the request caused a transition"`
}

type StateResponse struct {
	Body StateData
}

type StateUpdate struct {
	On bool `json:"on" doc:"Desired camera state"`
}

type StateUpdateRequest struct {
	Body StateUpdate
}

// Encoder models
type EncoderData struct {
	Running bool `json:"running" doc:"Whether the encoder subprocess is running"`
	metrics.EncoderStats
}

type EncoderResponse struct {
	Body EncoderData
}
