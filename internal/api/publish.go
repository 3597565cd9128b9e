package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/skyroute/pkg/skyroute"
)

// PublishRequest is the body of POST /api/v1/publish.
type PublishRequest struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

// PublishResponse acknowledges a publish. Pending counts commands still
// buffered for the broker, including this one when offline.
type PublishResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
}

// handlePublish publishes a text payload. The message is accepted even while
// offline; it is sent once the connection is up.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	opts := []skyroute.Option{skyroute.WithQoS(req.QoS)}
	if req.Retain {
		opts = append(opts, skyroute.WithRetain())
	}

	err := s.router.Publish(req.Topic, []byte(req.Payload), opts...)
	switch {
	case err == nil:
	case errors.Is(err, skyroute.ErrConfiguration):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	case errors.Is(err, skyroute.ErrClosed):
		writeUnavailable(w, "router is shutting down")
		return
	default:
		s.logger.Error("publish failed", "topic", req.Topic, "error", err)
		writeInternalError(w, "publish failed")
		return
	}

	writeJSON(w, http.StatusAccepted, PublishResponse{
		Status:  "accepted",
		Pending: s.router.Status().PendingCommands,
	})
}
