package handler

import (
	"net/http"

	"github.com/samims/notify/internal/model"
)

// ChannelLister reports the channels with a live adapter
type ChannelLister interface {
	Supported() []model.Channel
}

type ChannelHandler struct {
	registry ChannelLister
}

func NewChannelHandler(registry ChannelLister) *ChannelHandler {
	return &ChannelHandler{registry: registry}
}

func (h *ChannelHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]model.Channel{"channels": h.registry.Supported()})
}
