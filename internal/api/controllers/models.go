package controllers

import (
	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/platform"
)

type StartRequest struct {
	Concurrency int `json:"concurrency"`
}

type QueueAddRequest struct {
	URLs []string `json:"urls"`
}

type QueueRemoveRequest struct {
	URL string `json:"url"`
}

type QueueReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type QueueResponse struct {
	// File is what links.txt holds right now
	File []string `json:"file"`
	// Pending is the running batch's queue; empty when idle
	Pending []string `json:"pending"`
}

type QueueAddResponse struct {
	Added    []string `json:"added"`
	Rejected []string `json:"rejected,omitempty"`
}

type SanitizeResponse struct {
	Kept    int      `json:"kept"`
	Dropped []string `json:"dropped"`
}

type HistoryResponse struct {
	Records []*domain.HistoryRecord `json:"records"`
}

type LogsResponse struct {
	Lines []string `json:"lines"`
}

type SystemResponse struct {
	System   platform.SystemInfo     `json:"system"`
	Binaries []platform.BinaryStatus `json:"binaries"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
