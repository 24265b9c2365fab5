package handler

import (
	"time"

	"worklink/backend/internal/chathub"
	"worklink/backend/internal/storage"
)

// Handler holds the hub and storage references shared by the HTTP surface.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Storage

	JWTSecret []byte
	JWTExpiry time.Duration
}

func NewHandler(hub *chathub.ManagerService, s storage.Storage, jwtSecret string, jwtExpiry time.Duration) *Handler {
	return &Handler{
		Hub:       hub,
		Storage:   s,
		JWTSecret: []byte(jwtSecret),
		JWTExpiry: jwtExpiry,
	}
}
