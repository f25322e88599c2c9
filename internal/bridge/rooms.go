package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

// LocationSource lists the rooms known to the controller.
type LocationSource interface {
	Locations(ctx context.Context) ([]model.Location, error)
}

// RoomIndex caches location id to room title. The cache is not
// authoritative: a miss falls back to the live location list.
type RoomIndex struct {
	source LocationSource
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[int]string
}

func NewRoomIndex(source LocationSource, logger *slog.Logger) *RoomIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomIndex{source: source, logger: logger, rooms: map[int]string{}}
}

// Preload fills the cache with every known location.
func (r *RoomIndex) Preload(ctx context.Context) error {
	locations, err := r.source.Locations(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, loc := range locations {
		r.rooms[loc.ID] = loc.Title
	}
	return nil
}

// Lookup resolves a room title.
func (r *RoomIndex) Lookup(ctx context.Context, id int) (string, bool) {
	r.mu.RLock()
	title, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return title, true
	}

	locations, err := r.source.Locations(ctx)
	if err != nil {
		r.logger.Warn("location lookup failed", "location", id, "err", err)
		return "", false
	}
	for _, loc := range locations {
		if loc.ID != id {
			continue
		}
		r.mu.Lock()
		r.rooms[id] = loc.Title
		r.mu.Unlock()
		return loc.Title, true
	}
	return "", false
}
