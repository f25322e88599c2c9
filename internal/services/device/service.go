package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
	"github.com/micro-ha/zway-bridge/addon/internal/events"
	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

// Device commands with a local level effect.
const (
	CommandOn    = "on"
	CommandOff   = "off"
	CommandExact = "exact"
	CommandStop  = "stop"

	levelOnBinary     = "255"
	levelOnMultilevel = "99"
	levelOff          = "0"
)

// CommandPublisher forwards device commands to the field network.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, id, command string, params map[string]string) error
}

// Service implements device.Service use-cases on top of the repository
// and publishes registry events on the bus.
type Service struct {
	repo      devicedomain.Repository
	bus       *events.Bus
	publisher CommandPublisher
	logger    *slog.Logger

	nowFn func() time.Time
	newID func() string

	// mu serialises level read-modify-write so lastLevel stays consistent.
	mu sync.Mutex
}

// New creates device service.
func New(repo devicedomain.Repository, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger,
		nowFn:  time.Now,
		newID:  uuid.NewString,
	}
}

// SetPublisher enables command forwarding. Call before serving traffic.
func (s *Service) SetPublisher(p CommandPublisher) {
	s.publisher = p
}

// Subscribe registers a listener on the registry event bus.
func (s *Service) Subscribe(kind events.Kind, l events.Listener) {
	s.bus.Subscribe(kind, l)
}

// Unsubscribe removes a listener registered with Subscribe.
func (s *Service) Unsubscribe(kind events.Kind, l events.Listener) {
	s.bus.Unsubscribe(kind, l)
}

// Get returns device by id.
func (s *Service) Get(ctx context.Context, id string) (devicedomain.Device, error) {
	return s.repo.GetDevice(ctx, strings.TrimSpace(id))
}

// List returns all devices ordered by id.
func (s *Service) List(ctx context.Context) ([]devicedomain.Device, error) {
	return s.repo.ListDevices(ctx)
}

// Locations returns all known rooms.
func (s *Service) Locations(ctx context.Context) ([]devicedomain.Location, error) {
	return s.repo.ListLocations(ctx)
}

// UpsertLocations creates or renames rooms.
func (s *Service) UpsertLocations(ctx context.Context, locations []devicedomain.Location) error {
	return s.repo.UpsertLocations(ctx, locations)
}

// Upsert creates or replaces a device. New devices fire a created event;
// replacing a device with a different level fires a level change event.
func (s *Service) Upsert(ctx context.Context, d devicedomain.Device) error {
	d.ID = strings.TrimSpace(d.ID)
	d.DeviceType = strings.TrimSpace(d.DeviceType)
	if d.ID == "" || d.DeviceType == "" {
		return devicedomain.ErrInvalidDevice
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	s.mu.Lock()
	existing, err := s.repo.GetDevice(ctx, d.ID)
	found := err == nil
	if err != nil && !errors.Is(err, devicedomain.ErrDeviceNotFound) {
		s.mu.Unlock()
		return err
	}
	levelChanged := found && existing.Metrics.Level != d.Metrics.Level
	if levelChanged {
		d.Metrics.LastLevel = existing.Metrics.Level
		if d.UpdateTime <= existing.UpdateTime {
			d.UpdateTime = s.nextUpdateTime(existing.UpdateTime)
		}
	}
	if d.UpdateTime == 0 {
		d.UpdateTime = s.unixNow()
	}
	created, err := s.repo.UpsertDevice(ctx, d)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	switch {
	case created:
		s.bus.Publish(events.Event{Kind: events.KindCreated, Device: d})
	case levelChanged:
		s.bus.Publish(events.Event{Kind: events.KindLevelChanged, Device: d})
	}
	return nil
}

// UpdateLevel stores a new level and fires a level change event. The update
// time always moves forward, even for two changes within one second.
func (s *Service) UpdateLevel(ctx context.Context, id string, level devicedomain.Level) error {
	s.mu.Lock()
	d, err := s.repo.GetDevice(ctx, strings.TrimSpace(id))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	d.Metrics.LastLevel = d.Metrics.Level
	d.Metrics.Level = level
	d.UpdateTime = s.nextUpdateTime(d.UpdateTime)
	err = s.repo.UpdateLevel(ctx, d.ID, d.Metrics.Level, d.Metrics.LastLevel, d.UpdateTime)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.bus.Publish(events.Event{Kind: events.KindLevelChanged, Device: d})
	return nil
}

// RunCommand records and executes a device command on behalf of source.
func (s *Service) RunCommand(ctx context.Context, source, id string, in devicedomain.CommandInput) error {
	command := strings.TrimSpace(in.Command)
	if command == "" {
		return devicedomain.ErrEmptyCommand
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	rec := model.CommandRecord{
		ID:        s.newID(),
		DeviceID:  d.ID,
		Command:   command,
		Params:    in.Params,
		Source:    source,
		CreatedAt: s.nowFn().UTC(),
	}
	if err := s.repo.InsertCommand(ctx, rec); err != nil {
		return fmt.Errorf("record command: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCommand(ctx, d.ID, command, in.Params); err != nil {
			s.logger.Warn("command publish failed", "device", d.ID, "command", command, "err", err)
		}
	}

	level, ok := commandLevel(d, command, in.Params)
	if !ok {
		return nil
	}
	return s.UpdateLevel(ctx, d.ID, level)
}

// Commands returns the newest command log rows of a device.
func (s *Service) Commands(ctx context.Context, id string, limit int) ([]devicedomain.CommandRecord, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCommands(ctx, d.ID, limit)
}

// Controller returns a device controller that records commands with source.
func (s *Service) Controller(source string) *Controller {
	return &Controller{svc: s, source: source}
}

// nextUpdateTime returns the current time, or prev+1 when the clock has not
// moved past prev.
func (s *Service) nextUpdateTime(prev uint64) uint64 {
	now := s.unixNow()
	if now <= prev {
		return prev + 1
	}
	return now
}

func (s *Service) unixNow() uint64 {
	sec := s.nowFn().Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}

func commandLevel(d devicedomain.Device, command string, params map[string]string) (devicedomain.Level, bool) {
	if d.IsSensor() {
		return "", false
	}
	switch command {
	case CommandOn:
		if d.DeviceType == model.DeviceTypeSwitchMultilevel {
			return levelOnMultilevel, true
		}
		return levelOnBinary, true
	case CommandOff:
		return levelOff, true
	case CommandExact:
		v, ok := model.Level(params["level"]).Float()
		if !ok {
			return "", false
		}
		return model.Level(strconv.FormatFloat(v, 'f', -1, 64)), true
	default:
		return "", false
	}
}

// Controller adapts the service to the bridge dispatcher.
type Controller struct {
	svc    *Service
	source string
}

func (c *Controller) Get(ctx context.Context, id string) (model.Device, error) {
	return c.svc.Get(ctx, id)
}

func (c *Controller) PerformCommand(ctx context.Context, id, command string, params map[string]string) error {
	err := c.svc.RunCommand(ctx, c.source, id, devicedomain.CommandInput{Command: command, Params: params})
	if errors.Is(err, devicedomain.ErrDeviceNotFound) {
		return fmt.Errorf("perform %s on %s: %w", command, id, err)
	}
	return err
}
