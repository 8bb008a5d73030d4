package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/home-sentry/core/internal/device"
	"github.com/home-sentry/core/internal/infrastructure/config"
	"github.com/home-sentry/core/internal/infrastructure/logging"
	"github.com/home-sentry/core/internal/infrastructure/mqtt"
)

// stateAttribute is the entity attribute that drives state recording.
// Entities flushed without it are discarded.
const stateAttribute = "state"

// MetricWriter forwards numeric signal values to a time-series store.
type MetricWriter interface {
	WriteSignalMetric(deviceRef, signal string, value float64)
}

// Broadcaster pushes recorded states to live subscribers.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// StateEvent is the payload broadcast for each recorded signal state.
type StateEvent struct {
	SignalID     int64    `json:"signalId"`
	DeviceID     int64    `json:"deviceId"`
	SourceRef    string   `json:"sourceRef"`
	RawValue     string   `json:"rawValue"`
	NumericValue *float64 `json:"numericValue"`
	Timestamp    string   `json:"timestamp"`
}

// EventStateRecorded is the event type used for hub broadcasts.
const EventStateRecorded = "signal.state_recorded"

// Deps holds the dependencies required by the ingest pipeline.
type Deps struct {
	Config  config.IngestConfig
	Repo    device.Repository
	MQTT    *mqtt.Client // nil disables the subscription (tests drive HandleMessage directly)
	QoS     byte
	Metrics MetricWriter // optional
	Events  Broadcaster  // optional
	Logger  *logging.Logger
}

// entity accumulates attribute updates for one Home Assistant entity
// between flushes.
type entity struct {
	domain    string
	id        string
	attrs     map[string]any
	lastEvent time.Time
	dueAt     time.Time // zero when no flush is pending
}

// flushItem is a snapshot of an entity taken when its debounce expires.
type flushItem struct {
	domain    string
	id        string
	attrs     map[string]any
	timestamp time.Time
}

// Pipeline subscribes to a Home Assistant MQTT topic tree and records
// debounced entity states as signal_states rows.
//
// The cache is guarded by a mutex; a single flush goroutine scans for due
// entities so message bursts never spawn per-entity timers.
type Pipeline struct {
	cfg     config.IngestConfig
	repo    device.Repository
	mqtt    *mqtt.Client
	qos     byte
	metrics MetricWriter
	events  Broadcaster
	logger  *logging.Logger

	mu    sync.Mutex
	cache map[string]*entity

	debounce time.Duration
	interval time.Duration
}

// New creates an ingest pipeline. Start must be called to begin processing.
func New(deps Deps) (*Pipeline, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	debounce := time.Duration(deps.Config.DebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	interval := time.Duration(deps.Config.FlushIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	return &Pipeline{
		cfg:      deps.Config,
		repo:     deps.Repo,
		mqtt:     deps.MQTT,
		qos:      deps.QoS,
		metrics:  deps.Metrics,
		events:   deps.Events,
		logger:   deps.Logger.With("component", "ingest"),
		cache:    make(map[string]*entity),
		debounce: debounce,
		interval: interval,
	}, nil
}

// Start subscribes to the configured topic tree and launches the flush
// worker. The worker stops when the context is cancelled.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.mqtt != nil {
		topic := mqtt.IngestWildcard(p.cfg.TopicPrefix)
		if err := p.mqtt.Subscribe(topic, p.qos, p.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		p.logger.Info("ingest subscribed", "topic", topic)
	}

	go p.flushLoop(ctx)
	return nil
}

// HandleMessage merges one attribute update into the entity cache and
// (re)schedules the entity's debounce. Topics outside the expected
// <prefix>/<domain>/<entity>/<attribute...> shape are ignored.
func (p *Pipeline) HandleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[0] != p.cfg.TopicPrefix {
		p.logger.Debug("ignoring topic outside entity tree", "topic", topic)
		return nil
	}

	domain := parts[1]
	entityID := parts[2]
	attribute := strings.Join(parts[3:], "/")
	value := parsePayload(payload)
	now := time.Now()

	key := domain + "/" + entityID

	p.mu.Lock()
	ent, ok := p.cache[key]
	if !ok {
		ent = &entity{
			domain: domain,
			id:     entityID,
			attrs:  make(map[string]any),
		}
		p.cache[key] = ent
	}
	ent.attrs[attribute] = value
	ent.lastEvent = now
	ent.dueAt = now.Add(p.debounce)
	p.mu.Unlock()

	return nil
}

// flushLoop periodically records entities whose debounce has expired.
func (p *Pipeline) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushDue(ctx, time.Now())
		}
	}
}

// flushDue snapshots and records every entity due at or before now.
// Snapshots are taken under the lock; recording happens outside it.
func (p *Pipeline) flushDue(ctx context.Context, now time.Time) {
	var due []flushItem

	p.mu.Lock()
	for _, ent := range p.cache {
		if ent.dueAt.IsZero() || now.Before(ent.dueAt) {
			continue
		}
		attrs := make(map[string]any, len(ent.attrs))
		for k, v := range ent.attrs {
			attrs[k] = v
		}
		due = append(due, flushItem{
			domain:    ent.domain,
			id:        ent.id,
			attrs:     attrs,
			timestamp: ent.lastEvent,
		})
		ent.dueAt = time.Time{}
	}
	p.mu.Unlock()

	for _, item := range due {
		if err := p.record(ctx, item); err != nil {
			p.logger.Error("failed to record entity state",
				"domain", item.domain,
				"entity", item.id,
				"error", err,
			)
		}
	}
}

// record persists one entity snapshot as a signal state, provisioning the
// device and its state signal on first sight.
func (p *Pipeline) record(ctx context.Context, item flushItem) error {
	stateVal, ok := item.attrs[stateAttribute]
	if !ok {
		// Nothing to record without a state attribute.
		return nil
	}

	dev, err := p.ensureDevice(ctx, item)
	if err != nil {
		return err
	}
	sig, err := p.ensureSignal(ctx, dev.ID, item)
	if err != nil {
		return err
	}

	raw := stringifyValue(stateVal)
	numeric := numericValue(stateVal)
	extra, err := extraJSON(item.attrs)
	if err != nil {
		return err
	}

	state := device.SignalState{
		SignalID:     sig.ID,
		Timestamp:    item.timestamp.UTC(),
		RawValue:     raw,
		NumericValue: numeric,
		ExtraJSON:    extra,
	}
	if err := p.repo.InsertSignalState(ctx, &state); err != nil {
		return err
	}

	sourceRef := sourceRef(item)
	if p.metrics != nil && numeric != nil {
		p.metrics.WriteSignalMetric(sourceRef, sig.Name, *numeric)
	}
	if p.events != nil {
		p.events.Broadcast(EventStateRecorded, StateEvent{
			SignalID:     sig.ID,
			DeviceID:     dev.ID,
			SourceRef:    sourceRef,
			RawValue:     raw,
			NumericValue: numeric,
			Timestamp:    state.Timestamp.Format(time.RFC3339),
		})
	}

	return nil
}

// ensureDevice returns the device registered for the entity's source
// reference, creating it on first sight.
func (p *Pipeline) ensureDevice(ctx context.Context, item flushItem) (*device.Device, error) {
	ref := sourceRef(item)

	dev, err := p.repo.GetDeviceBySourceRef(ctx, ref)
	if err == nil {
		return dev, nil
	}
	if !errors.Is(err, device.ErrDeviceNotFound) {
		return nil, err
	}

	name := item.id
	if friendly, ok := item.attrs["friendly_name"].(string); ok && friendly != "" {
		name = friendly
	}

	dev = &device.Device{
		Name:      name,
		Kind:      item.domain,
		Source:    device.DefaultSource,
		SourceRef: &ref,
	}
	if err := p.repo.CreateDevice(ctx, dev); err != nil {
		return nil, fmt.Errorf("provisioning device %s: %w", ref, err)
	}
	p.logger.Info("provisioned device", "sourceRef", ref, "id", dev.ID)
	return dev, nil
}

// ensureSignal returns the device's state signal, creating it on first sight.
func (p *Pipeline) ensureSignal(ctx context.Context, deviceID int64, item flushItem) (*device.Signal, error) {
	sig, err := p.repo.GetSignalByName(ctx, deviceID, stateAttribute)
	if err == nil {
		return sig, nil
	}
	if !errors.Is(err, device.ErrSignalNotFound) {
		return nil, err
	}

	sig = &device.Signal{
		DeviceID: deviceID,
		Name:     stateAttribute,
	}
	if unit, ok := item.attrs["unit_of_measurement"].(string); ok && unit != "" {
		sig.Unit = &unit
	}
	if class, ok := item.attrs["device_class"].(string); ok && class != "" {
		sig.Category = &class
	}

	if err := p.repo.CreateSignal(ctx, sig); err != nil {
		return nil, fmt.Errorf("provisioning signal for device %d: %w", deviceID, err)
	}
	return sig, nil
}

// sourceRef builds the Home Assistant style entity reference, e.g.
// "sensor.hall_temp".
func sourceRef(item flushItem) string {
	return item.domain + "." + item.id
}

// parsePayload decodes a JSON payload, falling back to the raw string for
// bare values that are not valid JSON.
func parsePayload(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return string(payload)
	}
	return v
}

// stringifyValue renders an attribute value for raw_value storage.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// numericValue extracts a float from the state value when possible.
func numericValue(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return &f
		}
	}
	return nil
}

// extraJSON serialises all attributes except state, or returns nil when
// there are none.
func extraJSON(attrs map[string]any) (*string, error) {
	if len(attrs) <= 1 {
		return nil, nil
	}

	extra := make(map[string]any, len(attrs)-1)
	for k, v := range attrs {
		if k == stateAttribute {
			continue
		}
		extra[k] = v
	}

	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("serialising extra attributes: %w", err)
	}
	s := string(data)
	return &s, nil
}
