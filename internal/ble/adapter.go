// Package ble connects real Bluetooth LE sensors to the tracking session.
// It subscribes to the standard heart-rate measurement characteristic and a
// foot-pod characteristic (standard RSC, or a vendor UUID when configured)
// and forwards raw notification payloads to the session sink; all decoding
// happens downstream.
package ble

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/stridelab/runtracker-go/internal/models"
	"github.com/stridelab/runtracker-go/internal/session"
)

var adapter = bluetooth.DefaultAdapter

const scanTimeout = 30 * time.Second

// Connector scans for, connects to, and subscribes to BLE running sensors.
// It implements session.Connector.
type Connector struct {
	mu          sync.Mutex
	enabled     bool
	devices     []bluetooth.Device
	footpodUUID string
}

// NewConnector creates a BLE connector. footpodUUID optionally names a
// vendor characteristic to subscribe to instead of standard RSC.
func NewConnector(footpodUUID string) *Connector {
	return &Connector{footpodUUID: footpodUUID}
}

// Connect enables the adapter, scans for heart-rate and foot-pod devices,
// and subscribes their measurement characteristics to the sink. Finding no
// devices is not an error: the session tracks with degraded inputs.
func (c *Connector) Connect(ctx context.Context, sink session.Sink) error {
	c.mu.Lock()
	if !c.enabled {
		if err := adapter.Enable(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to enable bluetooth adapter: %w", err)
		}
		c.enabled = true
	}
	c.mu.Unlock()

	found := make(chan bluetooth.ScanResult, 4)
	seen := make(map[string]bool)

	go func() {
		err := adapter.Scan(func(a *bluetooth.Adapter, device bluetooth.ScanResult) {
			if !device.HasServiceUUID(bluetooth.ServiceUUIDHeartRate) &&
				!device.HasServiceUUID(bluetooth.ServiceUUIDRunningSpeedAndCadence) {
				return
			}
			addr := device.Address.String()
			if seen[addr] {
				return
			}
			seen[addr] = true
			select {
			case found <- device:
			default:
			}
		})
		if err != nil {
			log.Printf("[BLE] Scan failed: %v", err)
			close(found)
		}
	}()

	deadline := time.NewTimer(scanTimeout)
	defer deadline.Stop()
	defer adapter.StopScan()

	connected := 0
	for connected < 2 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			log.Printf("[BLE] Scan finished with %d sensor(s) connected", connected)
			return nil
		case result, ok := <-found:
			if !ok {
				return nil
			}
			if err := c.connectDevice(result, sink); err != nil {
				log.Printf("[BLE] Failed to connect %s: %v", result.LocalName(), err)
				continue
			}
			connected++
		}
	}
	return nil
}

func (c *Connector) connectDevice(result bluetooth.ScanResult, sink session.Sink) error {
	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.devices = append(c.devices, device)
	c.mu.Unlock()

	if result.HasServiceUUID(bluetooth.ServiceUUIDHeartRate) {
		if err := subscribe(device,
			bluetooth.ServiceUUIDHeartRate,
			bluetooth.CharacteristicUUIDHeartRateMeasurement,
			models.SourceHRM, sink,
		); err != nil {
			return err
		}
		log.Printf("[BLE] Heart-rate monitor connected: %s", result.LocalName())
	}

	if result.HasServiceUUID(bluetooth.ServiceUUIDRunningSpeedAndCadence) {
		charUUID := bluetooth.CharacteristicUUIDRSCMeasurement
		if c.footpodUUID != "" {
			parsed, err := bluetooth.ParseUUID(c.footpodUUID)
			if err != nil {
				return fmt.Errorf("bad foot-pod characteristic UUID: %w", err)
			}
			charUUID = parsed
		}
		if err := subscribe(device,
			bluetooth.ServiceUUIDRunningSpeedAndCadence,
			charUUID,
			models.SourceFootpod, sink,
		); err != nil {
			return err
		}
		log.Printf("[BLE] Foot pod connected: %s", result.LocalName())
	}

	return nil
}

func subscribe(device bluetooth.Device, serviceUUID, charUUID bluetooth.UUID, source models.SensorSource, sink session.Sink) error {
	srvs, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return fmt.Errorf("service discovery: %w", err)
	}

	for _, srv := range srvs {
		chars, err := srv.DiscoverCharacteristics([]bluetooth.UUID{charUUID})
		if err != nil {
			return fmt.Errorf("characteristic discovery: %w", err)
		}
		for _, char := range chars {
			if err := char.EnableNotifications(func(buf []byte) {
				sink.PushRawPayload(source, buf, time.Now())
			}); err != nil {
				return fmt.Errorf("enable notifications: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("characteristic %s not found", charUUID.String())
}

// Close disconnects all connected sensors. Idempotent; called from every
// session exit path.
func (c *Connector) Close() error {
	c.mu.Lock()
	devices := c.devices
	c.devices = nil
	c.mu.Unlock()

	for _, device := range devices {
		if err := device.Disconnect(); err != nil {
			log.Printf("[BLE] Disconnect (may already be closed): %v", err)
		}
	}
	return nil
}
