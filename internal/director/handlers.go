package director

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/skyward-uas/gimbal-director/internal/dispatcher"
	"github.com/skyward-uas/gimbal-director/internal/targeting"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// RegisterHandlers wires the operator commands to the director.
func (d *Director) RegisterHandlers(disp *dispatcher.Dispatcher) {
	disp.Register(dispatcher.CmdLookAt, d.handleLookAt, dispatcher.Logged())
	disp.Register(dispatcher.CmdClearTarget, d.handleClearTarget, dispatcher.Logged())
	disp.Register(dispatcher.CmdCenter, d.handleCenter, dispatcher.Logged())
	disp.Register(dispatcher.CmdMode, d.handleMode, dispatcher.Logged())
	disp.Register(dispatcher.CmdStatus, d.handleStatus)
}

// handleLookAt parses "lat lon alt [altRef]" and pins the gimbal onto
// that coordinate.
func (d *Director) handleLookAt(e dispatcher.Event) (any, error) {
	if len(e.Args) < 3 {
		return nil, fmt.Errorf("lookAt needs lat, lon, alt")
	}
	lat, err := strconv.ParseFloat(e.Args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(e.Args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude: %w", err)
	}
	alt, err := strconv.ParseFloat(e.Args[2], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing altitude: %w", err)
	}
	altRef := core.AMSL
	if len(e.Args) > 3 {
		switch e.Args[3] {
		case string(core.AGL):
			altRef = core.AGL
		case string(core.AMSL):
			altRef = core.AMSL
		default:
			return nil, fmt.Errorf("unknown altitude reference: %s", e.Args[3])
		}
	}

	target := core.GeoPosition{Latitude: lat, Longitude: lon, Altitude: alt, AltRef: altRef}
	if err := d.store.SetFixed(target); err != nil {
		return nil, err
	}
	d.log.Info("fixed target set", "lat", lat, "lon", lon, "alt", alt, "altRef", altRef)
	return "ok", nil
}

func (d *Director) handleClearTarget(e dispatcher.Event) (any, error) {
	d.store.Clear()
	d.controller.ClearCommand()
	d.log.Info("fixed target cleared")
	return "ok", nil
}

// handleCenter recenters the gimbal and drops any outstanding command
// so the control loop does not fight the recenter motion.
func (d *Director) handleCenter(e dispatcher.Event) (any, error) {
	c, ok := d.gimbal.(Centerer)
	if !ok {
		return nil, fmt.Errorf("gimbal does not support recentering")
	}
	d.store.Clear()
	d.controller.ClearCommand()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Center(ctx); err != nil {
		return nil, fmt.Errorf("recentering gimbal: %w", err)
	}
	return "ok", nil
}

func (d *Director) handleMode(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return d.store.Mode().String(), nil
	}
	switch e.Args[0] {
	case targeting.ModeGimbal.String():
		d.store.Clear()
		d.controller.ClearCommand()
	case targeting.ModeFixed.String():
		if _, ok := d.store.Fixed(); !ok {
			return nil, fmt.Errorf("no fixed target set, use lookAt first")
		}
	default:
		return nil, fmt.Errorf("unknown mode: %s", e.Args[0])
	}
	return d.store.Mode().String(), nil
}

func (d *Director) handleStatus(e dispatcher.Event) (any, error) {
	return d.Snapshot(), nil
}
