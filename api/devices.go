// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"net/http"

	"github.com/go-core-stack/iothrottle/blockio"
	"github.com/go-core-stack/iothrottle/config"
	"github.com/go-core-stack/iothrottle/throttle"
)

type deviceView struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Context  string              `json:"context"`
	Enabled  bool                `json:"enabled"`
	Throttle config.DeviceConfig `json:"throttle"`
	Levels   map[string]float64  `json:"levels"`
	Held     map[string]int      `json:"held"`
}

func newDeviceView(dev *blockio.Device) deviceView {
	cfg := dev.Throttle()
	view := deviceView{
		ID:       dev.ID().String(),
		Name:     dev.Name(),
		Enabled:  cfg.Enabled(),
		Throttle: config.FromThrottle(&cfg),
		Levels:   make(map[string]float64),
		Held: map[string]int{
			throttle.Read.String():  dev.Held(throttle.Read),
			throttle.Write.String(): dev.Held(throttle.Write),
		},
	}
	if ctx := dev.Context(); ctx != nil {
		view.Context = ctx.ID().String()
	}
	for kind, b := range cfg.Buckets {
		if b.Enabled() {
			view.Levels[throttle.BucketKind(kind).String()] = b.Level
		}
	}
	return view
}

func (s *Server) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	data := envelope{
		"status":  "available",
		"devices": len(s.devices.Names()),
	}
	err := s.writeJSON(w, http.StatusOK, data, nil)
	if err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) listDevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices := []deviceView{}
	for _, name := range s.devices.Names() {
		dev, err := s.devices.Device(name)
		if err != nil {
			// removed while listing
			continue
		}
		devices = append(devices, newDeviceView(dev))
	}

	err := s.writeJSON(w, http.StatusOK, envelope{"devices": devices}, nil)
	if err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) showDeviceHandler(w http.ResponseWriter, r *http.Request) {
	dev, err := s.devices.Device(s.readNameParam(r))
	if err != nil {
		s.deviceErrorResponse(w, r, err)
		return
	}

	err = s.writeJSON(w, http.StatusOK, envelope{"device": newDeviceView(dev)}, nil)
	if err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) showThrottleHandler(w http.ResponseWriter, r *http.Request) {
	dev, err := s.devices.Device(s.readNameParam(r))
	if err != nil {
		s.deviceErrorResponse(w, r, err)
		return
	}

	cfg := dev.Throttle()
	err = s.writeJSON(w, http.StatusOK, envelope{"throttle": config.FromThrottle(&cfg)}, nil)
	if err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

// updateThrottleHandler replaces all limits of the device, limits left
// out of the body are disabled
func (s *Server) updateThrottleHandler(w http.ResponseWriter, r *http.Request) {
	name := s.readNameParam(r)

	var input config.DeviceConfig
	err := s.readJSON(w, r, &input)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	if input.Size != 0 {
		s.badRequestResponse(w, r, errSizeImmutable)
		return
	}

	err = s.devices.SetThrottle(name, input.ToThrottle())
	if err != nil {
		s.deviceErrorResponse(w, r, err)
		return
	}
	s.logger.Info("throttle updated", "device", name)

	err = s.writeJSON(w, http.StatusOK, envelope{"throttle": input}, nil)
	if err != nil {
		s.serverErrorResponse(w, r, err)
	}
}
