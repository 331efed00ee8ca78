// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"fmt"
	"log/slog"

	"github.com/go-core-stack/iothrottle/blockio"
	"github.com/go-core-stack/iothrottle/config"
	"github.com/go-core-stack/iothrottle/errors"
)

const defaultDeviceSize = 64 << 20

// applyConfig brings the registered devices in line with cfg. Devices
// missing from cfg are removed, new ones are created on an in memory
// backend and the limits of the others are replaced.
func applyConfig(logger *slog.Logger, mgr *blockio.Manager, cfg *config.Config) error {
	wanted := make(map[string]bool, len(cfg.Devices))
	for _, name := range cfg.DeviceNames() {
		wanted[name] = true
	}
	for _, name := range mgr.Names() {
		if wanted[name] {
			continue
		}
		if err := mgr.Remove(name); err != nil && !errors.IsNotFound(err) {
			return err
		}
		logger.Info("device removed", "device", name)
	}

	var failed []string
	for _, name := range cfg.DeviceNames() {
		dc := cfg.Devices[name]
		err := mgr.SetThrottle(name, dc.ToThrottle())
		if errors.IsNotFound(err) {
			size := dc.Size
			if size <= 0 {
				size = defaultDeviceSize
			}
			_, err = mgr.NewDevice(name, blockio.NewMemBackend(size), dc.ToThrottle())
			if err == nil {
				logger.Info("device created", "device", name, "size", size)
			}
		}
		if err != nil {
			logger.Error("failed to apply device config", "device", name, "error", err)
			failed = append(failed, name)
		}
	}
	if len(failed) != 0 {
		return fmt.Errorf("failed to apply config of devices %v", failed)
	}
	return nil
}
