// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package values

import "os"

const (
	// Environment variable name providing the config directory
	ConfigPathEnv = "IOTHROTTLE_CONFIG_PATH"

	// Default value for the config directory
	DefaultConfigPath = "/etc/iothrottle"

	// Environment variable name providing the config file name
	ConfigNameEnv = "IOTHROTTLE_CONFIG_NAME"

	// Default value for the config file name, without extension
	DefaultConfigName = "throttle"
)

// Get configured location of the throttling config
func GetConfigLocation() (string, string) {
	path, ok := os.LookupEnv(ConfigPathEnv)
	if !ok {
		path = DefaultConfigPath
	}
	name, ok := os.LookupEnv(ConfigNameEnv)
	if !ok {
		name = DefaultConfigName
	}
	return path, name
}
