// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package utils

import "regexp"

var deviceNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// IsValidDeviceName returns true if name can be used to register a
// device. Names are lower case, config keys are case insensitive.
// Usage:
//
//	valid := utils.IsValidDeviceName("vda")      // returns true
//	valid := utils.IsValidDeviceName("Disk/One") // returns false
func IsValidDeviceName(name string) bool {
	return deviceNameRegex.MatchString(name)
}
