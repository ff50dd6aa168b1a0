package sessions

import "strings"

// Device types. The classification is a coarse substring heuristic over
// the User-Agent; it only promises to be stable for the same string.
const (
	// DeviceMobile is an exported constant or variable used by the authentication engine.
	DeviceMobile = "mobile"
	// DeviceTablet is an exported constant or variable used by the authentication engine.
	DeviceTablet = "tablet"
	// DeviceDesktop is an exported constant or variable used by the authentication engine.
	DeviceDesktop = "desktop"
	// DeviceOther is an exported constant or variable used by the authentication engine.
	DeviceOther = "other"
)

// ClassifyDevice maps a User-Agent string onto a device type. An empty
// User-Agent is "other"; anything that names neither Mobile nor Tablet
// counts as desktop.
func ClassifyDevice(userAgent string) string {
	if userAgent == "" {
		return DeviceOther
	}
	if strings.Contains(userAgent, "Mobile") {
		return DeviceMobile
	}
	if strings.Contains(userAgent, "Tablet") {
		return DeviceTablet
	}
	return DeviceDesktop
}
