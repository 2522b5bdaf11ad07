package utils

import "strings"

// Device type values used to partition auth sessions.  Classification is
// a partition key only, not a security boundary: lying about the
// User-Agent just selects which session slot gets overwritten.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceOther   = "other"
)

var mobileMarkers = []string{"mobile", "android", "iphone", "ipad", "ipod", "windows phone", "opera mini"}

var desktopMarkers = []string{"windows nt", "macintosh", "x11", "linux", "cros"}

// DeviceFromUserAgent buckets a User-Agent string into mobile, desktop or
// other.  Mobile markers win over desktop ones because mobile UAs often
// carry both ("Linux; Android ...").
func DeviceFromUserAgent(ua string) string {
	ua = strings.ToLower(ua)
	if ua == "" {
		return DeviceOther
	}
	for _, m := range mobileMarkers {
		if strings.Contains(ua, m) {
			return DeviceMobile
		}
	}
	for _, m := range desktopMarkers {
		if strings.Contains(ua, m) {
			return DeviceDesktop
		}
	}
	return DeviceOther
}
