package browser

import "strings"

// Device is a mobile emulation profile.
type Device struct {
	Name        string
	UserAgent   string
	Viewport    Size
	ScaleFactor float64
	IsMobile    bool
	HasTouch    bool
}

// devices are used when the automation engine has no descriptor of its own
// (and always by the static driver, which only needs the user agent).
var devices = map[string]Device{
	"iphone 12 pro": {
		Name:        "iPhone 12 Pro",
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1",
		Viewport:    Size{Width: 390, Height: 664},
		ScaleFactor: 3,
		IsMobile:    true,
		HasTouch:    true,
	},
	"pixel 5": {
		Name:        "Pixel 5",
		UserAgent:   "Mozilla/5.0 (Linux; Android 11; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Viewport:    Size{Width: 393, Height: 727},
		ScaleFactor: 2.75,
		IsMobile:    true,
		HasTouch:    true,
	},
	"galaxy s9+": {
		Name:        "Galaxy S9+",
		UserAgent:   "Mozilla/5.0 (Linux; Android 8.0.0; SM-G965U Build/R16NW) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Viewport:    Size{Width: 320, Height: 658},
		ScaleFactor: 4.5,
		IsMobile:    true,
		HasTouch:    true,
	},
}

// LookupDevice returns the built-in profile for name, matched
// case-insensitively.
func LookupDevice(name string) (Device, bool) {
	d, ok := devices[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}
