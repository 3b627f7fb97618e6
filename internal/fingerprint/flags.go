// Package fingerprint holds the browser fingerprint masking settings sent with
// each profile and the TLS fingerprints used for the service API client.
package fingerprint

import (
	"encoding/json"
	"fmt"
)

// Flags is the masking configuration of a quick profile. Values are passed
// to the orchestration service verbatim.
type Flags struct {
	AudioMasking        string `json:"audio_masking"`
	CanvasNoise         string `json:"canvas_noise"`
	FontsMasking        string `json:"fonts_masking"`
	GeolocationMasking  string `json:"geolocation_masking"`
	GeolocationPopup    string `json:"geolocation_popup"`
	GraphicsMasking     string `json:"graphics_masking"`
	GraphicsNoise       string `json:"graphics_noise"`
	LocalizationMasking string `json:"localization_masking"`
	MediaDevicesMasking string `json:"media_devices_masking"`
	NavigatorMasking    string `json:"navigator_masking"`
	PortsMasking        string `json:"ports_masking"`
	ProxyMasking        string `json:"proxy_masking"`
	QuicMode            string `json:"quic_mode"`
	ScreenMasking       string `json:"screen_masking"`
	StartupBehavior     string `json:"startup_behavior"`
	TimezoneMasking     string `json:"timezone_masking"`
	WebRTCMasking       string `json:"webrtc_masking"`
}

// DefaultFlags mask everything that identifies the host while keeping audio,
// media devices and screen natural.
func DefaultFlags() Flags {
	return Flags{
		AudioMasking:        "natural",
		CanvasNoise:         "natural",
		FontsMasking:        "mask",
		GeolocationMasking:  "mask",
		GeolocationPopup:    "prompt",
		GraphicsMasking:     "mask",
		GraphicsNoise:       "mask",
		LocalizationMasking: "mask",
		MediaDevicesMasking: "natural",
		NavigatorMasking:    "mask",
		PortsMasking:        "mask",
		ProxyMasking:        "custom",
		QuicMode:            "natural",
		ScreenMasking:       "natural",
		StartupBehavior:     "custom",
		TimezoneMasking:     "mask",
		WebRTCMasking:       "mask",
	}
}

// WithOverrides returns a copy of f with the named flags replaced. Keys use
// the wire names (e.g. "webrtc_masking"); unknown keys are an error.
func (f Flags) WithOverrides(overrides map[string]string) (Flags, error) {
	if len(overrides) == 0 {
		return f, nil
	}

	data, err := json.Marshal(f)
	if err != nil {
		return f, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return f, err
	}
	for k, v := range overrides {
		if _, ok := m[k]; !ok {
			return f, fmt.Errorf("unknown fingerprint flag %q", k)
		}
		m[k] = v
	}

	data, err = json.Marshal(m)
	if err != nil {
		return f, err
	}
	var out Flags
	if err := json.Unmarshal(data, &out); err != nil {
		return f, err
	}
	return out, nil
}
