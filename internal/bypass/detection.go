// Package bypass recognises bot protection block pages from a rendered page
// snapshot.
package bypass

import (
	"strings"
)

// Snapshot is the rendered state of a page.
type Snapshot struct {
	URL   string
	Title string
	HTML  string
}

// Detector examines a snapshot and reports the protection that served it.
type Detector func(s Snapshot) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectRecaptcha,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs s through detectors and returns the first source that
// triggers, or "" when the page looks unprotected.
func Analyze(s Snapshot, detectors []Detector) string {
	for _, d := range detectors {
		if detected, source := d(s); detected {
			return source
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// detectGoogleSorry matches the interstitial served after unusual traffic.
func detectGoogleSorry(s Snapshot) (bool, string) {
	if strings.Contains(s.URL, "/sorry/") ||
		containsAny(s.HTML, "Our systems have detected unusual traffic", "unusual traffic from your computer network") {
		return true, "GoogleSorry"
	}
	return false, ""
}

// detectRecaptcha looks for an embedded reCAPTCHA widget.
func detectRecaptcha(s Snapshot) (bool, string) {
	if containsAny(s.HTML, "www.google.com/recaptcha/api", "g-recaptcha", `id="recaptcha"`) {
		return true, "reCAPTCHA"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(s Snapshot) (bool, string) {
	if s.Title == "Just a moment..." || strings.HasPrefix(s.Title, "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	if containsAny(s.HTML, "cf-browser-verification", "cf-turnstile", "challenges.cloudflare.com", "/cdn-cgi/challenge-platform/") {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for the Akamai "Reference #" denial page.
func detectAkamai(s Snapshot) (bool, string) {
	if strings.Contains(s.HTML, "Reference #") && (s.Title == "Access Denied" || strings.Contains(s.HTML, "Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(s Snapshot) (bool, string) {
	if containsAny(s.HTML, "geo.captcha-delivery.com", "ct.captcha-delivery.com", "js.datadome.co") {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(s Snapshot) (bool, string) {
	if containsAny(s.HTML, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
