package schemas

import (
	"fmt"
	"strings"
)

// -- Browser Session Schemas --

// WaitCriterion names the page lifecycle milestone a navigation waits for.
type WaitCriterion string

const (
	// WaitDOMContentLoaded completes once the initial HTML is parsed.
	WaitDOMContentLoaded WaitCriterion = "domcontentloaded"
	// WaitLoad completes on the window load event.
	WaitLoad WaitCriterion = "load"
	// WaitNetworkIdle completes once no requests have been in flight for a short window.
	WaitNetworkIdle WaitCriterion = "networkidle"
)

// ParseWaitCriterion accepts the criterion names case-insensitively.
func ParseWaitCriterion(s string) (WaitCriterion, error) {
	switch c := WaitCriterion(strings.ToLower(strings.TrimSpace(s))); c {
	case WaitDOMContentLoaded, WaitLoad, WaitNetworkIdle:
		return c, nil
	default:
		return "", fmt.Errorf("unknown wait criterion %q", s)
	}
}

// Viewport is a window size in CSS pixels.
type Viewport struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Identity is the client signature a session presents to the target.
type Identity struct {
	UserAgent string   `json:"userAgent"`
	Viewport  Viewport `json:"viewport"`
}

// Point is a position in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Persona supplies the values the stealth script spoofs in the page.
type Persona struct {
	UserAgent string   `json:"userAgent"`
	Platform  string   `json:"platform"`
	Languages []string `json:"languages"`
	Width     int64    `json:"width"`
	Height    int64    `json:"height"`
}

// PersonaFor derives a persona consistent with the given identity.
func PersonaFor(id Identity) Persona {
	return Persona{
		UserAgent: id.UserAgent,
		Platform:  platformFor(id.UserAgent),
		Languages: []string{"en-US", "en"},
		Width:     id.Viewport.Width,
		Height:    id.Viewport.Height,
	}
}

func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}
