// internal/browser/allocator.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/a11yscan/internal/config"
)

// flag is one Chrome command line switch. A false bool value removes a
// switch that chromedp enables by default.
type flag struct {
	name  string
	value interface{}
}

// hardeningFlags keep Chrome stable inside containers and stop it from
// throttling a page that is never shown on screen.
var hardeningFlags = []flag{
	{"no-sandbox", true},
	{"disable-setuid-sandbox", true},
	{"disable-web-security", true},
	{"disable-dev-shm-usage", true},
	{"disable-features", "VizDisplayCompositor"},
	{"disable-background-timer-throttling", true},
	{"disable-backgrounding-occluded-windows", true},
	{"disable-renderer-backgrounding", true},
	{"disable-extensions", true},
	// navigator.webdriver stays false.
	{"disable-blink-features", "AutomationControlled"},
	{"enable-automation", false},
}

// allocatorFlags lists every switch derived from cfg, in application order.
// Later entries override earlier ones with the same name.
func allocatorFlags(cfg config.BrowserConfig) []flag {
	flags := make([]flag, 0, len(hardeningFlags)+len(cfg.Args)+3)
	flags = append(flags, flag{"headless", cfg.Headless})
	if cfg.Headless {
		flags = append(flags, flag{"disable-gpu", true})
	}
	flags = append(flags, hardeningFlags...)

	if cfg.IgnoreTLSErrors {
		flags = append(flags, flag{"ignore-certificate-errors", true})
	}

	for _, arg := range cfg.Args {
		if f, ok := parseArg(arg); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// parseArg turns "--name" or "--name=value" into a flag.
func parseArg(arg string) (flag, bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return flag{}, false
	}
	name, value, found := strings.Cut(arg, "=")
	if !found {
		return flag{name, true}, true
	}
	return flag{name, value}, true
}

// DefaultAllocatorOptions builds the exec allocator options for one analysis browser.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, f := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}
