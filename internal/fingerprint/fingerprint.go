// Package fingerprint produces internally-consistent randomized browsing
// identities for each browsing session.
package fingerprint

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
)

// Fingerprint is one randomized browsing identity. All traits agree with
// each other: the user agent matches the platform, the screen matches the
// viewport, and the client-hint headers match the user agent.
type Fingerprint struct {
	UserAgent string
	Platform  string // navigator.platform value
	Language  string
	Timezone  string

	ViewportWidth  int
	ViewportHeight int
	ScreenWidth    int
	ScreenHeight   int

	HardwareConcurrency int
	DeviceMemory        int

	SecChUA         string
	SecChUAPlatform string

	// Noisy adds canvas/WebGL noise and strips automation markers;
	// used by the evasion strategy.
	Noisy bool
}

type platformProfile struct {
	platform        string
	secChUAPlatform string
	userAgents      []string
}

var platformProfiles = []platformProfile{
	{
		platform:        "Win32",
		secChUAPlatform: `"Windows"`,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
	},
	{
		platform:        "MacIntel",
		secChUAPlatform: `"macOS"`,
		userAgents: []string{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
	},
	{
		platform:        "Linux x86_64",
		secChUAPlatform: `"Linux"`,
		userAgents: []string{
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
	},
}

var viewports = []struct{ w, h int }{
	{1920, 1080}, {1366, 768}, {1536, 864},
	{1440, 900}, {1280, 720}, {2560, 1440},
}

var timezones = []string{
	"America/New_York", "America/Chicago", "America/Los_Angeles",
	"Europe/London", "Europe/Berlin",
}

// Provider generates fingerprints from its own random source.
type Provider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewProvider creates a Provider seeded from seed (use a time-based seed
// in production; a fixed seed makes tests reproducible).
func NewProvider(seed int64) *Provider {
	return &Provider{rng: rand.New(rand.NewSource(seed))}
}

// Generate returns a fresh, internally-consistent fingerprint.
func (p *Provider) Generate() *Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile := platformProfiles[p.rng.Intn(len(platformProfiles))]
	vp := viewports[p.rng.Intn(len(viewports))]

	return &Fingerprint{
		UserAgent:           profile.userAgents[p.rng.Intn(len(profile.userAgents))],
		Platform:            profile.platform,
		Language:            "en-US",
		Timezone:            timezones[p.rng.Intn(len(timezones))],
		ViewportWidth:       vp.w,
		ViewportHeight:      vp.h,
		ScreenWidth:         vp.w,
		ScreenHeight:        vp.h,
		HardwareConcurrency: 4 + p.rng.Intn(13), // 4-16 cores
		DeviceMemory:        []int{4, 8, 16}[p.rng.Intn(3)],
		SecChUA:             `"Chromium";v="120", "Not?A_Brand";v="8", "Google Chrome";v="120"`,
		SecChUAPlatform:     profile.secChUAPlatform,
	}
}

// GenerateNoisy returns a fingerprint with extra entropy for the evasion
// strategy: canvas/WebGL noise and removed automation markers.
func (p *Provider) GenerateNoisy() *Fingerprint {
	fp := p.Generate()
	fp.Noisy = true
	return fp
}

// WindowSize returns the launch window-size flag value.
func (fp *Fingerprint) WindowSize() string {
	return fmt.Sprintf("%d,%d", fp.ViewportWidth, fp.ViewportHeight)
}

// Headers returns browser-like HTTP headers matching this fingerprint,
// for requests issued outside the browser.
func (fp *Fingerprint) Headers() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", fp.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", fp.Language+",en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Ch-Ua", fp.SecChUA)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", fp.SecChUAPlatform)
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// StealthJS returns JavaScript injected into every page before any other
// scripts run, overriding navigator traits to match the fingerprint.
func (fp *Fingerprint) StealthJS() string {
	js := fmt.Sprintf(`
// Override navigator properties
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => ['%s', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });

// Remove webdriver flag
Object.defineProperty(navigator, 'webdriver', { get: () => false });

// Screen geometry
Object.defineProperty(screen, 'width', { get: () => %d });
Object.defineProperty(screen, 'height', { get: () => %d });

// Override Chrome properties
window.chrome = {
	runtime: { onMessage: { addListener: () => {} }, sendMessage: () => {} },
	loadTimes: () => ({}),
	csi: () => ({}),
};

// Fix permissions API
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);

// Fix plugins array
Object.defineProperty(navigator, 'plugins', {
	get: () => {
		const plugins = [
			{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
			{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
			{ name: 'Native Client', filename: 'internal-nacl-plugin' },
		];
		plugins.length = 3;
		return plugins;
	}
});
`, fp.Platform, fp.Language, fp.Language, fp.HardwareConcurrency, fp.DeviceMemory,
		fp.ScreenWidth, fp.ScreenHeight)

	if fp.Noisy {
		js += noiseJS
	}
	return js
}

// noiseJS perturbs canvas and WebGL reads so repeated sessions do not
// share a pixel-identical rendering fingerprint.
const noiseJS = `
// Canvas noise
const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
HTMLCanvasElement.prototype.toDataURL = function(...args) {
	const ctx = this.getContext('2d');
	if (ctx && this.width > 0 && this.height > 0) {
		const d = ctx.getImageData(0, 0, 1, 1);
		d.data[0] = d.data[0] ^ (Math.floor(Math.random() * 2));
		ctx.putImageData(d, 0, 0);
	}
	return origToDataURL.apply(this, args);
};

// WebGL vendor noise
const origGetParameter = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function(p) {
	if (p === 37445) return 'Intel Inc.';
	if (p === 37446) return 'Intel Iris OpenGL Engine';
	return origGetParameter.call(this, p);
};

// Hide automation leftovers
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
`
