package fingerprint

import (
	"strings"
	"testing"
)

func TestGenerateConsistency(t *testing.T) {
	p := NewProvider(42)

	for i := 0; i < 50; i++ {
		fp := p.Generate()

		switch fp.Platform {
		case "Win32":
			if !strings.Contains(fp.UserAgent, "Windows NT") {
				t.Errorf("Win32 platform with non-Windows UA: %q", fp.UserAgent)
			}
			if fp.SecChUAPlatform != `"Windows"` {
				t.Errorf("Win32 platform with client hint %s", fp.SecChUAPlatform)
			}
		case "MacIntel":
			if !strings.Contains(fp.UserAgent, "Macintosh") {
				t.Errorf("MacIntel platform with non-Mac UA: %q", fp.UserAgent)
			}
		case "Linux x86_64":
			if !strings.Contains(fp.UserAgent, "Linux") {
				t.Errorf("Linux platform with non-Linux UA: %q", fp.UserAgent)
			}
		default:
			t.Fatalf("unknown platform %q", fp.Platform)
		}

		if fp.ViewportWidth != fp.ScreenWidth || fp.ViewportHeight != fp.ScreenHeight {
			t.Errorf("viewport %dx%d does not match screen %dx%d",
				fp.ViewportWidth, fp.ViewportHeight, fp.ScreenWidth, fp.ScreenHeight)
		}
		if fp.HardwareConcurrency < 4 || fp.HardwareConcurrency > 16 {
			t.Errorf("hardware concurrency out of range: %d", fp.HardwareConcurrency)
		}
	}
}

func TestGenerateNoisy(t *testing.T) {
	p := NewProvider(1)

	fp := p.Generate()
	if fp.Noisy {
		t.Error("plain fingerprint should not be noisy")
	}
	if strings.Contains(fp.StealthJS(), "toDataURL") {
		t.Error("plain fingerprint should not carry canvas noise")
	}

	noisy := p.GenerateNoisy()
	if !noisy.Noisy {
		t.Error("noisy fingerprint should be flagged")
	}
	js := noisy.StealthJS()
	if !strings.Contains(js, "toDataURL") || !strings.Contains(js, "WebGLRenderingContext") {
		t.Error("noisy fingerprint should carry canvas and WebGL noise")
	}
}

func TestHeadersMatchFingerprint(t *testing.T) {
	p := NewProvider(7)
	fp := p.Generate()

	h := fp.Headers()
	if got := h.Get("User-Agent"); got != fp.UserAgent {
		t.Errorf("header UA %q does not match fingerprint UA %q", got, fp.UserAgent)
	}
	if got := h.Get("Sec-Ch-Ua-Platform"); got != fp.SecChUAPlatform {
		t.Errorf("header platform hint %q does not match %q", got, fp.SecChUAPlatform)
	}
	if !strings.Contains(h.Get("Accept-Encoding"), "br") {
		t.Error("expected brotli in Accept-Encoding")
	}
}

func TestStealthJSEmbedsTraits(t *testing.T) {
	p := NewProvider(3)
	fp := p.Generate()

	js := fp.StealthJS()
	if !strings.Contains(js, fp.Platform) {
		t.Error("stealth JS should embed the platform")
	}
	if !strings.Contains(js, "webdriver") {
		t.Error("stealth JS should remove the webdriver flag")
	}
}
