package scrape

import (
	"strings"
)

// BlockType describes the kind of challenge detected on a page.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockUnusual    BlockType = "unusual_traffic"
	BlockCaptcha    BlockType = "captcha"
	BlockCloudflare BlockType = "cloudflare"
	BlockHuman      BlockType = "human_verification"
)

var blockMarkers = []struct {
	marker string
	kind   BlockType
}{
	{"our systems have detected unusual traffic", BlockUnusual},
	{"detected requests coming from your computer network", BlockUnusual},
	{"enable javascript on your web browser", BlockUnusual},
	{"verify you are human", BlockHuman},
	{"enable javascript and cookies to continue", BlockHuman},
	{"checking your browser", BlockCloudflare},
	{"cf-browser-verification", BlockCloudflare},
	{"g-recaptcha", BlockCaptcha},
	{"h-captcha", BlockCaptcha},
	{"captcha-form", BlockCaptcha},
}

// DetectBlock reports whether p is a search-engine block page or a bot
// challenge rather than real content.
func DetectBlock(p *Page) (bool, BlockType) {
	if p == nil {
		return false, BlockNone
	}
	if strings.Contains(p.URL, "google.com/sorry/") {
		return true, BlockUnusual
	}

	text := strings.ToLower(p.Text)
	html := strings.ToLower(p.HTML)
	for _, m := range blockMarkers {
		if strings.Contains(text, m.marker) || strings.Contains(html, m.marker) {
			return true, m.kind
		}
	}
	return false, BlockNone
}
