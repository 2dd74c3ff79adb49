// Package collect filters and assembles raw channel content into the
// episode's content artifact. Filtering is pure; fetching and uploading
// stay in the worker layer.
package collect

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/voxloom/voxloom/pkg/telegram"
)

// promotionalMarkers flag advertising and housekeeping posts. The source
// channels mix Hebrew and English, so both appear.
// TODO: the degree sign marker looks accidental; confirm with channel
// owners before removing it.
var promotionalMarkers = []string{
	"sponsored", "promotion", "promo code", "advertisement", "affiliate",
	"discount", "coupon", "sale ends", "limited offer", "buy now",
	"subscribe now", "join our", "click here", "sign up",
	"ממומן", "פרסומת", "קוד קופון", "הנחה", "מבצע",
	"הצטרפו", "לחצו כאן", "הירשמו",
	"°",
}

// promotionalPatterns catch structured promo shapes markers miss.
var promotionalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,2}% off\b`),
	regexp.MustCompile(`(?i)\bt\.me/\+`), // invite links
	regexp.MustCompile(`(?i)\buse code\b`),
}

// IsPromotional reports whether a message looks like advertising.
func IsPromotional(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range promotionalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, re := range promotionalPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"]+`)

// ExtractURLs returns the http(s) URLs found in a message.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// HasBlockedDomain reports whether any URL in the text points at one of
// the podcast's filtered domains. Matching is by host suffix so
// subdomains are covered.
func HasBlockedDomain(text string, blocked []string) bool {
	if len(blocked) == 0 {
		return false
	}
	for _, raw := range ExtractURLs(text) {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, d := range blocked {
			d = strings.ToLower(strings.TrimPrefix(d, "www."))
			if d == "" {
				continue
			}
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		}
	}
	return false
}

// MediaAllowed reports whether the podcast config permits downloading
// this media type. An empty allow list permits nothing.
func MediaAllowed(mt telegram.MediaType, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, string(mt)) {
			return true
		}
	}
	return false
}

// MediaDir maps a media type to its artifact directory.
func MediaDir(mt telegram.MediaType) string {
	switch mt {
	case telegram.MediaImage:
		return "images"
	case telegram.MediaVideo:
		return "video"
	case telegram.MediaAudio:
		return "audio"
	default:
		return "files"
	}
}
