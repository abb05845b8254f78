package classifier

import (
	"strings"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
)

var botSignatures = []string{
	"bot", "crawler", "spider", "slurp", "crawl", "headless",
	"curl/", "wget/", "python-requests", "python-urllib", "go-http-client",
	"java/", "okhttp", "httpclient", "libwww", "facebookexternalhit",
	"embedly", "preview", "monitor", "pingdom", "lighthouse",
}

var tabletSignatures = []string{"ipad", "tablet", "kindle", "silk/", "playbook", "nexus 7", "nexus 10", "sm-t"}

var mobileSignatures = []string{
	"mobi", "iphone", "ipod", "android", "windows phone", "blackberry",
	"bb10", "opera mini", "iemobile", "webos",
}

// DeviceClass classifies a User-Agent. Bot signatures win over tablet,
// tablet over mobile, mobile over desktop. A UA without a product token
// ("name/version") is unparseable and classifies as other.
func DeviceClass(userAgent string) domain.Device {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return domain.DeviceOther
	}
	if containsAny(ua, botSignatures) {
		return domain.DeviceBot
	}
	if containsAny(ua, tabletSignatures) || (strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")) {
		return domain.DeviceTablet
	}
	if containsAny(ua, mobileSignatures) {
		return domain.DeviceMobile
	}
	if !hasProductToken(ua) {
		return domain.DeviceOther
	}
	return domain.DeviceDesktop
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasProductToken(ua string) bool {
	i := strings.IndexByte(ua, '/')
	return i > 0 && i < len(ua)-1
}
