package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceNames maps configured names, singular or plural, to devtools
// resource types.
var resourceNames = map[string]proto.NetworkResourceType{
	"image":       proto.NetworkResourceTypeImage,
	"images":      proto.NetworkResourceTypeImage,
	"font":        proto.NetworkResourceTypeFont,
	"fonts":       proto.NetworkResourceTypeFont,
	"stylesheet":  proto.NetworkResourceTypeStylesheet,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
	"media":       proto.NetworkResourceTypeMedia,
	"script":      proto.NetworkResourceTypeScript,
	"scripts":     proto.NetworkResourceTypeScript,
	"xhr":         proto.NetworkResourceTypeXHR,
	"fetch":       proto.NetworkResourceTypeFetch,
	"websocket":   proto.NetworkResourceTypeWebSocket,
	"eventsource": proto.NetworkResourceTypeEventSource,
	"texttrack":   proto.NetworkResourceTypeTextTrack,
	"manifest":    proto.NetworkResourceTypeManifest,
	"prefetch":    proto.NetworkResourceTypePrefetch,
	"ping":        proto.NetworkResourceTypePing,
	"other":       proto.NetworkResourceTypeOther,
}

type blockList map[proto.NetworkResourceType]bool

// parseBlockList resolves names to resource types. The page document
// itself can never be blocked.
func parseBlockList(names []string) (blockList, error) {
	bl := make(blockList, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "document" || key == "documents" {
			return nil, fmt.Errorf("browser: resource type %q cannot be blocked", n)
		}
		rt, ok := resourceNames[key]
		if !ok {
			return nil, fmt.Errorf("browser: unknown resource type %q", n)
		}
		bl[rt] = true
	}
	return bl, nil
}

// ValidateResourceTypes reports the first name in names that cannot be
// used for resource blocking.
func ValidateResourceTypes(names []string) error {
	_, err := parseBlockList(names)
	return err
}

// applyResourceBlocking fails requests on page whose type is in names. The
// caller stops the returned router when the page closes.
func applyResourceBlocking(page *rod.Page, names []string) (*rod.HijackRouter, error) {
	bl, err := parseBlockList(names)
	if err != nil {
		return nil, err
	}
	router := page.HijackRequests()
	err = router.Add("*", "", func(h *rod.Hijack) {
		if bl[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		_ = router.Stop()
		return nil, fmt.Errorf("browser: hijack requests: %w", err)
	}
	go router.Run()
	return router, nil
}
