package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/livepeer/m3u8"
)

// HLS markers
const (
	HLSExtension    = ".m3u8"
	HLSManifestPath = "/manifest/hls"
)

// isHLS reports whether a stream URL points at an HLS playlist
func isHLS(streamURL string) bool {
	lower := strings.ToLower(streamURL)
	return strings.Contains(lower, HLSExtension) || strings.Contains(lower, HLSManifestPath)
}

// selectVariant downloads an HLS playlist and, when it is a master playlist,
// returns the absolute URI of the tallest variant not above maxHeight. Media
// playlists are returned unchanged.
func selectVariant(ctx context.Context, client *http.Client, masterURL string, maxHeight int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, masterURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build playlist request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch playlist: status %d", resp.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return "", fmt.Errorf("failed to decode playlist: %w", err)
	}
	if listType != m3u8.MASTER {
		return masterURL, nil
	}
	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return masterURL, nil
	}

	variant := pickVariant(master.Variants, maxHeight)
	if variant == nil {
		return "", fmt.Errorf("%w: master playlist has no variants", ErrExtraction)
	}
	return resolveReference(masterURL, variant.URI)
}

// pickVariant prefers the largest height <= maxHeight, then bandwidth; when
// every variant is taller, the shortest one is used
func pickVariant(variants []*m3u8.Variant, maxHeight int) *m3u8.Variant {
	var best, smallest *m3u8.Variant
	bestHeight, smallestHeight := -1, 0

	for _, v := range variants {
		if v == nil || v.URI == "" {
			continue
		}
		h := variantHeight(v.Resolution)
		if smallest == nil || h < smallestHeight {
			smallest, smallestHeight = v, h
		}
		if h > maxHeight {
			continue
		}
		if h > bestHeight || (h == bestHeight && v.Bandwidth > best.Bandwidth) {
			best, bestHeight = v, h
		}
	}
	if best != nil {
		return best
	}
	return smallest
}

// variantHeight parses the height of a WIDTHxHEIGHT resolution attribute
func variantHeight(resolution string) int {
	parts := strings.SplitN(strings.ToLower(resolution), "x", 2)
	if len(parts) != 2 {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return h
}

// resolveReference turns a possibly relative variant URI into an absolute one
func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid playlist URL: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid variant URI: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
