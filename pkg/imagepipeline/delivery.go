package imagepipeline

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// ResolveSize maps a thumbnail size token to a bucket. The token may be
// a named bucket or a positive integer pixel hint; any other token fails
// with ErrInvalidSizeToken and there is no fallback bucket.
func ResolveSize(token string) (SizeName, error) {
	if named := SizeName(token); named.IsValid() {
		return named, nil
	}
	px, err := strconv.Atoi(token)
	if err != nil || px <= 0 {
		return "", ErrInvalidSizeToken
	}
	switch {
	case px <= 150:
		return SizeSmall, nil
	case px <= 300:
		return SizeMedium, nil
	case px <= 600:
		return SizeLarge, nil
	default:
		return SizeXLarge, nil
	}
}

// PreferredFormat picks the response encoding from the Accept header.
// Only an explicit image/webp media range opts into webp; wildcards fall
// back to jpeg. Independent of the requested size.
func PreferredFormat(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaRange := part
		if i := strings.IndexByte(part, ';'); i >= 0 {
			mediaRange = part[:i]
		}
		if strings.TrimSpace(mediaRange) == "image/webp" {
			return FormatWebP
		}
	}
	return FormatJPEG
}

// ETagFor computes the cache validator for a served variant: a quoted,
// deterministic function of asset id, upload time and the size bucket
// ("full" for full-size requests).
func ETagFor(meta *ImageMetadata, size string) string {
	if size == "" {
		size = "full"
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s", meta.ID, meta.UploadedAt.UTC().Unix(), size)
	return fmt.Sprintf("%q", strconv.FormatUint(h.Sum64(), 16))
}

// Cache lifetimes of the delivery contract. Real bytes are immutable for
// a year; placeholders are short-lived so recovered storage shows up.
const (
	AssetCacheControl       = "public, max-age=31536000, immutable"
	PlaceholderCacheControl = "public, max-age=3600"
	AssetMaxAge             = 365 * 24 * time.Hour
)

// PlaceholderSVG renders the stand-in graphic served when an asset's
// bytes are missing from storage. The target dimensions are visible in
// the output.
func PlaceholderSVG(width, height int) []byte {
	if width <= 0 {
		width = 300
	}
	if height <= 0 {
		height = 300
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<rect width="100%%" height="100%%" fill="#e2e8f0"/>`+
		`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" font-size="%d" fill="#64748b">%d&#215;%d</text>`+
		`</svg>`,
		width, height, width, height, fontSizeFor(width), width, height)
	return []byte(svg)
}

func fontSizeFor(width int) int {
	size := width / 8
	if size < 12 {
		size = 12
	}
	if size > 48 {
		size = 48
	}
	return size
}
