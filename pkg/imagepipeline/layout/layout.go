// Package layout implements the storage naming convention shared by the
// variant generator (writes) and the delivery service (reads). Keys are a
// pure function of their inputs; out-of-process tools inspecting storage
// rely on this convention being stable.
//
// Full-size:  {tenant}/{year}/{month}/{assetID}.{ext}
// Thumbnail:  {tenant}/{year}/{month}/thumbnails/{size}/{assetID}_{w}x{h}.{ext}
//
// Year and month come from the asset's upload time (UTC).
package layout

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FullSizeKey returns the storage key of a full-size encoding. Ext is the
// bare file extension ("webp", "jpg").
func FullSizeKey(tenantID string, assetID uuid.UUID, uploadedAt time.Time, ext string) string {
	return fmt.Sprintf("%s/%s.%s", monthPrefix(tenantID, uploadedAt), assetID, ext)
}

// ThumbnailKey returns the storage key of one thumbnail encoding. Width
// and height are the thumbnail's actual pixel dimensions as recorded in
// metadata, not the target box.
func ThumbnailKey(tenantID string, assetID uuid.UUID, uploadedAt time.Time, size string, width, height int, ext string) string {
	return fmt.Sprintf("%s/thumbnails/%s/%s_%dx%d.%s",
		monthPrefix(tenantID, uploadedAt), size, assetID, width, height, ext)
}

func monthPrefix(tenantID string, uploadedAt time.Time) string {
	ts := uploadedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d", SanitizeTenant(tenantID), ts.Year(), int(ts.Month()))
}

// SanitizeTenant normalizes a tenant id into a safe path component.
func SanitizeTenant(tenantID string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(tenantID))
}
