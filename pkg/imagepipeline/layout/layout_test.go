package layout_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stayops/imagepipeline/pkg/imagepipeline/layout"
)

func TestFullSizeKey(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	uploadedAt := time.Date(2025, time.March, 7, 14, 30, 0, 0, time.UTC)

	key := layout.FullSizeKey("hotel-aurora", id, uploadedAt, "webp")
	assert.Equal(t, "hotel-aurora/2025/03/0f8fad5b-d9cb-469f-a165-70867728950e.webp", key)

	key = layout.FullSizeKey("hotel-aurora", id, uploadedAt, "jpg")
	assert.Equal(t, "hotel-aurora/2025/03/0f8fad5b-d9cb-469f-a165-70867728950e.jpg", key)
}

func TestThumbnailKey(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	uploadedAt := time.Date(2025, time.November, 2, 0, 0, 0, 0, time.UTC)

	key := layout.ThumbnailKey("acme", id, uploadedAt, "small", 150, 84, "webp")
	assert.Equal(t, "acme/2025/11/thumbnails/small/0f8fad5b-d9cb-469f-a165-70867728950e_150x84.webp", key)
}

func TestKeyUsesUTCMonth(t *testing.T) {
	id := uuid.New()
	// Local time just before midnight on Dec 31; UTC is already January.
	loc := time.FixedZone("UTC-5", -5*3600)
	uploadedAt := time.Date(2024, time.December, 31, 23, 0, 0, 0, loc)

	key := layout.FullSizeKey("t", id, uploadedAt, "webp")
	assert.Contains(t, key, "/2025/01/")
}

func TestSanitizeTenant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hotel Aurora", "hotel_aurora"},
		{"a/b\\c:d", "a_b_c_d"},
		{"plain-tenant", "plain-tenant"},
		{"q?u*o\"t<e>s|", "q_u_o_t_e_s_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, layout.SanitizeTenant(tt.in))
	}
}
