package vision

import (
	"strconv"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// Metadata is the EXIF information of an uploaded image that matters
// before it leaves the machine.
type Metadata struct {
	// Present is true when the image carries an EXIF block.
	Present bool `json:"present"`

	// Orientation is the EXIF orientation (1..8), or 0 when absent.
	Orientation int `json:"orientation,omitempty"`

	// HasGPS is true when any GPS coordinate tag is set.
	HasGPS bool `json:"has_gps"`

	// Camera is "Make Model" when either tag is set.
	Camera string `json:"camera,omitempty"`
}

// Rotated reports whether the orientation tag asks viewers to rotate or
// mirror the pixels. Bounding boxes refer to the stored pixels.
func (m Metadata) Rotated() bool {
	return m.Orientation > 1
}

// InspectEXIF reads EXIF tags from image. Images without EXIF (PNG, most
// screenshots) return a zero Metadata.
func InspectEXIF(image []byte) Metadata {
	rawExif, err := exif.SearchAndExtractExif(image)
	if err != nil || rawExif == nil {
		return Metadata{}
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return Metadata{}
	}

	m := Metadata{Present: true}
	var camMake, camModel string
	for _, e := range entries {
		switch e.TagName {
		case "Orientation":
			m.Orientation = orientationOf(e.Value, e.Formatted)
		case "GPSLatitude", "GPSLongitude":
			m.HasGPS = true
		case "Make":
			camMake = strings.TrimSpace(e.Formatted)
		case "Model":
			camModel = strings.TrimSpace(e.Formatted)
		}
	}
	m.Camera = strings.TrimSpace(camMake + " " + camModel)
	return m
}

func orientationOf(value any, formatted string) int {
	if v, ok := value.([]uint16); ok && len(v) > 0 {
		return int(v[0])
	}
	n, err := strconv.Atoi(strings.Trim(formatted, "[] "))
	if err != nil {
		return 0
	}
	return n
}
