package enums

import "fmt"

// MediaKind classifies the uploaded artifact attached to a post.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
)

var validMediaKinds = []MediaKind{
	MediaKindAudio,
	MediaKindVideo,
	MediaKindImage,
}

// String returns the literal string for the kind.
func (m MediaKind) String() string {
	return string(m)
}

// IsValid reports whether the kind is known.
func (m MediaKind) IsValid() bool {
	for _, candidate := range validMediaKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// HasDuration reports whether artifacts of this kind carry a playable duration.
func (m MediaKind) HasDuration() bool {
	return m == MediaKindAudio || m == MediaKindVideo
}

// ParseMediaKind converts raw input into a MediaKind.
func ParseMediaKind(value string) (MediaKind, error) {
	for _, candidate := range validMediaKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media kind %q", value)
}
