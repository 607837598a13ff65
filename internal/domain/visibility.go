package domain

import "github.com/google/uuid"

type Disclosure int

const (
	Redact Disclosure = iota
	Disclose
)

func (d Disclosure) String() string {
	if d == Disclose {
		return "disclose"
	}
	return "redact"
}

// Resolve decides whether one sensitive field of ownerID may be shown to
// viewerID. It performs no I/O; the allow-list must already be loaded and is
// only consulted in SOME mode. Unknown modes redact.
func Resolve(mode VisibilityMode, ownerID, viewerID uuid.UUID, allow AllowList) Disclosure {
	if viewerID == ownerID {
		return Disclose
	}
	switch mode {
	case VisibilityAll:
		return Disclose
	case VisibilitySome:
		if allow.Contains(viewerID) {
			return Disclose
		}
		return Redact
	default:
		return Redact
	}
}
