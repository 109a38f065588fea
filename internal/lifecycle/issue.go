package lifecycle

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/google/uuid"

	"roadassist/internal/errs"
	"roadassist/internal/region"
	"roadassist/internal/resources"
	"roadassist/internal/roles"
	"roadassist/pkg/geo"
)

// State is an issue's position in its lifecycle.
type State string

const (
	StateReported State = "reported"
	StateRejected State = "rejected"
	StateAccepted State = "accepted"
	StateFailed   State = "failed"
	StateAssigned State = "assigned"
	StateDone     State = "done"
	StateScored   State = "scored"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateFailed || s == StateScored
}

// Issue is a citizen-reported incident. Issues are never deleted; every
// transition appends to the audit trail instead.
type Issue struct {
	ID          uuid.UUID
	Title       string
	Description string
	Reporter    *roles.Citizen
	County      *region.Region
	Location    geo.Location
	CreatedAt   time.Time
	State       State
	Image       []byte

	// Requirements are declared once, at acceptance.
	specNeeds []resources.SpecialityNeed
	machNeeds []resources.MachineryNeed

	Mission *Mission
}

// SpecialityNeeds returns the declared speciality requirements in order.
func (i *Issue) SpecialityNeeds() []resources.SpecialityNeed {
	out := make([]resources.SpecialityNeed, len(i.specNeeds))
	copy(out, i.specNeeds)
	return out
}

// MachineryNeeds returns the declared machinery requirements in order.
func (i *Issue) MachineryNeeds() []resources.MachineryNeed {
	out := make([]resources.MachineryNeed, len(i.machNeeds))
	copy(out, i.machNeeds)
	return out
}

func (i *Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.County.Name, i.Title, i.State)
}

const (
	minImageAspectRatio = 0.5
	maxImageAspectRatio = 1.75
)

// decodeIssueImage validates a base64 attachment: bounded size and an aspect
// ratio a phone camera would plausibly produce.
func decodeIssueImage(base64Image string, maxBytes int64) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return nil, fmt.Errorf("image is not valid base64: %w", errs.ErrInvalidArgument)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes: %w", maxBytes, errs.ErrInvalidArgument)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image is not decodable: %w", errs.ErrInvalidArgument)
	}
	if cfg.Height == 0 {
		return nil, fmt.Errorf("image has zero height: %w", errs.ErrInvalidArgument)
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	if ratio < minImageAspectRatio || ratio > maxImageAspectRatio {
		return nil, fmt.Errorf("image aspect ratio %.2f outside [%.2f, %.2f]: %w",
			ratio, minImageAspectRatio, maxImageAspectRatio, errs.ErrInvalidArgument)
	}
	return raw, nil
}
