package profile

import (
	"fmt"
	"strings"
)

// ActorType distinguishes the two audiences the generation prompts address.
type ActorType string

const (
	ActorBusiness ActorType = "business"
	ActorCreator  ActorType = "creator"
)

// Profile is the business or creator identity the whole pipeline works from.
type Profile struct {
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Location     string    `json:"location"`
	Platform     string    `json:"platform"`
	ActorType    ActorType `json:"actor_type"`
	CreatorGoals string    `json:"creator_goals,omitempty"`
}

// ValidationError reports which required fields are missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Validate checks the required fields (name, location). It returns a
// *ValidationError when any are missing.
func (p Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Location) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ApplyDetectedCategory merges a more specific category detected by the
// research stage. Empty detections leave the profile untouched.
func (p *Profile) ApplyDetectedCategory(detected string) {
	detected = strings.TrimSpace(detected)
	if detected == "" {
		return
	}
	p.Category = detected
}
