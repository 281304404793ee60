package enums

import "fmt"

// ParticipantRole distinguishes the shared-order creator from joiners.
type ParticipantRole string

const (
	ParticipantRoleOwner       ParticipantRole = "owner"
	ParticipantRoleParticipant ParticipantRole = "participant"
)

var validParticipantRoles = []ParticipantRole{
	ParticipantRoleOwner,
	ParticipantRoleParticipant,
}

// String implements fmt.Stringer.
func (p ParticipantRole) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ParticipantRole.
func (p ParticipantRole) IsValid() bool {
	for _, candidate := range validParticipantRoles {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseParticipantRole converts raw input into a ParticipantRole.
func ParseParticipantRole(value string) (ParticipantRole, error) {
	for _, candidate := range validParticipantRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid participant role %q", value)
}
