package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker decides who counts as staff. Staff may stop a session
// they are not playing.
type PermissionChecker struct {
	staffRoleIDs []string
}

// NewPermissionChecker creates a PermissionChecker for the given roles. With
// no roles nobody is staff.
func NewPermissionChecker(staffRoleIDs ...string) *PermissionChecker {
	return &PermissionChecker{staffRoleIDs: slices.Clone(staffRoleIDs)}
}

// IsStaff reports whether m holds one of the staff roles. A nil member, as
// sent for DM interactions, is never staff.
func (p *PermissionChecker) IsStaff(m *discordgo.Member) bool {
	if m == nil {
		return false
	}
	return slices.ContainsFunc(m.Roles, func(r string) bool {
		return slices.Contains(p.staffRoleIDs, r)
	})
}
