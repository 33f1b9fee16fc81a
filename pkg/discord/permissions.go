package discord

import (
	"github.com/Jacobbrewer1/kennel/pkg/permissions"
	"github.com/bwmarrin/discordgo"
)

var capabilityBits = map[permissions.Capability]int64{
	permissions.View:           discordgo.PermissionViewChannel,
	permissions.Send:           discordgo.PermissionSendMessages,
	permissions.ReadHistory:    discordgo.PermissionReadMessageHistory,
	permissions.Attach:         discordgo.PermissionAttachFiles,
	permissions.EmbedLinks:     discordgo.PermissionEmbedLinks,
	permissions.ManageMessages: discordgo.PermissionManageMessages,
	permissions.ManageChannels: discordgo.PermissionManageChannels,
	permissions.Administrator:  discordgo.PermissionAdministrator,
}

// Bits converts a capability set into Discord permission flags.
func Bits(s permissions.Set) int64 {
	var bits int64
	for _, c := range s.Capabilities() {
		bits |= capabilityBits[c]
	}
	return bits
}

// Capabilities converts Discord permission flags into a capability set. Flags with no capability are dropped.
func Capabilities(bits int64) permissions.Set {
	var s permissions.Set
	for c, b := range capabilityBits {
		if bits&b == b {
			s = s.With(c)
		}
	}
	return s
}
