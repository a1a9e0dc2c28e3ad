package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// RoomInfoView renders the box the host shares with the guest.
func RoomInfoView(roomID, roomLink string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room ready\n\n%s Room ID:    %s\n%s Room Link:  %s\n\n%s",
		IconRoom,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomID),
		IconWeb, MutedStyle.Render(roomLink),
		MutedStyle.Render("Join with: warpcall join "+roomID),
	)
	return box.Render(content)
}

func RenderRoomInfo(roomID, roomLink string) {
	fmt.Println(RoomInfoView(roomID, roomLink))
}
