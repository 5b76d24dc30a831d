// Package console is a terminal front end for trying movie lookups without
// a Telegram bot.
package console

import (
	"context"
	"fmt"

	"moviebot/pkg/dispatcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LookupFunc runs one lookup the same way the bot does for a chat message.
type LookupFunc func(ctx context.Context, query string) dispatcher.LookupResult

func RunInteractive(ctx context.Context, lookupFn LookupFunc) error {
	model := newModel(ctx, lookupFn, modeInteractive, "")
	program := tea.NewProgram(model, tea.WithMouseCellMotion())
	_, err := program.Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(renderGoodbyeBanner())
	return nil
}

func RunOneShot(ctx context.Context, lookupFn LookupFunc, query string) error {
	model := newModel(ctx, lookupFn, modeOneShot, query)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render("🎬 Thanks for using MovieBot")
}
