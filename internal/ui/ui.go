// Package ui renders the terminal side of a conversation. It is line based:
// every call writes complete lines and nothing is redrawn.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// UI is what the chat loop draws on.
type UI interface {
	Banner(title string)
	Status(msg string)
	Prompt()
	Reply(text string)
	Error(err error)
}

// SilentUI drops everything.
type SilentUI struct{}

func (SilentUI) Banner(string) {}
func (SilentUI) Status(string) {}
func (SilentUI) Prompt()       {}
func (SilentUI) Reply(string)  {}
func (SilentUI) Error(error)   {}

var _ UI = (*Console)(nil)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	speakerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4"))

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000"))
)

// Console writes styled lines to out. Styling degrades to plain text when
// out is not a colour terminal.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Banner(title string) {
	fmt.Fprintln(c.out, titleStyle.Render(title))
}

func (c *Console) Status(msg string) {
	fmt.Fprintln(c.out, infoStyle.Render(msg))
}

func (c *Console) Reply(text string) {
	fmt.Fprintf(c.out, "%s %s\n", speakerStyle.Render("haven>"), text)
}

func (c *Console) Error(err error) {
	fmt.Fprintln(c.out, errorStyle.Render("error: "+err.Error()))
}

// Prompt is the label shown before user input.
func (c *Console) Prompt() {
	fmt.Fprint(c.out, speakerStyle.Render("you>")+" ")
}
