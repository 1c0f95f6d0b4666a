package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"frontdesk/voice"
)

// TUI message types
type CallStatusMsg struct{ Status Status }
type CallErrorMsg struct{ Text string }
type AudioLevelMsg struct{ Level float64 }
type NoVoiceMsg struct{ Active bool }
type CitationsMsg struct{ Citations []voice.Citation }
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type ChatTurnMsg struct {
	Role string
	Text string
}
type tickMsg time.Time

// uiCommand is a key-driven request from the TUI back to the run loop.
type uiCommand int

const (
	cmdToggleCall uiCommand = iota
	cmdQuit
)

var (
	styleStatusLive = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleStatusConn = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleStatusIdle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleSpeaking   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleError      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleWarn       = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleDim        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMode       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleMeterOn    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterHot   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleCiteTitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	styleCiteURL    = lipgloss.NewStyle().Foreground(lipgloss.Color("31"))
	styleUserTurn   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleModelTurn  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleHelp       = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

type tuiModel struct {
	commands chan<- uiCommand

	status        Status
	frame         int
	callStart     time.Time
	audioLevel    float64
	noVoice       bool
	lastError     string
	modeLine      string
	deviceLine    string
	citations     []voice.Citation
	chatTurns     []ChatTurnMsg
	width, height int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func NewTUIProgram(commands chan<- uiCommand) *tea.Program {
	m := tuiModel{commands: commands}
	p := tea.NewProgram(m, tea.WithAltScreen())
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()
	return p
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			select {
			case m.commands <- cmdQuit:
			default:
			}
			return m, tea.Quit
		case " ":
			select {
			case m.commands <- cmdToggleCall:
			default:
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case CallStatusMsg:
		prev := m.status
		m.status = msg.Status
		if prev == StatusDisconnected && msg.Status == StatusConnecting {
			m.callStart = time.Now()
			m.lastError = ""
			m.citations = nil
		}
		if msg.Status == StatusDisconnected {
			m.audioLevel = 0
			m.noVoice = false
		}

	case CallErrorMsg:
		m.lastError = msg.Text

	case AudioLevelMsg:
		// Smoothed meter so single loud frames don't flicker.
		m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4

	case NoVoiceMsg:
		m.noVoice = msg.Active

	case CitationsMsg:
		m.citations = msg.Citations

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case ChatTurnMsg:
		m.chatTurns = append(m.chatTurns, msg)
	}
	return m, nil
}

const meterWidth = 30

func renderMeter(level float64) string {
	filled := int(level * 8 * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	var b strings.Builder
	for i := 0; i < meterWidth; i++ {
		if i < filled {
			if i > meterWidth*2/3 {
				b.WriteString(styleMeterHot.Render("█"))
			} else {
				b.WriteString(styleMeterOn.Render("█"))
			}
		} else {
			b.WriteString(styleDim.Render("░"))
		}
	}
	return b.String()
}

func (m tuiModel) statusLine() string {
	switch m.status {
	case StatusConnecting:
		dots := strings.Repeat(".", m.frame/4%4)
		return styleStatusConn.Render("◌ CONNECTING" + dots)
	case StatusListening:
		return styleStatusLive.Render(fmt.Sprintf("● ON CALL %s — listening", callDuration(m.callStart)))
	case StatusSpeaking:
		return styleSpeaking.Render(fmt.Sprintf("● ON CALL %s — speaking", callDuration(m.callStart)))
	default:
		return styleStatusIdle.Render("○ READY")
	}
}

func callDuration(start time.Time) string {
	if start.IsZero() {
		return "0:00"
	}
	d := time.Since(start).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var left []string
	left = append(left, "", m.statusLine(), "")

	if m.status == StatusListening || m.status == StatusSpeaking {
		left = append(left, "mic "+renderMeter(m.audioLevel))
		if m.noVoice {
			left = append(left, styleWarn.Render("  ⚠ no voice detected — check your microphone"))
		}
		left = append(left, "")
	}

	if m.lastError != "" {
		left = append(left, styleError.Render(m.lastError), "")
	}
	if m.modeLine != "" {
		left = append(left, styleMode.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		left = append(left, styleDim.Render(m.deviceLine))
	}

	left = append(left, "")
	help := styleHelpKey.Render("space") + styleHelp.Render(" answer/hang up   ") +
		styleHelpKey.Render("q") + styleHelp.Render(" quit")
	left = append(left, help)
	left = append(left, styleHelp.Render("frontdesk "+version))

	const leftWidth = 44
	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}

	var right strings.Builder
	if len(m.chatTurns) > 0 {
		right.WriteString(styleCiteTitle.Render("Conversation") + "\n\n")
		for _, turn := range m.chatTurns {
			style := styleModelTurn
			prefix := "  "
			if turn.Role == "user" {
				style = styleUserTurn
				prefix = "> "
			}
			for _, line := range wrapText(turn.Text, rightWidth-4) {
				right.WriteString(style.Render(prefix+line) + "\n")
				prefix = "  "
			}
		}
		right.WriteString("\n")
	}
	if len(m.citations) > 0 {
		right.WriteString(styleCiteTitle.Render("Sources") + "\n")
		for _, c := range m.citations {
			title := c.Title
			if title == "" {
				title = c.URL
			}
			right.WriteString("  " + styleCiteURL.Render(title) + "\n")
		}
	}
	if right.Len() == 0 {
		right.WriteString(styleDim.Render("Waiting for a call"))
	}

	leftPanel := lipgloss.NewStyle().
		Width(leftWidth).
		Height(m.height).
		PaddingLeft(2).
		Render(strings.Join(left, "\n"))

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiSink forwards controller events into the Bubble Tea program.
type tuiSink struct{}

func (tuiSink) CallStatus(s Status)               { tuiSend(CallStatusMsg{Status: s}) }
func (tuiSink) CallError(msg string)              { tuiSend(CallErrorMsg{Text: msg}) }
func (tuiSink) AudioLevel(level float64)          { tuiSend(AudioLevelMsg{Level: level}) }
func (tuiSink) NoVoiceWarning(active bool)        { tuiSend(NoVoiceMsg{Active: active}) }
func (tuiSink) Citations(cs []voice.Citation)     { tuiSend(CitationsMsg{Citations: cs}) }
func (tuiSink) ModeLine(text string)              { tuiSend(ModeLineMsg{Text: text}) }
func (tuiSink) DeviceLine(text string)            { tuiSend(DeviceLineMsg{Text: text}) }
