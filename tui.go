package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"attacca/detect"
)

// TUI message types
type SnapshotMsg struct{ Snap detect.Snapshot }
type TriggerMsg struct{ At time.Time }
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type BluetoothWarningMsg struct{ IsBT bool }
type ThresholdMsg struct{ Start float64 }
type LogMsg struct{ Text string }
type tickMsg time.Time

// key actions are delivered to run() over buffered channels so the TUI never
// blocks on the session's transition mutex
var (
	tuiToggleChan = make(chan struct{}, 1)
	tuiModeChan   = make(chan struct{}, 1)
)

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

const maxLogLines = 8

var (
	styleTriggered = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleListening = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	styleStandby   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarn      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeta      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleHelp      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleBarHi     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleBarMid    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleBarLo     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleTrig      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type tuiModel struct {
	snap          detect.Snapshot
	frame         int
	width, height int
	modeLine      string
	deviceLine    string
	btWarning     bool
	startThresh   float64
	lastTrigger   time.Time
	logLines      []string
}

func NewTUIProgram() *tea.Program {
	m := tuiModel{}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
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
			return m, tea.Quit
		case " ":
			select {
			case tuiToggleChan <- struct{}{}:
			default:
			}
		case "m":
			select {
			case tuiModeChan <- struct{}{}:
			default:
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case SnapshotMsg:
		m.snap = msg.Snap

	case TriggerMsg:
		m.lastTrigger = msg.At

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case BluetoothWarningMsg:
		m.btWarning = msg.IsBT

	case ThresholdMsg:
		m.startThresh = msg.Start

	case LogMsg:
		m.logLines = append(m.logLines, msg.Text)
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
	}
	return m, nil
}

// renderBar draws a probability meter with a threshold marker.
func renderBar(value, threshold float64, width int) string {
	if width < 10 {
		width = 10
	}
	fill := int(value * float64(width))
	if fill > width {
		fill = width
	}
	mark := -1 // no marker when threshold unset
	if threshold > 0 {
		mark = int(threshold * float64(width))
		if mark >= width {
			mark = width - 1
		}
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		ch := "─"
		if i < fill {
			ch = "█"
		}
		if i == mark {
			ch = "┃"
		}
		switch {
		case i < fill && value >= threshold:
			b.WriteString(styleBarHi.Render(ch))
		case i < fill:
			b.WriteString(styleBarMid.Render(ch))
		default:
			b.WriteString(styleBarLo.Render(ch))
		}
	}
	return b.String()
}

func (m tuiModel) statusLine() string {
	if !m.snap.Listening {
		return styleStandby.Render("○ STANDBY")
	}
	switch m.snap.State {
	case detect.StateTriggered:
		// Pulse while actively triggered.
		marker := "♪"
		if m.frame%10 < 5 {
			marker = "♫"
		}
		return styleTriggered.Render(marker + " SINGING")
	default:
		return styleListening.Render("◉ LISTENING")
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	barWidth := m.width - 14
	if barWidth > 48 {
		barWidth = 48
	}

	var lines []string
	lines = append(lines, styleMeta.Render("attacca "+version))
	lines = append(lines, "")
	lines = append(lines, m.statusLine())
	lines = append(lines, "")

	lines = append(lines,
		styleDim.Render("raw      ")+renderBar(m.snap.LastProbability, 0, barWidth)+styleDim.Render(fmt.Sprintf(" %4.2f", m.snap.LastProbability)))
	lines = append(lines,
		styleDim.Render("smoothed ")+renderBar(m.snap.Smoothed, m.startThresh, barWidth)+styleDim.Render(fmt.Sprintf(" %4.2f", m.snap.Smoothed)))

	if m.snap.Listening && m.snap.State != detect.StateTriggered && m.snap.HoldProgress > 0 && m.snap.HoldProgress < 1 {
		lines = append(lines,
			styleDim.Render("hold     ")+renderBar(m.snap.HoldProgress, 0, barWidth)+styleDim.Render(fmt.Sprintf(" %3.0f%%", m.snap.HoldProgress*100)))
	}
	lines = append(lines, "")

	if m.snap.SilenceWarned {
		lines = append(lines, styleWarn.Render("⚠ nothing heard for a while"))
	}
	if m.snap.LastError != "" {
		lines = append(lines, styleWarn.Render("⚠ "+m.snap.LastError))
	}

	trigLine := fmt.Sprintf("triggers: %d", m.snap.TriggerCount)
	if !m.lastTrigger.IsZero() {
		trigLine += fmt.Sprintf(" (last %s ago)", time.Since(m.lastTrigger).Truncate(time.Second))
	}
	lines = append(lines, styleTrig.Render(trigLine))
	lines = append(lines, "")

	if m.modeLine != "" {
		lines = append(lines, styleMeta.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		line := m.deviceLine
		if m.btWarning {
			line += styleWarn.Render(" (BT!)")
		}
		lines = append(lines, styleDim.Render(line))
	}
	lines = append(lines, "")

	for _, l := range m.logLines {
		lines = append(lines, styleDim.Render(l))
	}
	lines = append(lines, "")

	help := styleHelpBold.Render("space") + styleHelp.Render(" pause/resume  ") +
		styleHelpBold.Render("m") + styleHelp.Render(" mode  ") +
		styleHelpBold.Render("ctrl+c") + styleHelp.Render(" quit")
	lines = append(lines, help)

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func logToTUI(format string, args ...interface{}) {
	tuiSend(LogMsg{Text: fmt.Sprintf(format, args...)})
}
