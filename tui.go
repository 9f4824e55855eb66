package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"isle/landmark"
	"isle/spectrum"
)

// TUI message types
type PhaseMsg struct{ Phase phase }
type StatusMsg struct{ Text string }
type TranscriptMsg struct{ Text string }
type SpectrumMsg struct{ Bins [spectrum.Bins]byte }
type LandmarksMsg struct{ Landmarks []landmark.Landmark }
type LoadingMsg struct{ On bool }
type AudioLevelMsg struct{ Level float64 }
type RecordingTickMsg struct{ Duration float64 }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type frameMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type tuiModel struct {
	ctrl     *controller
	toggleCh chan<- struct{}
	deviceCh chan<- struct{}

	textarea textarea.Model
	spinner  spinner.Model

	phase         phase
	status        string
	bins          [spectrum.Bins]byte
	landmarks     []landmark.Landmark
	loading       bool
	warning       bool
	duration      float64
	level         float64
	frame         int
	width, height int
	modeLine      string
	deviceLine    string
}

func newTUIModel(ctrl *controller, toggleCh, deviceCh chan<- struct{}) tuiModel {
	ta := textarea.New()
	ta.Placeholder = "Your narration appears here. Tab to edit by hand."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(8)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return tuiModel{
		ctrl:     ctrl,
		toggleCh: toggleCh,
		deviceCh: deviceCh,
		textarea: ta,
		spinner:  sp,
		status:   statusIdle,
	}
}

func NewTUIProgram(ctrl *controller, toggleCh, deviceCh chan<- struct{}) *tea.Program {
	return tea.NewProgram(newTUIModel(ctrl, toggleCh, deviceCh), tea.WithAltScreen())
}

func frameTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return frameTick()
}

func (m tuiModel) fireToggle() {
	select {
	case m.toggleCh <- struct{}{}:
	default:
	}
}

func (m tuiModel) copyMap() bool {
	var b strings.Builder
	b.WriteString(m.textarea.Value())
	if len(m.landmarks) > 0 {
		b.WriteString("\n\n")
		for _, l := range m.landmarks {
			b.WriteString(fmt.Sprintf("%s (%s) at %.0f,%.0f\n", l.Name, l.Kind, l.X, l.Y))
		}
	}
	return clipboard.WriteAll(b.String()) == nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		taWidth := m.width - islandPanelWidth - 3
		if taWidth < 20 {
			taWidth = 20
		}
		m.textarea.SetWidth(taWidth)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "ctrl+r":
			m.fireToggle()
			return m, nil

		case "tab":
			if m.textarea.Focused() {
				m.textarea.Blur()
				return m, nil
			}
			return m, m.textarea.Focus()

		case "esc":
			if m.textarea.Focused() {
				m.textarea.Blur()
				return m, nil
			}

		case "enter":
			if !m.textarea.Focused() {
				m.fireToggle()
				return m, nil
			}

		case "c":
			if !m.textarea.Focused() {
				if m.copyMap() {
					m.status = "Copied to clipboard"
				}
				return m, nil
			}

		case "ctrl+g":
			if !m.textarea.Focused() && m.phase == phaseIdle {
				select {
				case m.deviceCh <- struct{}{}:
				default:
				}
				return m, nil
			}
		}

		if m.textarea.Focused() {
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			m.ctrl.SetTranscript(m.textarea.Value())
			return m, cmd
		}

	case frameMsg:
		m.frame++
		return m, frameTick()

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case PhaseMsg:
		m.phase = msg.Phase
		if m.phase == phaseRecording {
			m.duration = 0
			m.level = 0
			m.warning = false
			m.bins = [spectrum.Bins]byte{}
		}

	case StatusMsg:
		m.status = msg.Text

	case TranscriptMsg:
		m.textarea.SetValue(msg.Text)

	case SpectrumMsg:
		m.bins = msg.Bins

	case LandmarksMsg:
		m.landmarks = msg.Landmarks

	case LoadingMsg:
		m.loading = msg.On
		if m.loading {
			return m, m.spinner.Tick
		}

	case AudioLevelMsg:
		if m.phase == phaseRecording {
			m.level = m.level*0.6 + msg.Level*0.4
		}

	case RecordingTickMsg:
		m.duration = msg.Duration

	case NoVoiceWarningMsg:
		m.warning = true

	case VoiceClearedMsg:
		m.warning = false

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	island := renderIsland(m.bins, m.landmarks, m.frame, m.phase == phaseRecording)

	var infoLines []string
	switch m.phase {
	case phaseRecording:
		rec := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render(fmt.Sprintf("● REC %.1fs", m.duration))
		infoLines = append(infoLines, rec)
		if m.warning {
			warn := lipgloss.NewStyle().
				Foreground(lipgloss.Color("208")).
				Render("  ⚠ no voice detected")
			infoLines = append(infoLines, warn)
		}
	case phaseProcessing:
		proc := lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Render("◌ PROCESSING")
		if m.loading {
			proc += " " + m.spinner.View()
		}
		infoLines = append(infoLines, proc)
	default:
		infoLines = append(infoLines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("○ IDLE"))
	}

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	infoLines = append(infoLines, statusStyle.Render(m.status))

	if m.modeLine != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).Render(m.modeLine))
	}
	if m.deviceLine != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).Render(m.deviceLine))
	}

	infoLines = append(infoLines, "")
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	action := "Start Narrating"
	if m.phase == phaseRecording {
		action = "Generate Map"
	}
	infoLines = append(infoLines, boldStyle.Render("Enter")+helpStyle.Render(" "+action))
	infoLines = append(infoLines, helpStyle.Render("Tab edit · c copy · Ctrl+G mic · Ctrl+C quit"))
	infoLines = append(infoLines, helpStyle.Render("isle "+version))

	left := island
	for _, line := range infoLines {
		left += line + "\n"
	}
	leftLines := strings.Split(left, "\n")

	rightWidth := m.width - islandPanelWidth - 1
	if rightWidth < 22 {
		rightWidth = 22
	}

	var right strings.Builder
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Render("Narration")
	right.WriteString(title + "\n\n")
	right.WriteString(m.textarea.View() + "\n")

	if len(m.landmarks) > 0 {
		right.WriteString("\n")
		right.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Render(fmt.Sprintf("Landmarks (%d)", len(m.landmarks))) + "\n")
		for _, l := range m.landmarks {
			glyph, color := landmarkGlyph(l.Kind)
			mark := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(glyph)
			name := lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Render(l.Name)
			coords := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
				Render(fmt.Sprintf(" (%.0f, %.0f)", l.X, l.Y))
			right.WriteString("  " + mark + " " + name + coords + "\n")
		}
	}

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	leftPadded := make([]string, m.height)
	for i := range leftPadded {
		if i < len(leftLines) {
			leftPadded[i] = leftLines[i]
		}
	}
	leftPanel := lipgloss.NewStyle().
		Width(islandPanelWidth).
		Height(m.height).
		Render(strings.Join(leftPadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}
