package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"colco/sampler"
)

// colorSink receives every sampled color, e.g. a Hue streamer.
type colorSink interface {
	Send(sampler.Color) error
}

type pickerState int

const (
	pickerStarting pickerState = iota
	pickerSampling
	pickerDone
)

type sourceOpenedMsg struct {
	src  FrameSource
	name string
	err  error
}

type tickMsg time.Time

type sampleMsg struct {
	color   sampler.Color
	region  sampler.Region
	err     error
	sendErr error
}

type sentMsg struct{ err error }

type picker struct {
	state   pickerState
	spinner spinner.Model
	log     *logrus.Logger

	open     func() (FrameSource, string, error)
	src      FrameSource
	srcName  string
	sink     colorSink
	guide    float64
	interval time.Duration

	mode     sampler.Mode
	live     bool
	snap     bool
	inFlight bool

	color    sampler.Color
	hasColor bool
	region   sampler.Region
	skipped  int
	lastErr  error
	err      error
}

var (
	swatchStyle = lipgloss.NewStyle().Width(18).Height(5).Border(lipgloss.RoundedBorder())
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(8)
	valueStyle  = lipgloss.NewStyle().Bold(true)
	liveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

func newPicker(cfg *Config, log *logrus.Logger, open func() (FrameSource, string, error), sink colorSink) picker {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return picker{
		state:    pickerStarting,
		spinner:  s,
		log:      log,
		open:     open,
		sink:     sink,
		guide:    cfg.GuideSize,
		interval: cfg.Interval,
		mode:     cfg.SampleMode(),
		live:     true,
	}
}

func (m picker) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, openSourceCmd(m.open))
}

func openSourceCmd(open func() (FrameSource, string, error)) tea.Cmd {
	return func() tea.Msg {
		src, name, err := open()
		return sourceOpenedMsg{src: src, name: name, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// sampleCmd samples the guide square of the current frame off the UI
// goroutine and forwards the color to sink.
func sampleCmd(src FrameSource, guide float64, mode sampler.Mode, sink colorSink) tea.Cmd {
	return func() tea.Msg {
		var msg sampleMsg
		msg.err = src.View(func(f sampler.Frame) error {
			msg.region = GuideRegion(f.Width, f.Height, guide, src.Scale())
			c, err := sampler.Sample(f, msg.region, mode)
			msg.color = c
			return err
		})
		if msg.err == nil && sink != nil {
			msg.sendErr = sink.Send(msg.color)
		}
		return msg
	}
}

func sendCmd(sink colorSink, c sampler.Color) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{err: sink.Send(c)}
	}
}

// startSample marks a sample in flight; only one runs at a time.
func (m picker) startSample() (picker, tea.Cmd) {
	if m.inFlight || m.src == nil {
		return m, nil
	}
	m.inFlight = true
	return m, sampleCmd(m.src, m.guide, m.mode, m.sink)
}

func (m picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state != pickerStarting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sourceOpenedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("opening frame source: %w", msg.err)
			m.state = pickerDone
			return m, tea.Quit
		}
		m.src = msg.src
		m.srcName = msg.name
		m.state = pickerSampling
		m.log.WithFields(logrus.Fields{
			"function": "picker.Update",
			"source":   msg.name,
		}).Info("Frame source opened")
		return m, tickCmd(m.interval)

	case tickMsg:
		if m.state != pickerSampling {
			return m, nil
		}
		next := tickCmd(m.interval)
		if m.live || m.snap {
			var cmd tea.Cmd
			m, cmd = m.startSample()
			return m, tea.Batch(next, cmd)
		}
		if m.sink != nil && m.hasColor {
			// Keep the entertainment stream alive while frozen.
			return m, tea.Batch(next, sendCmd(m.sink, m.color))
		}
		return m, next

	case sampleMsg:
		m.inFlight = false
		if msg.err != nil {
			m.skipped++
			m.lastErr = msg.err
			m.log.WithFields(logrus.Fields{
				"function": "picker.Update",
				"region":   msg.region.String(),
				"error":    msg.err,
			}).Debug("Skipping frame")
			return m, nil
		}
		m.color = msg.color
		m.region = msg.region
		m.hasColor = true
		m.snap = false
		m.lastErr = nil
		if msg.sendErr != nil {
			m.logSendError(msg.sendErr)
		}
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.logSendError(msg.err)
		}
		return m, nil
	}
	return m, nil
}

func (m picker) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.state = pickerDone
		return m, tea.Quit
	}
	if m.state != pickerSampling {
		return m, nil
	}

	switch msg.String() {
	case " ", "enter":
		m.live = false
		m.snap = true
		return m.startSample()
	case "l":
		m.live = !m.live
	case "m":
		if m.mode == sampler.AverageRegion {
			m.mode = sampler.CenterPixel
		} else {
			m.mode = sampler.AverageRegion
		}
	}
	return m, nil
}

func (m picker) logSendError(err error) {
	m.log.WithFields(logrus.Fields{
		"function": "picker.Update",
		"error":    err,
	}).Warn("Failed to stream color")
}

func (m picker) View() string {
	switch m.state {
	case pickerStarting:
		return fmt.Sprintf("\n %s %s\n\n",
			m.spinner.View(),
			titleStyle.Render("Opening frame source..."))

	case pickerDone:
		if m.err != nil {
			return "\n" + errStyle.Render("  Error: "+m.err.Error()) + "\n\n"
		}
		if m.hasColor {
			return fmt.Sprintf("\n  %s\n\n", m.color)
		}
		return ""
	}

	status := helpStyle.Render("frozen")
	if m.live {
		status = liveStyle.Render("live")
	}
	s := "\n" + titleStyle.Render("  colco") + "  " + status + "\n\n"
	s += lipgloss.JoinHorizontal(lipgloss.Top, "  ", m.swatch(), "  ", m.details()) + "\n"
	if m.lastErr != nil {
		s += "\n" + errStyle.Render("  skipped frame: "+m.lastErr.Error()) + "\n"
	}
	s += "\n" + helpStyle.Render("  space snap · l live · m mode · q quit") + "\n"
	return s
}

func (m picker) swatch() string {
	style := swatchStyle
	label := ""
	switch {
	case !m.hasColor:
		label = "no sample"
	case m.color.A == 0:
		label = "transparent"
	default:
		style = style.Background(lipgloss.Color(m.color.Hex()))
	}
	return style.Render(label)
}

func (m picker) details() string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}
	s := row("source", m.srcName)
	s += row("mode", m.mode.String())
	if m.hasColor {
		h, sat, v := m.color.Colorful().Hsv()
		s += row("hex", m.color.Hex())
		s += row("alpha", fmt.Sprintf("%.3f", m.color.A))
		s += row("hsv", fmt.Sprintf("%.0f° %.0f%% %.0f%%", h, sat*100, v*100))
		s += row("region", m.region.String())
	}
	if m.skipped > 0 {
		s += row("skipped", fmt.Sprint(m.skipped))
	}
	return s
}
