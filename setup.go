package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"colco/hue"
)

const (
	scanTimeout    = 5 * time.Second
	requestTimeout = 10 * time.Second
)

type setupState int

const (
	setupScanning setupState = iota
	setupSelectingBridge
	setupPairing
	setupPairingWait
	setupFetchingAreas
	setupSelectingArea
	setupDone
)

type scanDoneMsg struct {
	bridges []hue.Bridge
	err     error
}

type pairResultMsg struct {
	creds BridgeCredentials
	err   error
}

type areasFetchedMsg struct {
	areas []hue.EntertainmentArea
	err   error
}

// hueBackend is the part of the Hue API the setup flow needs.
type hueBackend interface {
	Discover(ctx context.Context) ([]hue.Bridge, error)
	Pair(ctx context.Context, b hue.Bridge) (BridgeCredentials, error)
	Areas(ctx context.Context, b hue.Bridge, creds BridgeCredentials) ([]hue.EntertainmentArea, error)
}

type bridgeAPI struct{}

func (bridgeAPI) Discover(ctx context.Context) ([]hue.Bridge, error) {
	return hue.Discover(ctx)
}

func (bridgeAPI) Pair(ctx context.Context, b hue.Bridge) (BridgeCredentials, error) {
	username, clientkey, err := hue.Pair(ctx, hue.BaseURL(b.IP), hue.DeviceType)
	return BridgeCredentials{Username: username, Clientkey: clientkey}, err
}

func (bridgeAPI) Areas(ctx context.Context, b hue.Bridge, creds BridgeCredentials) ([]hue.EntertainmentArea, error) {
	return hue.NewClient(hue.BaseURL(b.IP), creds.Username).EntertainmentAreas(ctx)
}

// setup walks the user through choosing a bridge and entertainment area.
type setup struct {
	state   setupState
	spinner spinner.Model
	api     hueBackend
	store   *CredentialStore
	log     *logrus.Logger

	bridges      []hue.Bridge
	cursor       int
	bridge       *hue.Bridge
	creds        BridgeCredentials
	pairErr      string
	areas        []hue.EntertainmentArea
	areaCursor   int
	selectedArea *hue.EntertainmentArea
	err          error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(0).Foreground(lipgloss.Color("170"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newSetup(api hueBackend, store *CredentialStore, log *logrus.Logger) setup {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return setup{state: setupScanning, spinner: s, api: api, store: store, log: log}
}

func (m setup) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scanCmd(m.api))
}

func scanCmd(api hueBackend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		bridges, err := api.Discover(ctx)
		return scanDoneMsg{bridges: bridges, err: err}
	}
}

func pairCmd(api hueBackend, b hue.Bridge) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		creds, err := api.Pair(ctx, b)
		return pairResultMsg{creds: creds, err: err}
	}
}

func fetchAreasCmd(api hueBackend, b hue.Bridge, creds BridgeCredentials) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		areas, err := api.Areas(ctx, b, creds)
		return areasFetchedMsg{areas: areas, err: err}
	}
}

func (m setup) fail(err error) (tea.Model, tea.Cmd) {
	m.err = err
	m.state = setupDone
	return m, tea.Quit
}

// chooseBridge uses stored credentials when present, otherwise asks the
// user to press the link button.
func (m setup) chooseBridge(b hue.Bridge) (tea.Model, tea.Cmd) {
	m.bridge = &b
	if creds, found, _ := m.store.Load(b.ID); found {
		m.creds = creds
		m.state = setupFetchingAreas
		return m, fetchAreasCmd(m.api, b, creds)
	}
	m.state = setupPairing
	return m, nil
}

func (m setup) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.err = errSetupCancelled
			m.state = setupDone
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanDoneMsg:
		switch {
		case msg.err != nil:
			return m.fail(msg.err)
		case len(msg.bridges) == 0:
			return m.fail(fmt.Errorf("no Hue bridges found on the network"))
		case len(msg.bridges) == 1:
			return m.chooseBridge(msg.bridges[0])
		}
		m.bridges = msg.bridges
		m.state = setupSelectingBridge
		return m, nil

	case pairResultMsg:
		if errors.Is(msg.err, hue.ErrLinkButtonNotPressed) {
			m.pairErr = "Link button not pressed."
			m.state = setupPairing
			return m, nil
		}
		if msg.err != nil {
			return m.fail(fmt.Errorf("pairing failed: %w", msg.err))
		}
		m.creds = msg.creds
		m.pairErr = ""
		if err := m.store.Save(m.bridge.ID, msg.creds); err != nil {
			m.log.WithFields(logrus.Fields{
				"function": "setup.Update",
				"bridge":   m.bridge.ID,
				"error":    err,
			}).Warn("Failed to store bridge credentials")
		}
		m.state = setupFetchingAreas
		return m, fetchAreasCmd(m.api, *m.bridge, m.creds)

	case areasFetchedMsg:
		if errors.Is(msg.err, hue.ErrUnauthorized) {
			if err := m.store.Delete(m.bridge.ID); err != nil {
				m.log.WithFields(logrus.Fields{
					"function": "setup.Update",
					"bridge":   m.bridge.ID,
					"error":    err,
				}).Warn("Failed to drop rejected bridge credentials")
			}
			m.creds = BridgeCredentials{}
			m.pairErr = "Stored credentials were rejected by the bridge."
			m.state = setupPairing
			return m, nil
		}
		if msg.err != nil {
			return m.fail(msg.err)
		}

		switch len(msg.areas) {
		case 0:
			return m.fail(fmt.Errorf("no entertainment areas configured on this bridge"))
		case 1:
			m.selectedArea = &msg.areas[0]
			m.state = setupDone
			return m, tea.Quit
		}
		m.areas = msg.areas
		m.state = setupSelectingArea
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.state {
	case setupSelectingBridge:
		switch key.String() {
		case "up", "k":
			m.cursor = max(m.cursor-1, 0)
		case "down", "j":
			m.cursor = min(m.cursor+1, len(m.bridges)-1)
		case "enter":
			return m.chooseBridge(m.bridges[m.cursor])
		}

	case setupPairing:
		if key.String() == "enter" {
			m.state = setupPairingWait
			return m, pairCmd(m.api, *m.bridge)
		}

	case setupSelectingArea:
		switch key.String() {
		case "up", "k":
			m.areaCursor = max(m.areaCursor-1, 0)
		case "down", "j":
			m.areaCursor = min(m.areaCursor+1, len(m.areas)-1)
		case "enter":
			m.selectedArea = &m.areas[m.areaCursor]
			m.state = setupDone
			return m, tea.Quit
		}
	}
	return m, nil
}

var errSetupCancelled = errors.New("hue setup cancelled")

func (m setup) View() string {
	switch m.state {
	case setupScanning:
		return m.waiting("Scanning for Hue bridges...")

	case setupSelectingBridge:
		labels := make([]string, len(m.bridges))
		for i, b := range m.bridges {
			labels[i] = b.String()
		}
		return renderList("Select a Hue Bridge:", labels, m.cursor)

	case setupPairing:
		s := "\n"
		if m.pairErr != "" {
			s += errStyle.Render("  "+m.pairErr) + "\n\n"
		}
		s += titleStyle.Render("  Press the link button on your Hue bridge, then press Enter.") + "\n\n"
		s += helpStyle.Render("  enter pair · q quit") + "\n"
		return s

	case setupPairingWait:
		return m.waiting("Pairing with bridge...")

	case setupFetchingAreas:
		return m.waiting("Fetching entertainment areas...")

	case setupSelectingArea:
		labels := make([]string, len(m.areas))
		for i, a := range m.areas {
			labels[i] = a.String()
		}
		return renderList("Select an Entertainment Area:", labels, m.areaCursor)

	case setupDone:
		if m.err != nil && !errors.Is(m.err, errSetupCancelled) {
			return "\n" + errStyle.Render("  Error: "+m.err.Error()) + "\n\n"
		}
	}
	return ""
}

func (m setup) waiting(title string) string {
	return fmt.Sprintf("\n %s %s\n\n", m.spinner.View(), titleStyle.Render(title))
}

func renderList(title string, labels []string, cursor int) string {
	s := "\n" + titleStyle.Render("  "+title) + "\n\n"
	for i, label := range labels {
		if i == cursor {
			s += selectedStyle.Render("▸ "+label) + "\n"
		} else {
			s += itemStyle.Render(label) + "\n"
		}
	}
	s += "\n" + helpStyle.Render("  ↑/k up · ↓/j down · enter select · q quit") + "\n"
	return s
}
