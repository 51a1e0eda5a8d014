package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/lerobot-record/pkg/robot"
	"github.com/gwillem/lerobot-record/pkg/session"
	"github.com/gwillem/lerobot-record/pkg/trajectory"
)

type RecordCommand struct {
	Hz  int    `long:"hz" default:"50" description:"Control loop frequency"`
	Dir string `long:"dir" description:"Records directory (default from config)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // status bar + log box
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors - distinct colors for each joint
var jointColors = map[robot.JointName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
	robot.Gripper:      "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	idleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	recordStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	replayStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

type recordModel struct {
	ctrl     *session.Controller
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool
}

func (m *recordModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg session.State
type logMsg string

func waitForState(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *recordModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 18 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *recordModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialRecordModel(ctrl *session.Controller) recordModel {
	// Raw STS servo positions span a 12-bit range.
	chart := streamlinechart.New(80, 18,
		streamlinechart.WithYRange(0, 4096),
	)

	// Set up data set styles for each joint
	for _, name := range robot.AllJoints() {
		color := jointColors[name]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return recordModel{
		ctrl:  ctrl,
		chart: &chart,
	}
}

func (m recordModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m recordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.ctrl.StartRecord()
		case "s":
			m.ctrl.StopRecord()
		case "p":
			m.ctrl.Replay()
		case "x":
			m.ctrl.StopReplay()
		case "q", "ctrl+c":
			m.quitting = true
			m.ctrl.Close()
			return m, tea.Quit
		}
		return m, nil

	case stateMsg:
		state := session.State(msg)
		if state.Frame != nil {
			for i, name := range robot.AllJoints() {
				m.chart.PushDataSet(string(name), float64(state.Frame[i]))
			}
			m.chart.DrawAll()
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m recordModel) statusLine() string {
	status := m.ctrl.Status()
	switch status {
	case "RECORDING":
		return recordStyle.Render("● " + status)
	case "REPLAY":
		return replayStyle.Render("▶ " + status)
	}
	return idleStyle.Render(status)
}

func (m recordModel) View() string {
	if m.quitting {
		return "Session closed.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("LeRobot Record"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	sb.WriteString("  ")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Key hints
	sb.WriteString(statusStyle.Render("r start record  s stop record  p replay  x cancel replay  q quit"))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Waiting for events")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllJoints() {
		color := jointColors[name]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		item := colorStyle.Render("━━") + " " + string(name)
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

// newSessionLogger routes structured logs to a file in the records dir so
// they never land on the terminal underneath the TUI.
func newSessionLogger(dir string) *logrus.Logger {
	logger := logrus.New()
	f, err := os.OpenFile(filepath.Join(dir, "session.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.SetOutput(os.Stderr)
		return logger
	}
	logger.SetOutput(f)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

func (c *RecordCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'lerobot-record setup' first.")
		os.Exit(1)
	}
	if cfg.Leader.Port == "" || cfg.Follower.Port == "" {
		fmt.Fprintln(os.Stderr, "Arms not configured. Run 'lerobot-record setup' first.")
		os.Exit(1)
	}
	if c.Dir != "" {
		cfg.RecordDir = c.Dir
	}
	if c.Hz > 0 {
		cfg.Hz = c.Hz
	}

	store, err := trajectory.NewStore(cfg.RecordDir)
	if err != nil {
		log.Fatalf("Failed to open records dir: %v", err)
	}

	// Both connections are required; an unavailable port is fatal.
	bus, err := robot.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect arms: %v", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.PrepareTeleop(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	defer bus.Release(context.Background())

	ctrl := session.NewController(session.Config{
		Bus:    bus,
		Store:  store,
		Hz:     cfg.Hz,
		Logger: newSessionLogger(cfg.RecordDir),
	})

	go func() {
		if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Control loop error: %v", err)
		}
	}()

	p := tea.NewProgram(initialRecordModel(ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
