package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/sync/errgroup"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/rover/internal/log"
	"github.com/gwillem/rover/pkg/mission"
	"github.com/gwillem/rover/pkg/odometry"
	"github.com/gwillem/rover/pkg/robot"
)

type DashboardCommand struct {
	Hz        int     `long:"hz" default:"10" description:"Refresh rate"`
	Speed     int     `long:"speed" default:"50" description:"Manual drive speed (0-100)"`
	Distance  float64 `long:"distance" default:"1.0" description:"Mission distance in meters"`
	Direction float64 `long:"direction" default:"0" description:"Mission heading in degrees"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	tableHeight  = 6 // status table
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
	speedStep    = 10
)

// Series plotted on the heading chart.
const (
	seriesHeading = "heading"
	seriesTarget  = "target"
)

var seriesColors = map[string]string{
	seriesHeading: "51",  // cyan
	seriesTarget:  "208", // orange
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

type dashboardModel struct {
	r      *rover
	hz     int
	speed  int
	target mission.Target

	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	quitting bool

	snap   odometry.Snapshot
	status mission.Status
}

type tickMsg time.Time
type logMsg string

func tick(hz int) tea.Cmd {
	return tea.Tick(time.Second/time.Duration(hz), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForLog(ctrl *mission.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 14
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - tableHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newDashboardModel(r *rover, hz, speed int, target mission.Target) dashboardModel {
	chart := streamlinechart.New(80, 14,
		streamlinechart.WithYRange(-180, 180),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	if hz <= 0 {
		hz = 10
	}
	return dashboardModel{
		r:      r,
		hz:     hz,
		speed:  robot.ClampSpeed(speed),
		target: target,
		chart:  &chart,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(tick(m.hz), waitForLog(m.r.mission))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tickMsg:
		m.snap = m.r.store.Snapshot()
		m.status = m.r.mission.Status()
		m.chart.PushDataSet(seriesHeading, m.snap.Pose.Heading)
		if m.status.Active {
			m.chart.PushDataSet(seriesTarget, m.status.Target.HeadingDeg)
		} else {
			m.chart.PushDataSet(seriesTarget, m.target.HeadingDeg)
		}
		m.chart.DrawAll()
		return m, tick(m.hz)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.r.mission)
	}

	return m, nil
}

var driveKeys = map[string]robot.Command{
	"up":    robot.CommandForward,
	"w":     robot.CommandForward,
	"down":  robot.CommandBackward,
	"s":     robot.CommandBackward,
	"left":  robot.CommandLeft,
	"a":     robot.CommandLeft,
	"right": robot.CommandRight,
	"d":     robot.CommandRight,
}

func (m dashboardModel) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case " ":
		if err := m.r.mission.StopMission(); err != nil {
			if err := m.r.drive.Stop(); err != nil {
				m.addLog(fmt.Sprintf("stop: %v", err))
			}
		}

	case "+", "=":
		m.speed = robot.ClampSpeed(m.speed + speedStep)
	case "-":
		m.speed = robot.ClampSpeed(m.speed - speedStep)

	case "g":
		if err := m.r.mission.SetTargets(m.target.DistanceMeters, m.target.HeadingDeg); err != nil {
			m.addLog(err.Error())
			break
		}
		if err := m.r.mission.StartMission(); err != nil {
			m.addLog(err.Error())
		}

	case "x":
		if err := m.r.mission.StopMission(); err != nil {
			m.addLog(err.Error())
		}

	default:
		cmd, ok := driveKeys[key]
		if !ok {
			break
		}
		if m.r.mission.IsActive() {
			m.addLog("Automation active, manual command ignored")
			break
		}
		if err := robot.Apply(m.r.drive, cmd, m.speed); err != nil {
			m.addLog(fmt.Sprintf("%s: %v", cmd, err))
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Dashboard stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Rover Dashboard"))
	sb.WriteString(fmt.Sprintf(" - manual speed %d", m.speed))
	if m.status.Active {
		sb.WriteString("  " + activeStyle.Render(m.status.State.String()))
	} else {
		sb.WriteString("  " + statusStyle.Render(m.status.State.String()))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderTable())
	sb.WriteString("\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("11"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("arrows/wasd drive, space stop, +/- speed, g start mission, x stop mission, q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderTable() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	p, s := m.snap.Pose, m.snap.Sample
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("X (m)", "Y (m)", "Heading", "Yaw", "RPM L/R", "Target", "Traveled", "Samples").
		Row(
			fmt.Sprintf("%.2f", p.X),
			fmt.Sprintf("%.2f", p.Y),
			fmt.Sprintf("%.1f°", p.Heading),
			fmt.Sprintf("%.1f°", s.YawDeg),
			fmt.Sprintf("%.0f/%.0f", s.RPMLeft, s.RPMRight),
			fmt.Sprintf("%.2fm @ %.0f°", m.target.DistanceMeters, m.target.HeadingDeg),
			fmt.Sprintf("%.2f", m.status.Traveled),
			fmt.Sprintf("%d", m.snap.Samples),
		).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}

func renderLegend() string {
	var items []string
	for _, name := range []string{seriesHeading, seriesTarget} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (c *DashboardCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Keep log output off the terminal the dashboard draws on.
	if cfg.Log.File == "" {
		cfg.Log.File = "rover.log"
	}
	initLog(cfg, true)
	defer log.Sync()

	r, err := newRover(cfg, hardware{})
	if err != nil {
		return fmt.Errorf("start rover: %w", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	r.start(ctx, g)

	target := mission.Target{DistanceMeters: c.Distance, HeadingDeg: c.Direction}
	p := tea.NewProgram(newDashboardModel(r, c.Hz, c.Speed, target), tea.WithAltScreen())
	_, runErr := p.Run()

	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}
