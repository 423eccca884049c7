package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/config"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/core"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/registry"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/status"
)

type snapshotMsg registry.Snapshot

type channelDownMsg struct {
	err error
}

type tickMsg time.Time

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BE9FD"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	lowBattery  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

type model struct {
	svc *core.Service
	cfg *config.Config

	table      table.Model
	snapshot   registry.Snapshot
	showHidden bool
	downErr    error
}

func newModel(svc *core.Service, cfg *config.Config) model {
	columns := []table.Column{
		{Title: "Device", Width: 14},
		{Title: "Location", Width: 14},
		{Title: "House", Width: 10},
		{Title: "In House", Width: 10},
		{Title: "Battery", Width: 8},
		{Title: "Version", Width: 16},
		{Title: "Updated", Width: 10},
		{Title: "Status", Width: 44},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	return model{svc: svc, cfg: cfg, table: t, snapshot: svc.Snapshot()}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) tick() tea.Cmd {
	// Repaint cadence for relative-time display; the data itself arrives
	// by push.
	return tea.Tick(m.cfg.StatusRefresh.Std(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "h":
			m.showHidden = !m.showHidden
			m.table.SetRows(m.rows())
			return m, nil
		}

	case snapshotMsg:
		m.snapshot = registry.Snapshot(msg)
		m.table.SetRows(m.rows())
		return m, nil

	case channelDownMsg:
		m.downErr = msg.err
		return m, nil

	case tickMsg:
		m.table.SetRows(m.rows())
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m model) rows() []table.Row {
	now := time.Now()

	ids := make([]string, 0, len(m.snapshot))
	for id, rec := range m.snapshot {
		if rec.Hidden && !m.showHidden {
			continue
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	rows := make([]table.Row, 0, len(ids))

	for _, id := range ids {
		rec := m.snapshot[id]
		info := m.svc.DeriveStatus(rec, now)

		statusText := info.Text
		if info.Stale {
			statusText = staleStyle.Render(statusText)
		}

		battery := string(rec.Status.Battery)
		if rec.Status.Battery == models.BatteryLow {
			battery = lowBattery.Render(battery)
		}

		updated := ""
		if !rec.LastUpdated.IsZero() {
			updated = status.Ago(rec.LastUpdated, now)
		}

		rows = append(rows, table.Row{
			id,
			rec.Location,
			rec.House,
			rec.InHouseLoc,
			battery,
			status.VersionLabel(rec.Version),
			updated,
			statusText,
		})
	}

	return rows
}

func (m model) View() string {
	header := headerStyle.Render("RedMite devices")

	footer := footerStyle.Render(
		fmt.Sprintf("%d devices · channel %s · q quit · h toggle hidden",
			len(m.snapshot), m.svc.ChannelState()))

	if m.downErr != nil {
		footer = staleStyle.Render("Live updates stopped: "+m.downErr.Error()) + "\n" + footer
	}

	return header + "\n" + m.table.View() + "\n" + footer + "\n"
}
