package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/portsidehq/portside/internal/compose"
)

const watchInterval = 2 * time.Second

type servicesMsg struct {
	services []compose.ServiceRecord
	err      error
}

// servicesModel polls the daemon and redraws the service table.
type servicesModel struct {
	client    *Client
	attemptID string

	services []compose.ServiceRecord
	err      error
	fetched  bool
}

func newServicesModel(c *Client, attemptID string) servicesModel {
	return servicesModel{client: c, attemptID: attemptID}
}

func (m servicesModel) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), watchInterval)
	defer cancel()
	services, err := m.client.Services(ctx, m.attemptID)
	return servicesMsg{services: services, err: err}
}

func (m servicesModel) Init() tea.Cmd {
	return m.fetch
}

func (m servicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case servicesMsg:
		m.fetched = true
		m.err = msg.err
		if msg.err == nil {
			m.services = msg.services
		}
		return m, tea.Tick(watchInterval, func(time.Time) tea.Msg {
			return m.fetch()
		})
	}
	return m, nil
}

func (m servicesModel) View() string {
	if !m.fetched {
		return noticeStyle.Render("loading services...") + "\n"
	}
	out := renderServicesTable(m.services)
	if m.err != nil {
		out += stderrStyle.Render(fmt.Sprintf("refresh failed: %v", m.err)) + "\n"
	}
	out += noticeStyle.Render("q to quit") + "\n"
	return out
}
