// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service"
)

const refreshInterval = time.Second * 2

// StatusProvider gives access to the current state of the module.
type StatusProvider interface {
	GetStatus() service.Status
}

// Root is the model of the read-only status console served over SSH.
type Root struct {
	provider StatusProvider

	term    string
	width   int
	height  int
	loadAvg string
	status  service.Status

	ready    bool
	viewPort viewport.Model
}

var _ tea.Model = Root{}

// NewRoot creates the model for a single console session.
func NewRoot(provider StatusProvider, term string, width, height int) Root {
	return Root{
		provider: provider,
		term:     term,
		width:    width,
		height:   height,
		status:   provider.GetStatus(),
	}
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return doRefresh(r.provider)
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case refreshMsg:
		r.loadAvg = msg.loadAvg
		r.status = msg.status
		if r.ready {
			r.viewPort.SetContent(r.bodyView())
		}
		return r, doRefresh(r.provider)
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
		chromeHeight := lipgloss.Height(r.headerView()) + lipgloss.Height(r.footerView())
		if !r.ready {
			r.viewPort = viewport.New(msg.Width, msg.Height-chromeHeight)
			r.viewPort.SetContent(r.bodyView())
			r.ready = true
		} else {
			r.viewPort.Width = msg.Width
			r.viewPort.Height = msg.Height - chromeHeight
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return r, tea.Quit
		}
	}

	// Handle keyboard and mouse events in the viewport
	if r.ready {
		var cmd tea.Cmd
		r.viewPort, cmd = r.viewPort.Update(msg)
		cmds = append(cmds, cmd)
	}

	return r, tea.Batch(cmds...)
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	if !r.ready {
		return r.headerView() + "\n" + r.footerView()
	}
	return r.headerView() + r.viewPort.View() + "\n" + r.footerView()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func (r Root) headerView() string {
	uptime := humanize.RelTime(r.status.StartedAt, time.Now(), "", "")
	return lipgloss.JoinHorizontal(lipgloss.Left,
		headerStyle.Render(fmt.Sprintf("Bench worker '%s'", r.status.ModuleID)),
		dimStyle.Render(fmt.Sprintf("  version %s  up %s  load %s",
			r.status.ProgramVersion, strings.TrimSpace(uptime), strings.TrimSpace(r.loadAvg))),
	) + "\n"
}

func (r Root) footerView() string {
	return dimStyle.Render("q - Disconnect")
}

func (r Root) bodyView() string {
	return FormatStatus(r.status)
}

// FormatStatus renders the given status as the body of the console.
func FormatStatus(status service.Status) string {
	var b strings.Builder

	motors := make(map[api.ObjectAddress]api.Motor, len(status.Motors))
	for _, m := range status.Motors {
		motors[m.Address] = m
	}
	outputs := make(map[api.ObjectAddress]api.Output, len(status.Outputs))
	for _, o := range status.Outputs {
		outputs[o.Address] = o
	}
	sensors := make(map[api.ObjectAddress]api.Sensor, len(status.Sensors))
	for _, s := range status.Sensors {
		sensors[s.Address] = s
	}

	b.WriteString("\nDevices\n")
	if len(status.ConfiguredDevices)+len(status.UnconfiguredDevices) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, id := range status.ConfiguredDevices {
		fmt.Fprintf(&b, "  %-20s configured\n", id)
	}
	for _, id := range status.UnconfiguredDevices {
		fmt.Fprintf(&b, "  %-20s NOT CONFIGURED\n", id)
	}

	b.WriteString("\nObjects\n")
	if len(status.ConfiguredObjects)+len(status.UnconfiguredObjects) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, addrStr := range status.ConfiguredObjects {
		addr := api.ObjectAddress(addrStr)
		fmt.Fprintf(&b, "  %-20s %s\n", addrStr, objectSummary(addr, motors, outputs, sensors))
	}
	for _, addrStr := range status.UnconfiguredObjects {
		fmt.Fprintf(&b, "  %-20s NOT CONFIGURED\n", addrStr)
	}

	return b.String()
}

// objectSummary renders the last known actual state of the object with
// the given address.
func objectSummary(addr api.ObjectAddress,
	motors map[api.ObjectAddress]api.Motor,
	outputs map[api.ObjectAddress]api.Output,
	sensors map[api.ObjectAddress]api.Sensor) string {

	if m, found := motors[addr]; found {
		actual := m.GetActual()
		if state := actual.GetState(); state != "" {
			return fmt.Sprintf("motor  duty %3d  %s", actual.GetDuty(), state)
		}
		return fmt.Sprintf("motor  duty %3d", actual.GetDuty())
	}
	if o, found := outputs[addr]; found {
		if o.GetActual().GetValue() != 0 {
			return "output on"
		}
		return "output off"
	}
	if s, found := sensors[addr]; found {
		if s.GetActual().GetValue() != 0 {
			return "sensor asserted"
		}
		return "sensor clear"
	}
	return "-"
}

type refreshMsg struct {
	loadAvg string
	status  service.Status
}

func doRefresh(provider StatusProvider) tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		msg := refreshMsg{
			status: provider.GetStatus(),
		}
		if content, err := os.ReadFile("/proc/loadavg"); err != nil {
			msg.loadAvg = err.Error()
		} else {
			msg.loadAvg = string(content)
		}
		return msg
	})
}
