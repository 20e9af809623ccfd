// Package tui is the terminal front end of the pokedex browser: a bubbletea
// program rendering the coordinator's filtered list, a search bar, a loading
// footer and a dismissible error box.
package tui

import (
	"github.com/Sternrassler/pokeapi-client/pkg/coordinator"
	tea "github.com/charmbracelet/bubbletea"
)

// StateMsg carries a coordinator snapshot into the program.
type StateMsg struct {
	State coordinator.State
}

// Subscriber is the part of the coordinator Forward needs.
type Subscriber interface {
	Subscribe(fn func(coordinator.State)) func()
}

// Forward sends every coordinator notification to p as a StateMsg.
// The returned func stops forwarding.
func Forward(c Subscriber, p *tea.Program) func() {
	return c.Subscribe(func(s coordinator.State) {
		p.Send(StateMsg{State: s})
	})
}
