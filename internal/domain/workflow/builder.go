package workflow

import (
	"fmt"
	"sort"
)

// TableBuilder collects permitted transitions before they are frozen into a Table
type TableBuilder interface {
	// Configure returns a status configuration for the given status
	Configure(from Status) StatusConfiguration

	// Build freezes the configured transitions into an immutable Table
	Build() *Table
}

// StatusConfiguration configures the outgoing transitions of one status
type StatusConfiguration interface {
	// Permit allows a trigger to move the case to the target status
	Permit(trigger Trigger, to Status) StatusConfiguration
}

type statusConfig struct {
	from        Status
	transitions map[Trigger]Status
}

type tableBuilder struct {
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns a status configuration for the given status
func (b *tableBuilder) Configure(from Status) StatusConfiguration {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", from))
	}

	config, exists := b.configurations[from]
	if !exists {
		config = &statusConfig{
			from:        from,
			transitions: make(map[Trigger]Status),
		}
		b.configurations[from] = config
	}

	return config
}

// Permit allows a trigger to move the case to the target status.
// Configuring the same trigger twice on one status is a programming error.
func (c *statusConfig) Permit(trigger Trigger, to Status) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	if existing, dup := c.transitions[trigger]; dup && existing != to {
		panic(fmt.Sprintf("ambiguous transition %s from %s: %s or %s", trigger, c.from, existing, to))
	}

	c.transitions[trigger] = to
	return c
}

// Build freezes the configured transitions into an immutable Table
func (b *tableBuilder) Build() *Table {
	rows := make(map[Status]map[Trigger]Status, len(b.configurations))
	for from, config := range b.configurations {
		row := make(map[Trigger]Status, len(config.transitions))
		for trigger, to := range config.transitions {
			row[trigger] = to
		}
		rows[from] = row
	}
	return &Table{rows: rows}
}

// Table is a read-only lookup of (status, trigger) -> status.
// It is safe for concurrent use.
type Table struct {
	rows map[Status]map[Trigger]Status
}

// Next returns the status reached by firing trigger from the given status
func (t *Table) Next(from Status, trigger Trigger) (Status, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, from)
	}
	if from.IsTerminal() {
		return "", fmt.Errorf("%w: status %s", ErrCaseTerminal, from)
	}

	to, ok := t.rows[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: cannot fire %s from status %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// CanFire returns true if the trigger is permitted from the given status
func (t *Table) CanFire(from Status, trigger Trigger) bool {
	_, ok := t.rows[from][trigger]
	return ok
}

// PermittedTriggers returns the triggers that can be fired from the given status, sorted by name
func (t *Table) PermittedTriggers(from Status) []Trigger {
	row := t.rows[from]
	triggers := make([]Trigger, 0, len(row))
	for trigger := range row {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}

// CanTransition returns true if any trigger moves a case from one status to the other
func (t *Table) CanTransition(from, to Status) bool {
	for _, target := range t.rows[from] {
		if target == to {
			return true
		}
	}
	return false
}
