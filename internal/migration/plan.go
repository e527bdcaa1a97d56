package migration

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrDuplicateVersion = errors.New("duplicate migration version")
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
	ErrMissingMigration = errors.New("applied migration not resolved locally")
	ErrOutOfOrder       = errors.New("pending migration is older than current schema version")
	ErrFailedMigration  = errors.New("failed migration recorded in schema history")
)

// State describes migration state in Info listing
type State string

const (
	StatePending State = "Pending"
	StateSuccess State = "Success"
	StateFailed  State = "Failed"
	StateMissing State = "Missing"
	StateIgnored State = "Ignored"
)

// Info describes resolved and/or applied migration
type Info struct {
	Version       uint
	Description   string
	Script        string
	State         State
	InstalledOn   *time.Time
	ExecutionTime time.Duration
}

// plan matches resolved scripts against schema history
type plan struct {
	resolved   []Migration
	applied    []AppliedMigration
	byVersion  map[uint]AppliedMigration
	maxApplied uint
	hasApplied bool
	opts       Options
}

func newPlan(resolved []Migration, applied []AppliedMigration, opts Options) *plan {
	p := &plan{
		resolved:  resolved,
		applied:   applied,
		byVersion: make(map[uint]AppliedMigration, len(applied)),
		opts:      opts,
	}

	for _, a := range applied {
		p.byVersion[a.Version] = a
		if !p.hasApplied || a.Version > p.maxApplied {
			p.maxApplied = a.Version
			p.hasApplied = true
		}
	}
	return p
}

func (p *plan) outOfOrder(m Migration) bool {
	return p.hasApplied && m.Version < p.maxApplied
}

func (p *plan) validate() error {
	resolved := make(map[uint]Migration, len(p.resolved))
	for _, m := range p.resolved {
		resolved[m.Version] = m
	}

	violations := make([]error, 0)
	for _, a := range p.applied {
		if !a.Success {
			violations = append(violations, fmt.Errorf("%w: version %d (%s)", ErrFailedMigration, a.Version, a.Script))
			continue
		}

		m, ok := resolved[a.Version]
		if !ok {
			if !p.opts.IgnoreMissing {
				violations = append(violations, fmt.Errorf("%w: version %d (%s)", ErrMissingMigration, a.Version, a.Script))
			}
			continue
		}

		if m.Checksum != a.Checksum {
			violations = append(violations, fmt.Errorf("%w: version %d (%s) applied with checksum %d, resolved locally %d",
				ErrChecksumMismatch, a.Version, m.Script, a.Checksum, m.Checksum))
		}
	}

	if !p.opts.OutOfOrder {
		for _, m := range p.unapplied() {
			if p.outOfOrder(m) {
				violations = append(violations, fmt.Errorf("%w: version %d (%s) is lower than applied version %d",
					ErrOutOfOrder, m.Version, m.Script, p.maxApplied))
			}
		}
	}

	return errors.Join(violations...)
}

func (p *plan) unapplied() []Migration {
	unapplied := make([]Migration, 0)
	for _, m := range p.resolved {
		if _, ok := p.byVersion[m.Version]; !ok {
			unapplied = append(unapplied, m)
		}
	}
	return unapplied
}

// pending returns scripts to be applied in ascending version order
func (p *plan) pending() []Migration {
	pending := make([]Migration, 0)
	for _, m := range p.unapplied() {
		if p.outOfOrder(m) && !p.opts.OutOfOrder {
			continue
		}
		pending = append(pending, m)
	}
	return pending
}

func (p *plan) nextRank() int {
	rank := 0
	for _, a := range p.applied {
		if a.InstalledRank > rank {
			rank = a.InstalledRank
		}
	}
	return rank + 1
}

func (p *plan) currentVersion() uint {
	var current uint
	for _, a := range p.applied {
		if a.Success && a.Version > current {
			current = a.Version
		}
	}
	return current
}

func (p *plan) info() []Info {
	infos := make([]Info, 0, len(p.resolved)+len(p.applied))
	resolved := make(map[uint]struct{}, len(p.resolved))

	for _, m := range p.resolved {
		resolved[m.Version] = struct{}{}

		a, ok := p.byVersion[m.Version]
		if !ok {
			state := StatePending
			if p.outOfOrder(m) && !p.opts.OutOfOrder {
				state = StateIgnored
			}
			infos = append(infos, Info{Version: m.Version, Description: m.Description, Script: m.Script, State: state})
			continue
		}
		infos = append(infos, appliedInfo(a, StateSuccess))
	}

	for _, a := range p.applied {
		if _, ok := resolved[a.Version]; !ok {
			infos = append(infos, appliedInfo(a, StateMissing))
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Version < infos[j].Version
	})
	return infos
}

func appliedInfo(a AppliedMigration, successState State) Info {
	state := successState
	if !a.Success {
		state = StateFailed
	}

	installedOn := a.InstalledOn
	return Info{
		Version:       a.Version,
		Description:   a.Description,
		Script:        a.Script,
		State:         state,
		InstalledOn:   &installedOn,
		ExecutionTime: time.Duration(a.ExecutionTime) * time.Millisecond,
	}
}
