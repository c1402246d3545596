package services

import "assessment-backend/internal/ws"

// Phase is the observable lifecycle state of the active instance.
type Phase interface {
	Mode() string
	// Actual is the participant on stage, zero when nobody is.
	Actual() uint
}

// Lobby: a participant is on stage but grading has not been signaled yet.
type Lobby struct{ Current uint }

// Playing: graders may submit answers about Current.
type Playing struct{ Current uint }

// Ended: Completed distinguishes a finished run from one closed early.
type Ended struct{ Completed bool }

func (Lobby) Mode() string   { return ws.ModeLobby }
func (Playing) Mode() string { return ws.ModePlaying }
func (Ended) Mode() string   { return ws.ModeEnd }

func (p Lobby) Actual() uint   { return p.Current }
func (p Playing) Actual() uint { return p.Current }
func (Ended) Actual() uint     { return 0 }

// withCurrent moves the on-stage pointer without leaving the sub-phase.
func withCurrent(p Phase, current uint) Phase {
	if _, ok := p.(Playing); ok {
		return Playing{Current: current}
	}
	return Lobby{Current: current}
}
