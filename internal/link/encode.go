package link

import (
	"encoding/json"
	"sync/atomic"

	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/msgs"
)

var logf = monitoring.Tagged("Link")

// Sender writes one line to the base board.
type Sender interface {
	SendCommand(line string) error
}

type outbound struct {
	Kind    string   `json:"t"`
	Linear  *float64 `json:"linear,omitempty"`
	Angular *float64 `json:"angular,omitempty"`
	Angle   *float64 `json:"angle,omitempty"`
	Name    string   `json:"name,omitempty"`
	Msg     string   `json:"msg,omitempty"`
}

// Encoder turns controller outputs into outbound lines. A failed write is
// logged and counted; the controller is never told.
type Encoder struct {
	out    Sender
	failed atomic.Uint64
}

// NewEncoder writes to out.
func NewEncoder(out Sender) *Encoder {
	return &Encoder{out: out}
}

func (e *Encoder) Drive(cmd msgs.DriveCommand) {
	e.send(outbound{Kind: "drive", Linear: &cmd.Linear, Angular: &cmd.Angular})
}

func (e *Encoder) FingerAngle(rad float64) { e.send(outbound{Kind: "finger", Angle: &rad}) }
func (e *Encoder) WristAngle(rad float64)  { e.send(outbound{Kind: "wrist", Angle: &rad}) }
func (e *Encoder) State(name string)       { e.send(outbound{Kind: "state", Name: name}) }
func (e *Encoder) Info(msg string)         { e.send(outbound{Kind: "info", Msg: msg}) }
func (e *Encoder) Status(msg string)       { e.send(outbound{Kind: "status", Msg: msg}) }

// Failed is the number of lines that could not be written.
func (e *Encoder) Failed() uint64 { return e.failed.Load() }

func (e *Encoder) send(m outbound) {
	b, err := json.Marshal(m)
	if err != nil {
		logf("encode %s: %v", m.Kind, err)
		return
	}
	if err := e.out.SendCommand(string(b)); err != nil {
		if n := e.failed.Add(1); n == 1 || n%100 == 0 {
			logf("write %s failed (%d so far): %v", m.Kind, n, err)
		}
	}
}
