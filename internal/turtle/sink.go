// Package turtle is the drawing-surface boundary the virtual machine
// calls into for every turtle built-in. spec.md treats the actual
// surface as an external collaborator; this package only specifies the
// side-effect contract (Sink) and two concrete sinks: a logging sink
// for headless `run`, and a websocket broadcast sink for `run --watch`.
package turtle

// Sink receives one call per turtle built-in dispatched by the VM, in
// quadruple order. Colour arguments always arrive already reordered to
// (r, g, b) — the compiler/VM side keeps the stored (r, b, g) layout
// spec.md's Design Notes describe; Sink implementations never see the
// swap.
type Sink interface {
	Center()
	Forward(units float64)
	Backward(units float64)
	Left(degrees float64)
	Right(degrees float64)
	Size(units float64)
	Clear()
	PenUp()
	PenDown()
	Color(r, g, b float64)
	Position(x, y float64)
	BackgroundColor(r, g, b float64)
	FillColor(r, g, b float64)
	StartFill()
	EndFill()
}

// MultiSink fans every call out to each of its members, in order. Used
// to drive the log sink and the websocket sink from the same VM run.
type MultiSink []Sink

func (m MultiSink) Center()                       { m.each(func(s Sink) { s.Center() }) }
func (m MultiSink) Forward(u float64)              { m.each(func(s Sink) { s.Forward(u) }) }
func (m MultiSink) Backward(u float64)             { m.each(func(s Sink) { s.Backward(u) }) }
func (m MultiSink) Left(d float64)                 { m.each(func(s Sink) { s.Left(d) }) }
func (m MultiSink) Right(d float64)                { m.each(func(s Sink) { s.Right(d) }) }
func (m MultiSink) Size(u float64)                 { m.each(func(s Sink) { s.Size(u) }) }
func (m MultiSink) Clear()                         { m.each(func(s Sink) { s.Clear() }) }
func (m MultiSink) PenUp()                         { m.each(func(s Sink) { s.PenUp() }) }
func (m MultiSink) PenDown()                       { m.each(func(s Sink) { s.PenDown() }) }
func (m MultiSink) Color(r, g, b float64)          { m.each(func(s Sink) { s.Color(r, g, b) }) }
func (m MultiSink) Position(x, y float64)          { m.each(func(s Sink) { s.Position(x, y) }) }
func (m MultiSink) BackgroundColor(r, g, b float64) {
	m.each(func(s Sink) { s.BackgroundColor(r, g, b) })
}
func (m MultiSink) FillColor(r, g, b float64) { m.each(func(s Sink) { s.FillColor(r, g, b) }) }
func (m MultiSink) StartFill()                { m.each(func(s Sink) { s.StartFill() }) }
func (m MultiSink) EndFill()                  { m.each(func(s Sink) { s.EndFill() }) }

func (m MultiSink) each(f func(Sink)) {
	for _, s := range m {
		f(s)
	}
}
