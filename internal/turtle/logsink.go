package turtle

import "log"

// LogSink renders every turtle call as a log line. It is the default
// sink for headless `memyself run`, grounded on the teacher's habit of
// using the stdlib logger for ambient diagnostics rather than a
// structured logging library.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Center()          { s.logger.Printf("turtle: center") }
func (s *LogSink) Forward(u float64)  { s.logger.Printf("turtle: forward %g", u) }
func (s *LogSink) Backward(u float64) { s.logger.Printf("turtle: backward %g", u) }
func (s *LogSink) Left(d float64)     { s.logger.Printf("turtle: left %g", d) }
func (s *LogSink) Right(d float64)    { s.logger.Printf("turtle: right %g", d) }
func (s *LogSink) Size(u float64)     { s.logger.Printf("turtle: size %g", u) }
func (s *LogSink) Clear()             { s.logger.Printf("turtle: clear") }
func (s *LogSink) PenUp()             { s.logger.Printf("turtle: pen up") }
func (s *LogSink) PenDown()           { s.logger.Printf("turtle: pen down") }
func (s *LogSink) Color(r, g, b float64) {
	s.logger.Printf("turtle: color r=%g g=%g b=%g", r, g, b)
}
func (s *LogSink) Position(x, y float64) { s.logger.Printf("turtle: position x=%g y=%g", x, y) }
func (s *LogSink) BackgroundColor(r, g, b float64) {
	s.logger.Printf("turtle: background color r=%g g=%g b=%g", r, g, b)
}
func (s *LogSink) FillColor(r, g, b float64) {
	s.logger.Printf("turtle: fill color r=%g g=%g b=%g", r, g, b)
}
func (s *LogSink) StartFill() { s.logger.Printf("turtle: start fill") }
func (s *LogSink) EndFill()   { s.logger.Printf("turtle: end fill") }
