package logx

// Logger is the logging surface used by the module pipeline.
// *log.Logger of github.com/ije/gox/log satisfies it.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(format string, v ...any) {}
func (discard) Infof(format string, v ...any)  {}
func (discard) Warnf(format string, v ...any)  {}
func (discard) Errorf(format string, v ...any) {}
