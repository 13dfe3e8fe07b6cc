package log

import "context"

// Fields receives the key value pairs of a log entry
type Fields interface {
	Add(key string, value interface{})
}

// Loggable contributes fields to a log entry. Configuration sections
// and engine errors implement it so that they can be passed directly
// to a Logger
type Loggable interface {
	Log(fields Fields)
}

// MapFields are ad hoc fields, usually a call_type and the ids of the
// request or session involved
type MapFields map[string]interface{}

// Log implementation of Loggable for MapFields
func (m MapFields) Log(fields Fields) {
	for key, value := range m {
		fields.Add(key, value)
	}
}

// Logger writes the entries of the gateway. The trace id and session
// id found in ctx are added to every entry
type Logger interface {
	ForClass(pkg string, class string) Logger
	Debug(ctx context.Context, msg string, loggable ...Loggable)
	Info(ctx context.Context, msg string, loggable ...Loggable)
	Warn(ctx context.Context, msg string, loggable ...Loggable)
	Error(ctx context.Context, msg string, loggable ...Loggable)
	Fatal(ctx context.Context, msg string, loggable ...Loggable)
}
