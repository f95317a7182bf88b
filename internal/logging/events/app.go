package events

import "github.com/Majr25/SpriteEdit/internal/logging"

type AppTracer struct{}

var App = AppTracer{}

func (AppTracer) Start(payload map[string]interface{}) {
	logging.Trace("app.start", payload)
}

func (AppTracer) Ready(sections, names int, lastPos int) {
	logging.Trace("app.ready", map[string]interface{}{
		"sections": sections,
		"names":    names,
		"lastPos":  lastPos,
	})
}

func (AppTracer) Abort(stage string) {
	logging.Trace("app.abort", map[string]interface{}{"stage": stage})
}

func (AppTracer) Exit(modified bool) {
	logging.Trace("app.exit", map[string]interface{}{"modified": modified})
}
