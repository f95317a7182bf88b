package events

import "github.com/Majr25/SpriteEdit/internal/logging"

type SessionTracer struct{}

var Session = SessionTracer{}

func (SessionTracer) Apply(action, elem string, queued, replay bool) {
	logging.Trace("session.apply", map[string]interface{}{
		"action": action,
		"elem":   elem,
		"queued": queued,
		"replay": replay,
	})
}

func (SessionTracer) Commit(records int) {
	logging.Trace("session.commit", map[string]interface{}{"records": records})
}

func (SessionTracer) Discard(records int) {
	logging.Trace("session.discard", map[string]interface{}{"records": records})
}

func (SessionTracer) Undo(records int) {
	logging.Trace("session.undo", map[string]interface{}{"records": records})
}

func (SessionTracer) Redo(records int) {
	logging.Trace("session.redo", map[string]interface{}{"records": records})
}

func (SessionTracer) Release(images int) {
	logging.Trace("session.release", map[string]interface{}{"images": images})
}

func (SessionTracer) Allocate(positions []int, lastPos int) {
	logging.Trace("session.allocate", map[string]interface{}{"positions": positions, "lastPos": lastPos})
}
