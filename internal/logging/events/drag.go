package events

import "github.com/Majr25/SpriteEdit/internal/logging"

type DragTracer struct{}

var Drag = DragTracer{}

func (DragTracer) Begin(elem string, auto bool) {
	logging.Trace("drag.begin", map[string]interface{}{"elem": elem, "auto": auto})
}

func (DragTracer) Swap(elem string, index int) {
	logging.Trace("drag.swap", map[string]interface{}{"elem": elem, "index": index})
}

func (DragTracer) Drop(elem, parent string, index int, deletedBox bool) {
	logging.Trace("drag.drop", map[string]interface{}{
		"elem":       elem,
		"parent":     parent,
		"index":      index,
		"deletedBox": deletedBox,
	})
}

func (DragTracer) Cancel(elem string) {
	logging.Trace("drag.cancel", map[string]interface{}{"elem": elem})
}
