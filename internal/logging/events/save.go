package events

import "github.com/Majr25/SpriteEdit/internal/logging"

type SaveTracer struct{}

type WikiTracer struct{}

var (
	Save = SaveTracer{}
	Wiki = WikiTracer{}
)

func (SaveTracer) Prepare(namesModified, sheetModified bool) {
	logging.Trace("save.prepare", map[string]interface{}{
		"names": namesModified,
		"sheet": sheetModified,
	})
}

func (SaveTracer) Stash(key string, attempt int) {
	logging.Trace("save.stash", map[string]interface{}{"key": key, "attempt": attempt})
}

func (SaveTracer) Edit(timestamp string) {
	logging.Trace("save.edit", map[string]interface{}{"timestamp": timestamp})
}

func (SaveTracer) Upload(filename string) {
	logging.Trace("save.upload", map[string]interface{}{"file": filename})
}

func (SaveTracer) Conflict(page string) {
	logging.Trace("save.conflict", map[string]interface{}{"page": page})
}

func (SaveTracer) Done(timestamp string) {
	logging.Trace("save.done", map[string]interface{}{"timestamp": timestamp})
}

func (SaveTracer) Reload(names int) {
	logging.Trace("save.reload", map[string]interface{}{"names": names})
}

func (WikiTracer) Request(action string, attempt int) {
	logging.Trace("wiki.request", map[string]interface{}{"action": action, "attempt": attempt})
}

func (WikiTracer) Retry(action string, err error) {
	logging.Trace("wiki.retry", map[string]interface{}{"action": action, "error": err.Error()})
}

func (WikiTracer) Revision(page string, timestamp string) {
	logging.Trace("wiki.revision", map[string]interface{}{"page": page, "timestamp": timestamp})
}
