package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/sjson"
)

const (
	csrfToken  = `tok+\`
	loginToken = `login+\`
)

// WikiEdit is one accepted or rejected page edit.
type WikiEdit struct {
	Text     string
	Summary  string
	Base     string
	Tags     string
	Conflict bool
}

// Wiki is an in-memory MediaWiki api.php serving one IDs page and one
// spritesheet file. Edits, uploads and purges are recorded for assertions.
type Wiki struct {
	Server *httptest.Server

	mu        sync.Mutex
	pageID    int
	title     string
	text      string
	timestamp time.Time
	sheetFile string
	sheet     []byte
	user      string
	password  string
	rights    []string
	blocked   bool
	tags      []string
	stash     map[string][]byte
	nextKey   int

	edits   []WikiEdit
	uploads []string
	purged  []string
}

// NewWiki starts a fake wiki that is shut down with the test.
func NewWiki(t *testing.T, pageID int, title, text, sheetFile string, sheet []byte) *Wiki {
	t.Helper()
	w := &Wiki{
		pageID:    pageID,
		title:     title,
		text:      text,
		timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		sheetFile: sheetFile,
		sheet:     append([]byte(nil), sheet...),
		rights:    []string{"edit", "upload", "reupload"},
		stash:     make(map[string][]byte),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api.php", w.serveAPI)
	mux.HandleFunc("/files/", w.serveFile)
	w.Server = httptest.NewServer(mux)
	t.Cleanup(w.Server.Close)
	return w
}

// Endpoint is the api.php URL.
func (w *Wiki) Endpoint() string { return w.Server.URL + "/api.php" }

// SheetURL is where the spritesheet is served.
func (w *Wiki) SheetURL() string { return w.Server.URL + "/files/" + w.sheetFile }

// SetLogin sets the bot password accepted by action=login.
func (w *Wiki) SetLogin(user, password string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.user, w.password = user, password
}

// SetRights replaces the current user's rights.
func (w *Wiki) SetRights(rights ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rights = rights
}

// SetBlocked blocks or unblocks the current user.
func (w *Wiki) SetBlocked(blocked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocked = blocked
}

// AddTag registers an active change tag.
func (w *Wiki) AddTag(tag string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tags = append(w.tags, tag)
}

// EditExternally changes the page as another user would.
func (w *Wiki) EditExternally(text string) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.text = text
	w.timestamp = w.timestamp.Add(time.Minute)
	return w.timestamp
}

// Text returns the current page text.
func (w *Wiki) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.text
}

// Timestamp returns the current revision timestamp.
func (w *Wiki) Timestamp() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timestamp
}

// Sheet returns the current spritesheet bytes.
func (w *Wiki) Sheet() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.sheet...)
}

// Edits returns every edit attempt in order.
func (w *Wiki) Edits() []WikiEdit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WikiEdit(nil), w.edits...)
}

// Uploads returns the published file names in order.
func (w *Wiki) Uploads() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.uploads...)
}

// Purged returns the purged titles in order.
func (w *Wiki) Purged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.purged...)
}

// DropStash expires every stashed upload.
func (w *Wiki) DropStash() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stash = make(map[string][]byte)
}

func (w *Wiki) serveFile(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	name := strings.TrimPrefix(r.URL.Path, "/files/")
	if name != w.sheetFile || len(w.sheet) == 0 {
		http.NotFound(rw, r)
		return
	}
	rw.Header().Set("Content-Type", "image/png")
	_, _ = rw.Write(w.sheet)
}

func (w *Wiki) serveAPI(rw http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
	} else if err := r.ParseForm(); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var doc string
	switch r.FormValue("action") {
	case "query":
		doc = w.query(r)
	case "compare":
		doc = w.compare(r)
	case "edit":
		doc = w.edit(r)
	case "upload":
		doc = w.upload(r)
	case "purge":
		w.purged = append(w.purged, r.FormValue("titles"))
		doc = set("{}", "batchcomplete", true)
	case "login":
		doc = w.login(r)
	default:
		doc = apiError("badvalue", "unknown action")
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(rw, doc)
}

func (w *Wiki) query(r *http.Request) string {
	switch {
	case r.FormValue("meta") == "tokens" && r.FormValue("type") == "login":
		return set("{}", "query.tokens.logintoken", loginToken)
	case r.FormValue("meta") == "tokens":
		return set("{}", "query.tokens.csrftoken", csrfToken)
	case r.FormValue("meta") == "userinfo":
		doc := set("{}", "query.userinfo.name", w.userName())
		doc = set(doc, "query.userinfo.rights", w.rights)
		if w.blocked {
			doc = set(doc, "query.userinfo.blockid", 1)
			doc = set(doc, "query.userinfo.blockreason", "testing")
		}
		return doc
	case r.FormValue("list") == "tags":
		doc := set("{}", "query.tags", []interface{}{})
		for i, tag := range w.tags {
			doc = set(doc, fmt.Sprintf("query.tags.%d.name", i), tag)
			doc = set(doc, fmt.Sprintf("query.tags.%d.active", i), true)
		}
		return doc
	case r.FormValue("prop") == "revisions":
		if r.FormValue("pageids") != strconv.Itoa(w.pageID) {
			doc := set("{}", "query.pages.0.pageid", r.FormValue("pageids"))
			return set(doc, "query.pages.0.missing", true)
		}
		doc := set("{}", "query.pages.0.pageid", w.pageID)
		doc = set(doc, "query.pages.0.title", w.title)
		doc = set(doc, "query.pages.0.revisions.0.timestamp", stamp(w.timestamp))
		if strings.Contains(r.FormValue("rvprop"), "content") {
			doc = set(doc, "query.pages.0.revisions.0.slots.main.content", w.text)
		}
		return doc
	case r.FormValue("prop") == "imageinfo":
		title := r.FormValue("titles")
		doc := set("{}", "query.pages.0.title", title)
		if title != "File:"+w.sheetFile {
			return set(doc, "query.pages.0.missing", true)
		}
		return set(doc, "query.pages.0.imageinfo.0.url", w.SheetURL())
	}
	return apiError("badvalue", "unsupported query")
}

func (w *Wiki) userName() string {
	if w.user != "" {
		return w.user
	}
	return "Tester"
}

func (w *Wiki) compare(r *http.Request) string {
	next := r.FormValue("totext-main")
	if next == w.text {
		return set("{}", "compare.body", "")
	}
	body := fmt.Sprintf(`<tr><td class="diff-deletedline"><div>%d bytes</div></td><td class="diff-addedline"><div>%d bytes</div></td></tr>`, len(w.text), len(next))
	return set("{}", "compare.body", body)
}

func (w *Wiki) edit(r *http.Request) string {
	if r.FormValue("token") != csrfToken {
		return apiError("badtoken", "Invalid CSRF token.")
	}
	e := WikiEdit{
		Text:    r.FormValue("text"),
		Summary: r.FormValue("summary"),
		Base:    r.FormValue("basetimestamp"),
		Tags:    r.FormValue("tags"),
	}
	if e.Base != "" && e.Base != stamp(w.timestamp) {
		e.Conflict = true
		w.edits = append(w.edits, e)
		return apiError("editconflict", "Edit conflict.")
	}
	w.edits = append(w.edits, e)
	if e.Text == w.text {
		doc := set("{}", "edit.result", "Success")
		return set(doc, "edit.nochange", true)
	}
	w.text = e.Text
	w.timestamp = w.timestamp.Add(time.Minute)
	doc := set("{}", "edit.result", "Success")
	return set(doc, "edit.newtimestamp", stamp(w.timestamp))
}

func (w *Wiki) upload(r *http.Request) string {
	if r.FormValue("token") != csrfToken {
		return apiError("badtoken", "Invalid CSRF token.")
	}
	if r.FormValue("stash") == "1" {
		f, _, err := r.FormFile("file")
		if err != nil {
			return apiError("missingparam", err.Error())
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return apiError("internal", err.Error())
		}
		w.nextKey++
		key := fmt.Sprintf("key%d.png", w.nextKey)
		w.stash[key] = data
		doc := set("{}", "upload.result", "Success")
		return set(doc, "upload.filekey", key)
	}
	data, ok := w.stash[r.FormValue("filekey")]
	if !ok {
		return apiError("stashfilenotfound", "Could not find the file in the stash.")
	}
	delete(w.stash, r.FormValue("filekey"))
	if r.FormValue("filename") == w.sheetFile {
		w.sheet = data
	}
	w.uploads = append(w.uploads, r.FormValue("filename"))
	return set("{}", "upload.result", "Success")
}

func (w *Wiki) login(r *http.Request) string {
	if r.FormValue("lgtoken") != loginToken {
		return apiError("badtoken", "Invalid login token.")
	}
	if w.user == "" || r.FormValue("lgname") != w.user || r.FormValue("lgpassword") != w.password {
		doc := set("{}", "login.result", "Failed")
		return set(doc, "login.reason", "Incorrect username or password entered.")
	}
	return set("{}", "login.result", "Success")
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func apiError(code, info string) string {
	doc := set("{}", "error.code", code)
	return set(doc, "error.info", info)
}

func set(doc, path string, value interface{}) string {
	out, err := sjson.Set(doc, path, value)
	if err != nil {
		panic(fmt.Sprintf("testutil: set %s: %v", path, err))
	}
	return out
}
