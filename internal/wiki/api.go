package wiki

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Majr25/SpriteEdit/internal/logging/events"
)

// Revision is the latest revision of a page.
type Revision struct {
	PageID    int
	Title     string
	Timestamp time.Time
	Content   string
}

// Revision fetches the latest revision of a page by ID. withContent also
// loads the page text.
func (c *Client) Revision(ctx context.Context, pageID int, withContent bool) (Revision, error) {
	prop := "timestamp"
	if withContent {
		prop += "|content"
	}
	res, err := c.get(ctx, url.Values{
		"action":  {"query"},
		"prop":    {"revisions"},
		"pageids": {strconv.Itoa(pageID)},
		"rvprop":  {prop},
		"rvslots": {"main"},
	})
	if err != nil {
		return Revision{}, fmt.Errorf("fetch revision of page %d: %w", pageID, err)
	}
	page := res.Get("query.pages.0")
	if !page.Exists() || page.Get("missing").Bool() || page.Get("invalid").Bool() {
		return Revision{}, fmt.Errorf("fetch revision of page %d: %w", pageID, ErrNotFound)
	}
	rev := page.Get("revisions.0")
	ts, err := ParseTimestamp(rev.Get("timestamp").String())
	if err != nil {
		return Revision{}, fmt.Errorf("fetch revision of page %d: %w", pageID, err)
	}
	out := Revision{
		PageID:    int(page.Get("pageid").Int()),
		Title:     page.Get("title").String(),
		Timestamp: ts,
		Content:   rev.Get("slots.main.content").String(),
	}
	events.Wiki.Revision(out.Title, FormatTimestamp(ts))
	return out, nil
}

// ParseTimestamp reads an API timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatTimestamp writes a timestamp the way the API expects it back.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Diff compares the latest revision of a page with text and returns the
// diff table rows. An empty result means the text is unchanged.
func (c *Client) Diff(ctx context.Context, pageID int, text string) (string, error) {
	res, err := c.post(ctx, url.Values{
		"action":              {"compare"},
		"fromid":              {strconv.Itoa(pageID)},
		"toslots":             {"main"},
		"totext-main":         {text},
		"tocontentmodel-main": {"Scribunto"},
		"prop":                {"diff"},
	})
	if err != nil {
		return "", fmt.Errorf("diff page %d: %w", pageID, err)
	}
	return res.Get("compare.body").String(), nil
}

// EditRequest is a conditional page edit.
type EditRequest struct {
	PageID  int
	Text    string
	Summary string
	// BaseTimestamp is the revision the text was based on. A zero value
	// disables the conflict check.
	BaseTimestamp time.Time
	Tags          []string
}

// EditResult reports the outcome of an edit.
type EditResult struct {
	NoChange     bool
	NewTimestamp time.Time
}

// Edit saves page text. A stale BaseTimestamp yields an error matching
// ErrEditConflict.
func (c *Client) Edit(ctx context.Context, req EditRequest) (EditResult, error) {
	params := url.Values{
		"action":   {"edit"},
		"pageid":   {strconv.Itoa(req.PageID)},
		"text":     {req.Text},
		"summary":  {req.Summary},
		"nocreate": {"1"},
	}
	if ts := FormatTimestamp(req.BaseTimestamp); ts != "" {
		params.Set("basetimestamp", ts)
	}
	if len(req.Tags) > 0 {
		params.Set("tags", strings.Join(req.Tags, "|"))
	}
	res, err := c.withToken(ctx, params, func(p url.Values) (gjson.Result, error) { return c.post(ctx, p) })
	if err != nil {
		return EditResult{}, fmt.Errorf("edit page %d: %w", req.PageID, err)
	}
	edit := res.Get("edit")
	if r := edit.Get("result").String(); r != "Success" {
		return EditResult{}, fmt.Errorf("edit page %d: result %q", req.PageID, r)
	}
	if edit.Get("nochange").Exists() {
		return EditResult{NoChange: true}, nil
	}
	ts, err := ParseTimestamp(edit.Get("newtimestamp").String())
	if err != nil {
		return EditResult{}, fmt.Errorf("edit page %d: %w", req.PageID, err)
	}
	return EditResult{NewTimestamp: ts}, nil
}

// Stash uploads data to the user's upload stash and returns its file key.
func (c *Client) Stash(ctx context.Context, filename string, data []byte) (string, error) {
	params := url.Values{
		"action":         {"upload"},
		"stash":          {"1"},
		"filename":       {filename},
		"ignorewarnings": {"1"},
	}
	res, err := c.withToken(ctx, params, func(p url.Values) (gjson.Result, error) {
		return c.postFile(ctx, p, filename, data)
	})
	if err != nil {
		return "", fmt.Errorf("stash %s: %w", filename, err)
	}
	key := res.Get("upload.filekey").String()
	if key == "" {
		return "", fmt.Errorf("stash %s: no file key (result %q)", filename, res.Get("upload.result").String())
	}
	return key, nil
}

// UploadRequest publishes a stashed file.
type UploadRequest struct {
	Filename string
	FileKey  string
	Comment  string
	Tags     []string
}

// Upload publishes a stashed file. An expired key yields an error matching
// ErrStashMissing.
func (c *Client) Upload(ctx context.Context, req UploadRequest) error {
	params := url.Values{
		"action":         {"upload"},
		"filename":       {req.Filename},
		"filekey":        {req.FileKey},
		"comment":        {req.Comment},
		"ignorewarnings": {"1"},
	}
	if len(req.Tags) > 0 {
		params.Set("tags", strings.Join(req.Tags, "|"))
	}
	res, err := c.withToken(ctx, params, func(p url.Values) (gjson.Result, error) { return c.post(ctx, p) })
	if err != nil {
		return fmt.Errorf("upload %s: %w", req.Filename, err)
	}
	if r := res.Get("upload.result").String(); r != "Success" {
		return fmt.Errorf("upload %s: result %q", req.Filename, r)
	}
	return nil
}

// UserInfo is the current user's standing.
type UserInfo struct {
	Name        string
	Anonymous   bool
	Blocked     bool
	BlockReason string
	Rights      []string
}

// Has reports whether the user holds right.
func (u UserInfo) Has(right string) bool {
	for _, r := range u.Rights {
		if r == right {
			return true
		}
	}
	return false
}

// CanSave returns nil when the user may edit pages and overwrite files.
func (u UserInfo) CanSave() error {
	if u.Blocked {
		if u.BlockReason != "" {
			return fmt.Errorf("%w: %s", ErrBlocked, u.BlockReason)
		}
		return ErrBlocked
	}
	for _, right := range []string{"edit", "upload", "reupload"} {
		if !u.Has(right) {
			return fmt.Errorf("%w: missing right %q", ErrPermission, right)
		}
	}
	return nil
}

// UserInfo fetches the current user's rights and block status.
func (c *Client) UserInfo(ctx context.Context) (UserInfo, error) {
	res, err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"userinfo"},
		"uiprop": {"blockinfo|rights"},
	})
	if err != nil {
		return UserInfo{}, fmt.Errorf("fetch user info: %w", err)
	}
	ui := res.Get("query.userinfo")
	out := UserInfo{
		Name:        ui.Get("name").String(),
		Anonymous:   ui.Get("anon").Bool(),
		Blocked:     ui.Get("blockid").Exists(),
		BlockReason: ui.Get("blockreason").String(),
	}
	for _, r := range ui.Get("rights").Array() {
		out.Rights = append(out.Rights, r.String())
	}
	return out, nil
}

// ValidTag reports whether tag is an active change tag on the wiki.
func (c *Client) ValidTag(ctx context.Context, tag string) (bool, error) {
	res, err := c.get(ctx, url.Values{
		"action":  {"query"},
		"list":    {"tags"},
		"tglimit": {"max"},
		"tgprop":  {"active"},
	})
	if err != nil {
		return false, fmt.Errorf("fetch tags: %w", err)
	}
	for _, t := range res.Get("query.tags").Array() {
		if t.Get("name").String() == tag {
			return t.Get("active").Bool(), nil
		}
	}
	return false, nil
}

// Purge clears the rendered cache of a page.
func (c *Client) Purge(ctx context.Context, title string) error {
	if _, err := c.post(ctx, url.Values{"action": {"purge"}, "titles": {title}}); err != nil {
		return fmt.Errorf("purge %s: %w", title, err)
	}
	return nil
}

// FileURL returns the current URL of an uploaded file.
func (c *Client) FileURL(ctx context.Context, filename string) (string, error) {
	res, err := c.get(ctx, url.Values{
		"action": {"query"},
		"titles": {"File:" + filename},
		"prop":   {"imageinfo"},
		"iiprop": {"url"},
	})
	if err != nil {
		return "", fmt.Errorf("file info %s: %w", filename, err)
	}
	u := res.Get("query.pages.0.imageinfo.0.url").String()
	if u == "" {
		return "", fmt.Errorf("file info %s: %w", filename, ErrNotFound)
	}
	return u, nil
}

// FetchFile downloads raw bytes, retrying once on transient failures. A
// cache-busting query parameter keeps stale copies out.
func (c *Client) FetchFile(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(c.endpoint)
		if err != nil {
			return nil, err
		}
		u = base.ResolveReference(u)
	}
	q := u.Query()
	q.Set("spriteedit", strconv.FormatInt(time.Now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	var data []byte
	_, err = c.retry(ctx, "fetch", func() (gjson.Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return gjson.Result{}, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		resp, err := c.http.Do(req)
		if err != nil {
			return gjson.Result{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return gjson.Result{}, &HTTPError{Status: resp.StatusCode, URL: rawURL}
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return gjson.Result{}, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return data, nil
}

// Login signs in with a bot password.
func (c *Client) Login(ctx context.Context, user, password string) error {
	res, err := c.get(ctx, url.Values{"action": {"query"}, "meta": {"tokens"}, "type": {"login"}})
	if err != nil {
		return fmt.Errorf("fetch login token: %w", err)
	}
	res, err = c.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {user},
		"lgpassword": {password},
		"lgtoken":    {res.Get("query.tokens.logintoken").String()},
	})
	if err != nil {
		return fmt.Errorf("login %s: %w", user, err)
	}
	if r := res.Get("login.result").String(); r != "Success" {
		reason := res.Get("login.reason").String()
		return fmt.Errorf("login %s: %s %s", user, r, reason)
	}
	c.csrf = ""
	return nil
}
