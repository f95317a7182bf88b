package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/luatable"
	"github.com/Majr25/SpriteEdit/internal/sheet"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

// Source is the subset of the wiki client used while starting up.
type Source interface {
	Remote
	FileURL(ctx context.Context, filename string) (string, error)
	FetchFile(ctx context.Context, rawURL string) ([]byte, error)
}

// Request describes what to load.
type Request struct {
	PageID    int
	SheetFile string
	// SheetURL is tried before resolving SheetFile. A stale URL falls back
	// to the file's current location.
	SheetURL string
	// Known is the IDs revision timestamp remembered from a previous run.
	Known time.Time
}

// Loaded is everything the editor needs before it can open a session.
type Loaded struct {
	Table    luatable.Table
	Revision wiki.Revision
	Sheet    image.Image
	SheetURL string
	User     wiki.UserInfo
	// Updated is set when the IDs page changed since the Known timestamp.
	Updated bool
}

// Startup fetches the sheet, checks the user's rights and loads the IDs page
// concurrently. The first failure cancels the remaining tasks.
func Startup(ctx context.Context, src Source, req Request) (Loaded, error) {
	var out Loaded
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		img, url, err := fetchSheet(gctx, src, req)
		if err != nil {
			return fmt.Errorf("load spritesheet: %w", err)
		}
		out.Sheet, out.SheetURL = img, url
		return nil
	})

	g.Go(func() error {
		info, err := src.UserInfo(gctx)
		if err != nil {
			return fmt.Errorf("check permissions: %w", err)
		}
		if err := info.CanSave(); err != nil {
			events.App.Abort("permissions")
			return err
		}
		out.User = info
		return nil
	})

	g.Go(func() error {
		rev, err := src.Revision(gctx, req.PageID, true)
		if err != nil {
			return fmt.Errorf("load IDs page: %w", err)
		}
		tbl, err := luatable.Parse(rev.Content)
		if err != nil {
			return fmt.Errorf("read IDs page %s: %w", rev.Title, err)
		}
		out.Revision, out.Table = rev, tbl
		out.Updated = !req.Known.IsZero() && rev.Timestamp.After(req.Known)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Loaded{}, err
	}
	return out, nil
}

func fetchSheet(ctx context.Context, src Source, req Request) (image.Image, string, error) {
	if req.SheetURL != "" {
		data, err := src.FetchFile(ctx, req.SheetURL)
		if err == nil {
			img, err := sheet.Decode(bytes.NewReader(data))
			return img, req.SheetURL, err
		}
		var httpErr *wiki.HTTPError
		if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound || req.SheetFile == "" {
			return nil, "", err
		}
	}
	if req.SheetFile == "" {
		return nil, "", errors.New("no spritesheet configured")
	}
	url, err := src.FileURL(ctx, req.SheetFile)
	if err != nil {
		return nil, "", err
	}
	data, err := src.FetchFile(ctx, url)
	if err != nil {
		return nil, "", err
	}
	img, err := sheet.Decode(bytes.NewReader(data))
	return img, url, err
}
