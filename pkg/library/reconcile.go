package library

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/kasuboski/showsync/pkg/cache"
	"github.com/kasuboski/showsync/pkg/emby"
	"github.com/kasuboski/showsync/pkg/episode"
	"github.com/kasuboski/showsync/pkg/logger"
	"golang.org/x/text/cases"
)

const itemsKey = "items"

// Reconciler mirrors downloaded episodes into a library's watched status.
// A Reconciler without a library turns every call into a no-op.
type Reconciler struct {
	lib   Library
	items *cache.Cache[string, []emby.Item]
	fold  cases.Caser
}

func New(lib Library) *Reconciler {
	return &Reconciler{
		lib:   lib,
		items: cache.New[string, []emby.Item](),
		fold:  cases.Fold(),
	}
}

// Available reports whether a library is configured
func (r *Reconciler) Available() bool {
	return r != nil && r.lib != nil
}

// Reconcile marks every episode in downloaded that the library has not seen
// as watched. It never fails; the result says what happened.
func (r *Reconciler) Reconcile(ctx context.Context, showPath string, downloaded episode.Set) Result {
	log := logger.FromCtx(ctx)

	if !r.Available() {
		log.Debugw("no library connected, skipping update", "show", showPath)
		return Result{Outcome: Unavailable}
	}

	items, err := r.allItems(ctx)
	if err != nil {
		return Result{Outcome: Unavailable, Err: err}
	}

	item, ok := r.match(items, showPath)
	if !ok {
		log.Debugw("could not find library item", "show", showPath)
		return Result{Outcome: NotFound}
	}
	log.Debugw("found library item", "show", showPath, "item", item.Name, "id", item.ID)

	marked, err := r.markEpisodes(ctx, item, downloaded)
	if err != nil {
		log.Debugw("episode update failed, marking whole item", "item", item.Name, "error", err)

		if markErr := r.lib.MarkPlayed(ctx, item.ID); markErr != nil {
			return Result{Outcome: UpdateFailed, Item: item, Marked: marked, Err: errors.Join(err, markErr)}
		}
		return Result{Outcome: Updated, Item: item, Marked: marked}
	}

	if marked == 0 {
		return Result{Outcome: UpToDate, Item: item}
	}
	return Result{Outcome: Updated, Item: item, Marked: marked}
}

func (r *Reconciler) markEpisodes(ctx context.Context, item emby.Item, downloaded episode.Set) (int, error) {
	log := logger.FromCtx(ctx)

	seasons, err := r.lib.Seasons(ctx, item.ID)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, season := range seasons {
		episodes, err := r.lib.Episodes(ctx, item.ID, season.ID)
		if err != nil {
			return marked, err
		}

		for _, ep := range episodes {
			id := episode.ID{Season: season.IndexNumber, Episode: ep.IndexNumber}

			switch {
			case ep.Watched():
				log.Debugw("already watched", "episode", id.String())
			case !downloaded.Has(id):
				log.Debugw("will download", "episode", id.String())
			default:
				log.Debugw("downloaded, setting watched", "episode", id.String())
				if err := r.lib.MarkPlayed(ctx, ep.ID); err != nil {
					return marked, fmt.Errorf("episode %s: %w", id, err)
				}
				marked++
			}
		}
	}

	return marked, nil
}

// Search returns the path of the series whose directory is named name
func (r *Reconciler) Search(ctx context.Context, name string) (string, error) {
	if !r.Available() {
		return "", ErrUnavailable
	}

	items, err := r.allItems(ctx)
	if err != nil {
		return "", err
	}

	want := strings.TrimRight(name, `/\`)
	for _, item := range items {
		if item.Type != emby.TypeSeries {
			continue
		}
		if path.Base(trimSlash(item.Path)) == want {
			logger.FromCtx(ctx).Debugw("library search matched series", "name", name, "series", item.Name)
			return item.Path, nil
		}
	}

	return "", nil
}

// Names lists the directory names of every series, each with a trailing slash
func (r *Reconciler) Names(ctx context.Context) ([]string, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}

	items, err := r.allItems(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, item := range items {
		if item.Type != emby.TypeSeries || item.Path == "" {
			continue
		}
		names = append(names, path.Base(trimSlash(item.Path))+"/")
	}
	return names, nil
}

func (r *Reconciler) allItems(ctx context.Context) ([]emby.Item, error) {
	return r.items.GetOrLoad(itemsKey, func() ([]emby.Item, error) {
		items, err := r.lib.Items(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list library items: %w", err)
		}
		return items, nil
	})
}

// match finds the library item for a show directory. Series whose path is a
// parent of the show win, then any item related by path containment, then a
// case insensitive base name match.
func (r *Reconciler) match(items []emby.Item, showPath string) (emby.Item, bool) {
	if p := trimSlash(showPath); p == "" || p == "." {
		return emby.Item{}, false
	}

	dir := trimSlash(showPath) + "/"
	for _, item := range items {
		if item.Type != emby.TypeSeries || item.Path == "" {
			continue
		}
		if strings.Contains(dir, trimSlash(item.Path)+"/") {
			return item, true
		}
	}

	lower := strings.ToLower(showPath)
	for _, item := range items {
		if item.Path == "" {
			continue
		}
		if strings.Contains(showPath, item.Path) || strings.Contains(strings.ToLower(item.Path), lower) {
			return item, true
		}
	}

	base := r.fold.String(path.Base(trimSlash(showPath)))
	if base == "" || base == "." || base == "/" {
		return emby.Item{}, false
	}
	for _, item := range items {
		if item.Path == "" {
			continue
		}
		other := r.fold.String(path.Base(trimSlash(item.Path)))
		if strings.Contains(other, base) || strings.Contains(base, other) {
			return item, true
		}
	}

	return emby.Item{}, false
}

func trimSlash(p string) string {
	return strings.TrimRight(p, `/\`)
}
