package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/tastekeeper/internal/diary"
	"github.com/dmitrijs2005/tastekeeper/internal/syncx"
)

func (a *App) list(ctx context.Context) {
	printView(a.logs.Snapshot(), formatLog)
}

func (a *App) listLater(ctx context.Context) {
	printView(a.later.Snapshot(), formatEatLater)
}

func printView[E any](snap syncx.Snapshot[E], format func(E) string) {
	if snap.Loading {
		fmt.Println("(loading...)")
		return
	}
	if snap.Err != "" {
		log.Println(snap.Err)
		return
	}
	if len(snap.Items) == 0 {
		fmt.Println("(empty)")
		return
	}
	for _, item := range snap.Items {
		fmt.Println(format(item))
	}
}

func formatLog(e diary.VisitedLog) string {
	s := fmt.Sprintf("%s  %s", e.ID, e.Name)
	if e.Location != "" {
		s += " @ " + e.Location
	}
	if e.Rating > 0 {
		s += fmt.Sprintf("  [%.1f]", e.Rating)
	}
	if e.DateVisited != "" {
		s += "  visited " + e.DateVisited
	}
	if len(e.Tags) > 0 {
		s += "  #" + strings.Join(e.Tags, " #")
	}
	return s
}

func formatEatLater(e diary.EatLaterEntry) string {
	s := fmt.Sprintf("%s  %s", e.ID, e.Name)
	if e.Location != "" {
		s += " @ " + e.Location
	}
	if e.Notes != "" {
		s += "  (" + e.Notes + ")"
	}
	if len(e.Tags) > 0 {
		s += "  #" + strings.Join(e.Tags, " #")
	}
	return s
}

// promptLogDraft collects the fields of a visit from the terminal.
func (a *App) promptLogDraft() (diary.VisitedLogDraft, error) {
	var d diary.VisitedLogDraft
	var err error

	if d.Name, err = getSimpleText(a.reader, "Restaurant name", os.Stdout); err != nil {
		return d, err
	}
	if d.Name == "" {
		return d, fmt.Errorf("name is required")
	}
	if d.Location, err = getSimpleText(a.reader, "Location (optional)", os.Stdout); err != nil {
		return d, err
	}
	if d.Rating, err = GetRating(a.reader, os.Stdout); err != nil {
		return d, err
	}
	if d.DateVisited, err = getSimpleText(a.reader, "Date visited (YYYY-MM-DD)", os.Stdout); err != nil {
		return d, err
	}
	if d.Review, err = getSimpleText(a.reader, "Review (optional)", os.Stdout); err != nil {
		return d, err
	}
	if d.Tags, err = GetTags(a.reader, os.Stdout); err != nil {
		return d, err
	}
	return d, nil
}

func (a *App) promptEatLaterDraft() (diary.EatLaterDraft, error) {
	var d diary.EatLaterDraft
	var err error

	if d.Name, err = getSimpleText(a.reader, "Restaurant name", os.Stdout); err != nil {
		return d, err
	}
	if d.Name == "" {
		return d, fmt.Errorf("name is required")
	}
	if d.Location, err = getSimpleText(a.reader, "Location (optional)", os.Stdout); err != nil {
		return d, err
	}
	if d.Notes, err = getSimpleText(a.reader, "Notes (optional)", os.Stdout); err != nil {
		return d, err
	}
	if d.Tags, err = GetTags(a.reader, os.Stdout); err != nil {
		return d, err
	}
	return d, nil
}

func (a *App) addLog(ctx context.Context) {
	draft, err := a.promptLogDraft()
	if err != nil {
		log.Println(err.Error())
		return
	}
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.logs.Create(opCtx, draft)
	a.reportResult(a.logs.Snapshot().Err)
}

func (a *App) editLog(ctx context.Context, id string) {
	draft, err := a.promptLogDraft()
	if err != nil {
		log.Println(err.Error())
		return
	}
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.logs.Update(opCtx, id, draft)
	a.reportResult(a.logs.Snapshot().Err)
}

func (a *App) deleteLog(ctx context.Context, id string) {
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.logs.Delete(opCtx, id)
	a.reportResult(a.logs.Snapshot().Err)
}

func (a *App) addLater(ctx context.Context) {
	draft, err := a.promptEatLaterDraft()
	if err != nil {
		log.Println(err.Error())
		return
	}
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.later.Create(opCtx, draft)
	a.reportResult(a.later.Snapshot().Err)
}

func (a *App) editLater(ctx context.Context, id string) {
	draft, err := a.promptEatLaterDraft()
	if err != nil {
		log.Println(err.Error())
		return
	}
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.later.Update(opCtx, id, draft)
	a.reportResult(a.later.Snapshot().Err)
}

func (a *App) deleteLater(ctx context.Context, id string) {
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.later.Delete(opCtx, id)
	a.reportResult(a.later.Snapshot().Err)
}

// markVisited promotes an eat-later entry into a visited log: it prompts for
// the visit details, records the log, and removes the entry from the
// eat-later list. Name, location and tags carry over.
func (a *App) markVisited(ctx context.Context, id string) {
	var entry diary.EatLaterEntry
	found := false
	for _, e := range a.later.Snapshot().Items {
		if e.ID == id {
			entry = e
			found = true
			break
		}
	}
	if !found {
		fmt.Println("No eat-later entry with id", id)
		return
	}

	draft := diary.VisitedLogDraft{
		Name:     entry.Name,
		Location: entry.Location,
		Review:   entry.Notes,
		Tags:     entry.Tags,
	}

	var err error
	if draft.Rating, err = GetRating(a.reader, os.Stdout); err != nil {
		log.Println(err.Error())
		return
	}
	if draft.DateVisited, err = getSimpleText(a.reader, "Date visited (YYYY-MM-DD)", os.Stdout); err != nil {
		log.Println(err.Error())
		return
	}

	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.logs.Create(opCtx, draft)
	if errText := a.logs.Snapshot().Err; errText != "" {
		log.Println(errText)
		return
	}
	a.later.Delete(opCtx, id)
	a.reportResult(a.later.Snapshot().Err)
}

func (a *App) refresh(ctx context.Context) {
	opCtx, cancel := a.opCtx(ctx)
	defer cancel()
	a.logs.Refetch(opCtx)
	a.later.Refetch(opCtx)
}

func (a *App) reportResult(errText string) {
	if errText != "" {
		log.Println(errText)
		return
	}
	fmt.Println("OK")
}
