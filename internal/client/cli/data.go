package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// Use switches the current store: use <collection> [network|sync|cache].
func (a *App) Use(_ context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return usage("use <collection> [network|sync|cache]")
	}
	st := datastore.Sync
	if len(args) == 2 {
		var err error
		if st, err = datastore.ParseStoreType(args[1]); err != nil {
			return err
		}
	}
	store, err := a.client.DataStore(args[0], st)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.store = store
	a.mu.Unlock()
	a.printf("Using %s (%s)\n", store.Collection(), store.StoreType())
	return nil
}

func (a *App) printEntity(e models.Entity) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		a.printf("%v\n", map[string]any(e))
		return
	}
	a.printf("%s\n", data)
}

// Save stores an entity given as JSON on the command line or, without
// arguments, entered field by field.
func (a *App) Save(ctx context.Context, args []string) error {
	var e models.Entity
	if len(args) > 0 {
		if err := json.Unmarshal([]byte(strings.Join(args, " ")), &e); err != nil {
			return fmt.Errorf("entity must be a JSON object: %w", err)
		}
	} else {
		var err error
		if e, err = GetFields(a.reader, a.out); err != nil {
			return err
		}
	}
	saved, err := a.current().Save(ctx, e)
	if err != nil {
		return err
	}
	a.printf("Saved %s\n", saved.ID())
	return nil
}

// Get prints one entity. On a CACHE store the cached copy, if any, is
// printed first and marked as such.
func (a *App) Get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("get <id>")
	}
	store := a.current()
	var opts []datastore.FindOption
	if store.StoreType() == datastore.Cache {
		opts = append(opts, datastore.WithCachedEntity(func(e models.Entity) {
			a.printf("(cached)\n")
			a.printEntity(e)
		}))
	}
	e, err := store.FindByID(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	a.printEntity(e)
	return nil
}

// parseQuery reads "[filter [sort]]": a Mongo-style JSON filter, then an
// optional JSON sort document. Both may contain spaces; the split point is
// the end of the first complete JSON value.
func parseQuery(args []string) (*query.Query, error) {
	raw := strings.TrimSpace(strings.Join(args, " "))
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	var filter json.RawMessage
	if err := dec.Decode(&filter); err != nil {
		return nil, fmt.Errorf("filter must be JSON: %w", err)
	}
	sortSpec := strings.TrimSpace(raw[dec.InputOffset():])
	return query.Parse(string(filter), sortSpec, 0, 0)
}

func (a *App) Find(ctx context.Context, args []string) error {
	q, err := parseQuery(args)
	if err != nil {
		return err
	}
	items, err := a.current().Find(ctx, q)
	if err != nil {
		return err
	}
	for _, e := range items {
		a.printEntity(e)
	}
	a.printf("%d item(s)\n", len(items))
	return nil
}

func (a *App) Count(ctx context.Context, args []string) error {
	q, err := parseQuery(args)
	if err != nil {
		return err
	}
	n, err := a.current().Count(ctx, q)
	if err != nil {
		return err
	}
	a.printf("%d\n", n)
	return nil
}

// Group runs group <reduce>[:field] [key,...] [filter], e.g.
// "group sum:pages genre {"year":1999}".
func (a *App) Group(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("group <count|sum|min|max|average>[:field] [key,...] [filter]")
	}
	reduce, field, _ := strings.Cut(args[0], ":")
	args = args[1:]
	var key []string
	if len(args) > 0 && !strings.HasPrefix(args[0], "{") {
		key = strings.Split(args[0], ",")
		args = args[1:]
	}
	condition, err := parseQuery(args)
	if err != nil {
		return err
	}
	agg := query.Aggregation{Reduce: query.Reduce(reduce), Key: key, Field: field}
	groups, err := a.current().Group(ctx, agg, condition)
	if err != nil {
		return err
	}
	for _, g := range groups {
		b, err := json.Marshal(g)
		if err != nil {
			return err
		}
		a.printf("%s\n", b)
	}
	a.printf("%d group(s)\n", len(groups))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("delete <id>...")
	}
	n, err := a.current().DeleteByIDs(ctx, args)
	if err != nil {
		return err
	}
	a.printf("Deleted %d\n", n)
	return nil
}
