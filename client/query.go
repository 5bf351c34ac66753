package client

import (
	"context"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPage = 1
	DefaultNum  = 10
)

// PageQuery selects one page of a cursor walk. Index "" walks the store in
// primary key order. Start and End follow BuildRange. Page counts from 1 and
// Num is the page size; both must be at least 1.
type PageQuery struct {
	Store     string
	Index     string
	Start     any
	End       any
	Page      int
	Num       int
	Direction core.Direction
}

// NewPageQuery returns a query for the first DefaultNum records of store.
func NewPageQuery(store string) PageQuery {
	return PageQuery{Store: store, Page: DefaultPage, Num: DefaultNum}
}

// Page is one page of results and the number of entries in the whole range.
type Page struct {
	Total int   `json:"total"`
	List  []any `json:"list"`
}

// rangeSource is a store or one of its indexes.
type rangeSource interface {
	Count(r *core.KeyRange) (int, error)
	OpenCursor(r *core.KeyRange, dir core.Direction) (*db.Cursor, error)
}

func source(s *db.ObjectStore, index string) (rangeSource, error) {
	if index == "" {
		return s, nil
	}
	idx, err := s.Index(index)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Get returns the record stored under key; found is false when there is
// none.
func (c *Client) Get(ctx context.Context, store string, key any) (value any, found bool, err error) {
	if !core.IsValidKey(key) {
		return nil, false, invalidArgument("get", store, "invalid key %v", key)
	}
	err = c.run(ctx, "get", store, core.ReadOnly, ErrQuery, func(s *db.ObjectStore) (err error) {
		value, found, err = s.Get(key)
		return err
	})
	return value, found, err
}

// Find returns every record in range, walking index ("" for the primary
// key) in the given direction. An unknown direction walks forward.
func (c *Client) Find(ctx context.Context, store, index string, start, end any, direction core.Direction) ([]any, error) {
	r, err := buildRange(start, end)
	if err != nil {
		return nil, invalidArgument("find", store, "%v", err)
	}
	dir := core.ParseDirection(string(direction))

	result := []any{}
	err = c.run(ctx, "find", store, core.ReadOnly, ErrQuery, func(s *db.ObjectStore) error {
		src, err := source(s, index)
		if err != nil {
			return err
		}
		cur, err := src.OpenCursor(r, dir)
		if err != nil {
			return err
		}
		defer cur.Close()

		for cur.Next() {
			v, err := cur.Value()
			if err != nil {
				return err
			}
			result = append(result, v)
		}
		return cur.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindPage returns the records at positions num*(page-1)+1 through num*page
// of the walk Find would do, along with the size of the whole range. The
// count and the walk run concurrently in one read-only transaction; the walk
// is cancelled as soon as the count shows the page is empty.
func (c *Client) FindPage(ctx context.Context, q PageQuery) (Page, error) {
	page, num := q.Page, q.Num
	if page < 1 || num < 1 {
		return Page{}, invalidArgument("findPage", q.Store, "page and num must be greater than 0, got %d and %d", page, num)
	}
	r, err := buildRange(q.Start, q.End)
	if err != nil {
		return Page{}, invalidArgument("findPage", q.Store, "%v", err)
	}
	dir := core.ParseDirection(string(q.Direction))

	var result Page
	err = c.run(ctx, "findPage", q.Store, core.ReadOnly, ErrQuery, func(s *db.ObjectStore) error {
		src, err := source(s, q.Index)
		if err != nil {
			return err
		}
		result, err = pageOf(ctx, src, r, dir, page, num)
		return err
	})
	if err != nil {
		return Page{}, err
	}
	return result, nil
}

func pageOf(ctx context.Context, src rangeSource, r *core.KeyRange, dir core.Direction, page, num int) (Page, error) {
	skip, last := num*(page-1), num*page
	cell := newSettleOnce[Page]()

	walkCtx, cancelWalk := context.WithCancel(ctx)
	defer cancelWalk()
	g, gctx := errgroup.WithContext(walkCtx)
	totals := make(chan int, 1)

	g.Go(func() error {
		total, err := src.Count(r)
		if err != nil {
			cell.reject(err)
			return err
		}
		totals <- total
		if total <= skip && cell.resolve(Page{Total: total, List: []any{}}) {
			cancelWalk()
		}
		return nil
	})

	g.Go(func() error {
		cur, err := src.OpenCursor(r, dir)
		if err != nil {
			cell.reject(err)
			return err
		}
		defer cur.Close()

		list := []any{}
		for n := 1; gctx.Err() == nil && cur.Next(); n++ {
			if n > last {
				break
			}
			if n <= skip {
				continue
			}
			v, err := cur.Value()
			if err != nil {
				cell.reject(err)
				return err
			}
			list = append(list, v)
		}
		if err := cur.Err(); err != nil {
			cell.reject(err)
			return err
		}

		select {
		case total := <-totals:
			cell.resolve(Page{Total: total, List: list})
		case <-gctx.Done():
		}
		return nil
	})

	_ = g.Wait()
	if !cell.settled() {
		return Page{}, ctx.Err()
	}
	return cell.result()
}

// Count returns the number of records whose primary key is in range.
func (c *Client) Count(ctx context.Context, store string, start, end any) (int, error) {
	r, err := buildRange(start, end)
	if err != nil {
		return 0, invalidArgument("count", store, "%v", err)
	}
	var n int
	err = c.run(ctx, "count", store, core.ReadOnly, ErrQuery, func(s *db.ObjectStore) (err error) {
		n, err = s.Count(r)
		return err
	})
	return n, err
}
