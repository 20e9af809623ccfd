package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
)

// ErrScriptExhausted is returned when FetchPage is called with no scripted result left.
var ErrScriptExhausted = errors.New("scripted fetcher: no result left")

// ScriptedResult is one canned FetchPage outcome.
type ScriptedResult struct {
	Page catalog.Page
	Err  error
}

// FetchCall records the arguments of one FetchPage call.
type FetchCall struct {
	Offset int
	Limit  int
}

// ScriptedFetcher is a catalog.Fetcher that replays queued results in call
// order. When held, every call blocks until Release lets one through.
type ScriptedFetcher struct {
	mu      sync.Mutex
	results []ScriptedResult
	calls   []FetchCall
	gate    chan struct{}
}

// NewScriptedFetcher returns a fetcher that replays results in order.
func NewScriptedFetcher(results ...ScriptedResult) *ScriptedFetcher {
	return &ScriptedFetcher{results: results}
}

// Enqueue appends more results.
func (f *ScriptedFetcher) Enqueue(results ...ScriptedResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, results...)
}

// Hold makes subsequent calls wait for Release.
func (f *ScriptedFetcher) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{}, 64)
	}
}

// Release lets one held call return.
func (f *ScriptedFetcher) Release() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate <- struct{}{}
	}
}

// FetchPage implements catalog.Fetcher.
func (f *ScriptedFetcher) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FetchCall{Offset: offset, Limit: limit})
	result := ScriptedResult{Err: fmt.Errorf("%w (call %d)", ErrScriptExhausted, len(f.calls))}
	if len(f.results) > 0 {
		result = f.results[0]
		f.results = f.results[1:]
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return catalog.Page{}, ctx.Err()
		case <-gate:
		}
	}

	return result.Page, result.Err
}

// Calls returns a copy of the recorded calls.
func (f *ScriptedFetcher) Calls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchCall(nil), f.calls...)
}

// CallCount returns the number of FetchPage calls so far.
func (f *ScriptedFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Page builds a successful result.
func Page(records []catalog.Record, next *int, total int) ScriptedResult {
	return ScriptedResult{Page: catalog.Page{Records: records, NextOffset: next, TotalCount: total}}
}

// Failure builds a failed result.
func Failure(err error) ScriptedResult {
	return ScriptedResult{Err: err}
}

// Record builds a display-ready record.
func Record(id int, name string, types ...string) catalog.Record {
	return catalog.Record{ID: id, Name: name, Types: types}
}

// Records builds n filler records with IDs starting at first.
func Records(first, n int) []catalog.Record {
	records := make([]catalog.Record, 0, n)
	for id := first; id < first+n; id++ {
		records = append(records, Record(id, fmt.Sprintf("Mon%03d", id), "Normal"))
	}
	return records
}
