package session

import "github.com/agentstation/shelf/pkg/records"

// Meta annotates a delivered result.
type Meta struct {
	// Pending is set on a local-only result while the external snapshot is
	// still being fetched.
	Pending bool `json:"pending"`
	// Generation is the load that produced the result.
	Generation uint64 `json:"generation"`
}

// Renderer receives results. Calls for one session never overlap. A
// Renderer may read Categories or State but must not drive its session
// (query, toggle, reset, reload, close) before returning.
type Renderer interface {
	Render(recs []records.Record, query, category string, meta Meta)
	RenderError(err error)
}

// RendererFuncs adapts a pair of functions to Renderer. Nil fields are skipped.
type RendererFuncs struct {
	OnRender func(recs []records.Record, query, category string, meta Meta)
	OnError  func(err error)
}

// Render implements Renderer.
func (f RendererFuncs) Render(recs []records.Record, query, category string, meta Meta) {
	if f.OnRender != nil {
		f.OnRender(recs, query, category, meta)
	}
}

// RenderError implements Renderer.
func (f RendererFuncs) RenderError(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

var _ Renderer = RendererFuncs{}
