// Package geotile turns the vector data of map tiles into renderable buckets
// and placed labels.
//
// Each tile is owned by a Worker, an actor that processes one message at a
// time from an ordered mailbox. Callers push new data, layers and camera
// state into the worker and receive results through the Parent interface.
//
// The worker is a small state machine. When idle, any update runs layout or
// placement straight away. Updates that arrive while that work is running are
// absorbed into a single pending pass which runs once the worker has caught
// up with its mailbox:
//
//	[idle] --update--> (layout or placement, self-send coalesced) --> [coalescing]
//	[coalescing] --coalesced--> [idle]
//	[coalescing] --data/layers--> [need layout]
//	[coalescing] --placement/dependencies--> [need placement]
//	[need placement] --data/layers--> [need layout]
//	[need layout|need placement] --coalesced--> (run pass, self-send coalesced) --> [coalescing]
//
// Layout always wins over placement because a layout pass ends with a
// placement attempt.
package geotile

import (
	"context"
	"log/slog"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/b1naryth1ef/geotile/tiledata"
)

type state int

const (
	idle state = iota
	coalescing
	needLayout
	needPlacement
)

func (s state) String() string {
	switch s {
	case coalescing:
		return "coalescing"
	case needLayout:
		return "need-layout"
	case needPlacement:
		return "need-placement"
	}
	return "idle"
}

type message struct {
	op string
	fn func() error
}

type WorkerOption func(*Worker)

// WithMetrics records worker activity in m.
func WithMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithIconAtlas sets the atlas icons are requested from.
func WithIconAtlas(name string) WorkerOption {
	return func(w *Worker) { w.iconAtlas = name }
}

type Worker struct {
	id      tiledata.TileID
	parent  Parent
	ctx     context.Context
	cancel  context.CancelFunc
	mailbox *mailbox
	done    chan struct{}

	metrics   *Metrics
	iconAtlas string

	// Everything below is only touched by the worker goroutine.
	state           state
	data            tiledata.Data
	hasData         bool
	layers          []*style.Layer
	hasLayers       bool
	placementConfig *symbol.PlacementConfig
	correlationID   uint64

	symbolLayouts  []*symbol.Layout
	pendingGlyphs  symbol.GlyphDependencies
	pendingIcons   symbol.IconDependencies
	glyphPositions symbol.GlyphPositionMap
	icons          symbol.IconAtlasMap
}

// NewWorker starts the worker for tile id. Cancelling ctx marks the tile as
// obsolete: a pass in progress is abandoned without emitting anything and the
// worker stops.
func NewWorker(ctx context.Context, id tiledata.TileID, parent Parent, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		id:             id,
		parent:         parent,
		ctx:            ctx,
		cancel:         cancel,
		mailbox:        newMailbox(),
		done:           make(chan struct{}),
		iconAtlas:      symbol.DefaultIconAtlas,
		pendingGlyphs:  make(symbol.GlyphDependencies),
		pendingIcons:   make(symbol.IconDependencies),
		glyphPositions: make(symbol.GlyphPositionMap),
		icons:          make(symbol.IconAtlasMap),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w
}

// ID returns the tile the worker was created for.
func (w *Worker) ID() tiledata.TileID { return w.id }

// Close stops the worker and waits for the message in progress to finish.
// Queued messages are dropped.
func (w *Worker) Close() {
	w.cancel()
	<-w.done
}

// Done is closed once the worker has stopped.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) log() *slog.Logger {
	return Logger().With("tile", w.id.String())
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.mailbox.close()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.mailbox.signal:
		}

		for {
			if w.ctx.Err() != nil {
				return
			}
			msg, ok := w.mailbox.pop()
			if !ok {
				break
			}
			w.handle(msg)
		}
	}
}

func (w *Worker) send(op string, fn func() error) {
	if !w.mailbox.push(message{op: op, fn: fn}) {
		w.log().Debug("dropping message for stopped worker", "op", op)
	}
}

// handle runs one message. Failures, panics included, are reported to the
// parent and the message counts as handled.
func (w *Worker) handle(msg message) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(msg.op, recovered(r))
		}
	}()

	if err := msg.fn(); err != nil {
		w.fail(msg.op, err)
	}
}

func (w *Worker) fail(op string, err error) {
	w.metrics.failed(op)
	w.log().Warn("worker failed to handle message", "op", op, "state", w.state, "cid", w.correlationID, "error", err)
	w.parent.OnError(&WorkerError{Tile: w.id, Op: op, Err: err})
}

func (w *Worker) obsolete() bool {
	return w.ctx.Err() != nil
}

// SetData replaces the tile data. A nil data is present but empty: layout
// runs and emits no buckets.
func (w *Worker) SetData(data tiledata.Data, correlationID uint64) {
	w.send("setData", func() error {
		w.data, w.hasData = data, true
		w.correlationID = correlationID

		if w.state == idle {
			return w.runPass(w.redoLayout)
		}

		w.metrics.absorbed("setData")
		w.state = needLayout
		return nil
	})
}

// SetLayers replaces the style layers. The worker keeps the slice, callers
// must not modify it or the layers afterwards.
func (w *Worker) SetLayers(layers []*style.Layer, correlationID uint64) {
	w.send("setLayers", func() error {
		w.layers, w.hasLayers = layers, true
		w.correlationID = correlationID

		if w.state == idle {
			return w.runPass(w.redoLayout)
		}

		w.metrics.absorbed("setLayers")
		w.state = needLayout
		return nil
	})
}

func (w *Worker) SetPlacementConfig(config symbol.PlacementConfig, correlationID uint64) {
	w.send("setPlacementConfig", func() error {
		w.placementConfig = &config
		w.correlationID = correlationID

		switch w.state {
		case idle:
			return w.runPass(w.attemptPlacement)
		case coalescing:
			w.metrics.absorbed("setPlacementConfig")
			w.state = needPlacement
		default:
			w.metrics.absorbed("setPlacementConfig")
		}
		return nil
	})
}

// SymbolDependenciesChanged asks for a placement pass if any symbol layout is
// still waiting to be shaped.
func (w *Worker) SymbolDependenciesChanged() {
	w.send("symbolDependenciesChanged", w.symbolDependenciesChanged)
}

func (w *Worker) symbolDependenciesChanged() error {
	switch w.state {
	case idle:
		if w.hasPendingSymbolLayouts() {
			return w.runPass(w.attemptPlacement)
		}
	case coalescing:
		if w.hasPendingSymbolLayouts() {
			w.state = needPlacement
		}
	default:
		w.metrics.absorbed("symbolDependenciesChanged")
	}
	return nil
}

// runPass runs a layout or placement pass and then re-arms coalescing, also
// when the pass fails or panics.
func (w *Worker) runPass(pass func() error) error {
	defer w.coalesce()
	return pass()
}

func (w *Worker) coalesce() {
	w.state = coalescing
	w.send("coalesced", w.coalesced)
}

func (w *Worker) coalesced() error {
	switch w.state {
	case coalescing:
		w.state = idle
	case needLayout:
		return w.runPass(w.redoLayout)
	case needPlacement:
		return w.runPass(w.attemptPlacement)
	}
	return nil
}

func (w *Worker) hasPendingSymbolLayouts() bool {
	for _, l := range w.symbolLayouts {
		if l.State == symbol.Pending {
			return true
		}
	}
	return false
}
