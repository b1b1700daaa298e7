package level

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/DrSkyle/levelgraph/pkg/graph"
	"github.com/DrSkyle/levelgraph/pkg/storage"
	"github.com/DrSkyle/levelgraph/pkg/telemetry"
)

// staggerStep is the offset between consecutive auto-placed nodes.
const staggerStep = 20

// Options configures Load and Init.
type Options struct {
	// Start is the id of the start node. Defaults to DefaultStart.
	Start string
	// Workers bounds concurrent segment reads. Defaults to 4.
	Workers int
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Start == "" {
		o.Start = DefaultStart
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Workspace is a loaded level directory: the graph plus the presentation
// data that lives beside it.
type Workspace struct {
	Store     *graph.Store
	Start     string
	Scale     float64
	Positions map[string]Position
	// Levels holds the parsed segments of each level. The start node has none.
	Levels map[string][]string

	files    map[string]string
	staggers int
}

// NewWorkspace returns an empty workspace.
func NewWorkspace(start string) *Workspace {
	if start == "" {
		start = DefaultStart
	}
	return &Workspace{
		Store:     graph.NewStore(),
		Start:     start,
		Scale:     DefaultScale,
		Positions: make(map[string]Position),
		Levels:    make(map[string][]string),
		files:     make(map[string]string),
	}
}

// Load reads a level directory. Document entries without a level file are
// skipped, level files without an entry become unlinked nodes, and the start
// node is created if missing.
func Load(ctx context.Context, bs storage.BlobStore, opts Options) (*Workspace, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	ctx, span := telemetry.Tracer("levelgraph/level").Start(ctx, "level.Load")
	defer span.End()

	ws, err := load(ctx, bs, opts, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("levels.nodes", ws.Store.NodeCount()),
		attribute.Int("levels.edges", ws.Store.EdgeCount()),
	)
	return ws, nil
}

func load(ctx context.Context, bs storage.BlobStore, opts Options, log *slog.Logger) (*Workspace, error) {
	keys, err := bs.List(ctx, SegmentsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}

	ws := NewWorkspace(opts.Start)
	for _, key := range keys {
		id := LevelID(key)
		if id == "" {
			log.Debug("Ignoring file", "key", key)
			continue
		}
		if prev, dup := ws.files[id]; dup {
			log.Warn("Duplicate level file", "id", id, "kept", prev, "ignored", key)
			continue
		}
		ws.files[id] = key
	}

	doc, err := readDocument(ctx, bs, opts.Start, log)
	if err != nil {
		return nil, err
	}
	ws.Scale = doc.Scale

	ids := make([]string, 0, len(doc.Graph))
	for id := range doc.Graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, ok := ws.files[id]; !ok && id != opts.Start {
			log.Warn("Level file does not exist", "id", id)
			continue
		}
		entry := doc.Graph[id]
		err := ws.Store.AddDefaultNode(id,
			graph.WithReward(entry.Reward),
			graph.WithUtility(entry.Utility),
			graph.WithTerminal(entry.Terminal),
		)
		if err != nil {
			return nil, fmt.Errorf("invalid entry in %s: %w", DocumentKey, err)
		}
		ws.Positions[id] = Position{X: entry.X, Y: entry.Y}
	}

	for _, id := range ids {
		if !ws.Store.HasNode(id) {
			continue
		}
		entry := doc.Graph[id]
		for _, next := range entry.Neighbors {
			switch {
			case next == id:
				log.Warn("Dropping self link", "id", id)
			case !ws.Store.HasNode(next):
				log.Warn("Dropping link to missing level", "from", id, "to", next)
			case ws.Store.HasEdge(id, next):
				log.Warn("Dropping duplicate link", "from", id, "to", next)
			default:
				outcomes := ws.keepOutcomes(id, next, entry.Outcomes[next], log)
				if err := ws.Store.AddDefaultEdge(id, next, outcomes...); err != nil {
					return nil, fmt.Errorf("invalid link in %s: %w", DocumentKey, err)
				}
			}
		}
	}

	var fresh []string
	for id := range ws.files {
		if !ws.Store.HasNode(id) {
			fresh = append(fresh, id)
		}
	}
	sort.Strings(fresh)
	for _, id := range fresh {
		if err := ws.Store.AddDefaultNode(id, graph.WithReward(0)); err != nil {
			return nil, err
		}
		ws.Positions[id] = ws.nextPosition()
		log.Info("Added new level", "id", id)
	}

	if !ws.Store.HasNode(opts.Start) {
		if err := ws.Store.AddDefaultNode(opts.Start, graph.WithReward(0)); err != nil {
			return nil, err
		}
		ws.Positions[opts.Start] = StartPosition
	}

	if err := ws.loadSegments(ctx, bs, opts.Workers); err != nil {
		return nil, err
	}
	log.Debug("Loaded levels", "nodes", ws.Store.NodeCount(), "edges", ws.Store.EdgeCount())
	return ws, nil
}

// keepOutcomes converts a stored distribution, dropping outcomes that name
// levels which were not loaded.
func (ws *Workspace) keepOutcomes(src, tgt string, docs []OutcomeDoc, log *slog.Logger) []graph.Outcome {
	var out []graph.Outcome
	for _, o := range docs {
		if !ws.Store.HasNode(o.Node) {
			log.Warn("Dropping outcome naming missing level", "from", src, "to", tgt, "outcome", o.Node)
			continue
		}
		out = append(out, graph.Outcome{Node: o.Node, Weight: o.Weight})
	}
	return out
}

func readDocument(ctx context.Context, bs storage.BlobStore, start string, log *slog.Logger) (*Document, error) {
	data, err := bs.Get(ctx, DocumentKey)
	if errors.Is(err, storage.ErrNotExist) {
		log.Info("No graph document found, starting fresh", "key", DocumentKey)
		return DefaultDocument(start), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DocumentKey, err)
	}
	return DecodeDocument(data)
}

// loadSegments reads the segment file of every non-start node. Reads run
// concurrently; results land in per-index slots and are copied into the
// workspace after all reads finish.
func (ws *Workspace) loadSegments(ctx context.Context, bs storage.BlobStore, workers int) error {
	var ids []string
	for _, id := range ws.Store.NodeIDs() {
		if _, ok := ws.files[id]; ok && id != ws.Start {
			ids = append(ids, id)
		}
	}

	results := make([][]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			_, span := telemetry.Tracer("levelgraph/level").Start(gctx, "level.ReadSegments",
				trace.WithAttributes(attribute.String("level.id", id)))
			defer span.End()

			data, err := bs.Get(gctx, ws.files[id])
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to read level %q: %w", id, err)
			}
			segments, err := ParseSegments(bytes.NewReader(data))
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to parse level %q: %w", id, err)
			}
			results[i] = segments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, id := range ids {
		ws.Levels[id] = results[i]
	}
	return nil
}

func (ws *Workspace) nextPosition() Position {
	p := Position{X: float64(ws.staggers * staggerStep), Y: float64(ws.staggers * staggerStep)}
	ws.staggers++
	return p
}

// Document builds the graph.json document: neighbors sorted, depth measured
// from the start node and omitted for nodes it cannot reach.
func (ws *Workspace) Document() (*Document, error) {
	depth := map[string]int{}
	if ws.Store.HasNode(ws.Start) {
		var err error
		if depth, err = graph.Depths(ws.Store, ws.Start); err != nil {
			return nil, err
		}
	}

	doc := &Document{
		Scale: ws.Scale,
		Graph: make(map[string]NodeDoc, ws.Store.NodeCount()),
	}
	ws.Store.ForEachNode(func(n *graph.Node) {
		pos := ws.Positions[n.ID]
		entry := NodeDoc{
			X:         pos.X,
			Y:         pos.Y,
			Reward:    n.Reward,
			Neighbors: n.Neighbors.Sorted(),
			Terminal:  n.Terminal,
			Utility:   n.Utility,
		}
		if d, ok := depth[n.ID]; ok {
			entry.Depth = &d
		}
		doc.Graph[n.ID] = entry
	})
	ws.Store.ForEachEdge(func(e *graph.Edge) {
		if len(e.Probability) == 0 {
			return
		}
		entry := doc.Graph[e.Source]
		if entry.Outcomes == nil {
			entry.Outcomes = make(map[string][]OutcomeDoc)
		}
		for _, o := range e.Probability {
			entry.Outcomes[e.Target] = append(entry.Outcomes[e.Target], OutcomeDoc{Node: o.Node, Weight: o.Weight})
		}
		doc.Graph[e.Source] = entry
	})
	return doc, nil
}

// Save writes the workspace document to graph.json.
func Save(ctx context.Context, bs storage.BlobStore, ws *Workspace) error {
	ctx, span := telemetry.Tracer("levelgraph/level").Start(ctx, "level.Save")
	defer span.End()

	doc, err := ws.Document()
	if err != nil {
		return err
	}
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", DocumentKey, err)
	}
	if err := bs.Put(ctx, DocumentKey, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write %s: %w", DocumentKey, err)
	}
	return nil
}

// Init writes the default document unless one already exists. It reports
// whether a document was created.
func Init(ctx context.Context, bs storage.BlobStore, opts Options) (bool, error) {
	opts = opts.withDefaults()
	_, err := bs.Get(ctx, DocumentKey)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", DocumentKey, err)
	}

	data, err := DefaultDocument(opts.Start).Encode()
	if err != nil {
		return false, err
	}
	if err := bs.Put(ctx, DocumentKey, data); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", DocumentKey, err)
	}
	opts.Logger.Info("Created graph document", "key", DocumentKey)
	return true, nil
}

// AddLevel creates a node for id with the given reward and an empty level
// file if none exists yet.
func (ws *Workspace) AddLevel(ctx context.Context, bs storage.BlobStore, id string, reward float64) error {
	if err := ValidateLevelID(id); err != nil {
		return err
	}
	if ws.Store.HasNode(id) {
		return fmt.Errorf("%w: node %q", graph.ErrDuplicate, id)
	}
	if id != ws.Start {
		if err := ws.ensureFile(ctx, bs, id); err != nil {
			return err
		}
		if _, ok := ws.Levels[id]; !ok {
			ws.Levels[id] = []string{""}
		}
	}
	if err := ws.Store.AddDefaultNode(id, graph.WithReward(reward)); err != nil {
		return err
	}
	ws.Positions[id] = ws.nextPosition()
	return nil
}

// RemoveLevel removes id from the graph. With purge set the level file is
// deleted as well; otherwise the level comes back unlinked on the next Load.
func (ws *Workspace) RemoveLevel(ctx context.Context, bs storage.BlobStore, id string, purge bool) error {
	if id == ws.Start {
		return fmt.Errorf("%w: cannot remove start node %q", graph.ErrInvalidArgument, id)
	}
	if err := ws.Store.RemoveNode(id); err != nil {
		return err
	}
	delete(ws.Positions, id)
	delete(ws.Levels, id)

	if key, ok := ws.files[id]; ok && purge {
		if err := bs.Delete(ctx, key); err != nil {
			return err
		}
		delete(ws.files, id)
	}
	return nil
}

// Preview returns a random segment of level id, or "" for levels without
// segments. A nil r uses the global source.
func (ws *Workspace) Preview(id string, r *rand.Rand) (string, error) {
	if !ws.Store.HasNode(id) {
		return "", fmt.Errorf("%w: node %q", graph.ErrNotFound, id)
	}
	return pick(ws.Levels[id], r), nil
}

// EnsureLevelFiles creates an empty level file for every non-start node that
// has none, so the next Load keeps them.
func (ws *Workspace) EnsureLevelFiles(ctx context.Context, bs storage.BlobStore) error {
	for _, id := range ws.Store.NodeIDs() {
		if id == ws.Start {
			continue
		}
		if err := ws.ensureFile(ctx, bs, id); err != nil {
			return err
		}
	}
	return nil
}

func (ws *Workspace) ensureFile(ctx context.Context, bs storage.BlobStore, id string) error {
	if _, ok := ws.files[id]; ok {
		return nil
	}
	key := SegmentKey(id)
	_, err := bs.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotExist):
		if err := bs.Put(ctx, key, nil); err != nil {
			return fmt.Errorf("failed to create level file: %w", err)
		}
	case err != nil:
		return err
	}
	ws.files[id] = key
	return nil
}
