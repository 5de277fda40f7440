package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/oneconcern/heraclitus/pkg/cafs"
	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/dlogger"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/storage"
	"github.com/oneconcern/heraclitus/pkg/storage/localfs"
	"github.com/oneconcern/heraclitus/pkg/store"
	"github.com/oneconcern/heraclitus/pkg/store/instrumented"
	metalocalfs "github.com/oneconcern/heraclitus/pkg/store/localfs"
	"github.com/oneconcern/heraclitus/pkg/store/sqlite"
	"github.com/opentracing/opentracing-go"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// cliSession holds a session over the stores designated by the configuration
type cliSession struct {
	*core.Session
	closers []func() error
}

func (c *cliSession) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i]())
	}
	return err
}

func metadataStore(cfg *CLIConfig, l *zap.Logger) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Kind {
	case storeBadger, "":
		st = metalocalfs.New(cfg.Store.Path, metalocalfs.Logger(l))
	case storeSQLite:
		if err := afero.NewOsFs().MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
			return nil, err
		}
		st = sqlite.New(cfg.Store.Path, sqlite.Logger(l))
	default:
		return nil, fmt.Errorf("unsupported store %q: expected %s or %s", cfg.Store.Kind, storeBadger, storeSQLite)
	}
	if cfg.Trace {
		st = instrumented.New(opentracing.GlobalTracer(), st)
	}
	return st, nil
}

func payloadStore(cfg *CLIConfig, l *zap.Logger) (storage.Store, func() error, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.Payloads.Path, 0700); err != nil {
		return nil, nil, err
	}
	var (
		backend storage.Store
		closer  = func() error { return nil }
	)
	backend, err := localfs.New(afero.NewBasePathFs(fs, cfg.Payloads.Path))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Payloads.Compress {
		compressed, err := storage.Compress(backend)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = compressed, compressed.Close
	}
	if cfg.Trace {
		backend = storage.Instrument(opentracing.GlobalTracer(), l, backend)
	}
	return backend, closer, nil
}

// openSession opens the configured stores and loads the artifact graph, if any
func openSession(ctx context.Context, cfg *CLIConfig) (*cliSession, error) {
	l, err := dlogger.GetLogger(cfg.Log.Level, dlogger.Console())
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	c := &cliSession{closers: []func() error{func() error { _ = l.Sync(); return nil }}}

	st, err := metadataStore(cfg, l)
	if err != nil {
		return nil, err
	}
	if err = st.Initialize(); err != nil {
		return nil, fmt.Errorf("opening %s store at %q: %w", cfg.Store.Kind, cfg.Store.Path, err)
	}
	c.closers = append(c.closers, st.Close)

	backend, closer, err := payloadStore(cfg, l)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("opening payload store at %q: %w", cfg.Payloads.Path, err), c.Close())
	}
	c.closers = append(c.closers, closer)

	payloads, err := cafs.New(cafs.Backend(backend), cafs.Logger(l))
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}

	graphID := cfg.Graph
	if graphID == "" {
		if graphID, err = latestGraph(ctx, st); err != nil {
			return nil, multierr.Append(err, c.Close())
		}
	}
	opts := []core.SessionOption{core.Logger(l)}
	if graphID != "" {
		opts = append(opts, core.WithGraph(graphID))
	}

	s, err := core.NewSession(ctx, st, payloads, datatype.Default(), opts...)
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	c.Session = s
	return c, nil
}

// latestGraph returns the id of the latest written graph, or an empty string when the store holds none
func latestGraph(ctx context.Context, st store.Store) (string, error) {
	ids, err := st.ListGraphs(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	// ids are time-ordered
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

// withSession runs an action over a session, then closes the session
func withSession(action func(context.Context, *cliSession) error) error {
	ctx := context.Background()
	s, err := openSession(ctx, config)
	if err != nil {
		return err
	}
	return multierr.Append(action(ctx, s), s.Close())
}

// artifactByName finds an artifact of the session graph by name, or by id
func (c *cliSession) artifactByName(name string) (*model.Artifact, error) {
	g := c.Graph()
	if g == nil {
		return nil, fmt.Errorf("no artifact graph: apply one with \"hera graph apply\"")
	}
	if a, ok := g.ArtifactByName(name); ok {
		return a, nil
	}
	if a, ok := g.Artifact(name); ok {
		return a, nil
	}
	return nil, fmt.Errorf("unknown artifact %q", name)
}

// resolveAll resolves version specifiers to version ids
func (c *cliSession) resolveAll(ctx context.Context, specifiers []string) ([]string, error) {
	ids := make([]string, 0, len(specifiers))
	for _, spec := range specifiers {
		id, err := c.Resolve(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", spec, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
