// Package instrumented decorates a metadata store with opentracing spans.
package instrumented

import (
	"context"
	"strconv"
	"time"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
)

// New traced store
func New(tr opentracing.Tracer, w store.Store) store.Store {
	if tr == nil {
		tr = opentracing.NoopTracer{}
	}
	return &instrumentedStore{
		tr: tr,
		w:  w,
	}
}

type instrumentedStore struct {
	tr opentracing.Tracer
	w  store.Store
}

func (i *instrumentedStore) Initialize() error { return i.w.Initialize() }
func (i *instrumentedStore) Close() error      { return i.w.Close() }

func (i *instrumentedStore) CreateGraph(ctx context.Context, desc model.ArtifactGraphDescriptor) (err error) {
	traced(ctx, i.tr, "create graph "+desc.ID, func(ctx context.Context) error {
		err = i.w.CreateGraph(ctx, desc)
		return err
	})
	return
}
func (i *instrumentedStore) GetGraph(ctx context.Context, id string) (desc *model.ArtifactGraphDescriptor, err error) {
	traced(ctx, i.tr, "get graph "+id, func(ctx context.Context) error {
		desc, err = i.w.GetGraph(ctx, id)
		return err
	})
	return
}
func (i *instrumentedStore) ListGraphs(ctx context.Context) (result []string, err error) {
	traced(ctx, i.tr, "list graphs", func(ctx context.Context) error {
		result, err = i.w.ListGraphs(ctx)
		return err
	})
	return
}
func (i *instrumentedStore) WriteProductionPolicies(ctx context.Context, artifactID string, policies []model.PolicyKind) (err error) {
	traced(ctx, i.tr, "write policies "+artifactID, func(ctx context.Context) error {
		err = i.w.WriteProductionPolicies(ctx, artifactID, policies)
		return err
	})
	return
}
func (i *instrumentedStore) GetProductionPolicies(ctx context.Context, artifactID string) (result []model.PolicyKind, err error) {
	traced(ctx, i.tr, "get policies "+artifactID, func(ctx context.Context) error {
		result, err = i.w.GetProductionPolicies(ctx, artifactID)
		return err
	})
	return
}

func (i *instrumentedStore) CreateVersion(ctx context.Context, v *model.Version) (err error) {
	traced(ctx, i.tr, "create version "+v.ID, func(ctx context.Context) error {
		err = i.w.CreateVersion(ctx, v)
		return err
	})
	return
}
func (i *instrumentedStore) CommitVersion(ctx context.Context, id string, hash model.Hash, committedAt time.Time) (err error) {
	traced(ctx, i.tr, "commit version "+id, func(ctx context.Context) error {
		err = i.w.CommitVersion(ctx, id, hash, committedAt)
		return err
	})
	return
}
func (i *instrumentedStore) GetVersion(ctx context.Context, id string) (v *model.Version, err error) {
	traced(ctx, i.tr, "get version "+id, func(ctx context.Context) error {
		v, err = i.w.GetVersion(ctx, id)
		return err
	})
	return
}
func (i *instrumentedStore) ListVersions(ctx context.Context, artifactID string) (result model.Versions, err error) {
	traced(ctx, i.tr, "list versions "+artifactID, func(ctx context.Context) error {
		result, err = i.w.ListVersions(ctx, artifactID)
		return err
	})
	return
}
func (i *instrumentedStore) FindVersions(ctx context.Context, prefix string) (result []string, err error) {
	traced(ctx, i.tr, "find versions "+prefix, func(ctx context.Context) error {
		result, err = i.w.FindVersions(ctx, prefix)
		return err
	})
	return
}
func (i *instrumentedStore) WriteProductionRecord(ctx context.Context, record model.ProductionRecord) (err error) {
	traced(ctx, i.tr, "write production "+record.VersionID, func(ctx context.Context) error {
		err = i.w.WriteProductionRecord(ctx, record)
		return err
	})
	return
}
func (i *instrumentedStore) GetProductionRecord(ctx context.Context, versionID string) (record *model.ProductionRecord, err error) {
	traced(ctx, i.tr, "get production "+versionID, func(ctx context.Context) error {
		record, err = i.w.GetProductionRecord(ctx, versionID)
		return err
	})
	return
}

func (i *instrumentedStore) PutHunk(ctx context.Context, h *model.Hunk) (err error) {
	traced(ctx, i.tr, "put hunk "+h.VersionID+"/"+strconv.FormatUint(h.Partition, 10), func(ctx context.Context) error {
		err = i.w.PutHunk(ctx, h)
		return err
	})
	return
}
func (i *instrumentedStore) GetHunks(ctx context.Context, versionID string, partitions ...uint64) (result model.Hunks, err error) {
	traced(ctx, i.tr, "get hunks "+versionID, func(ctx context.Context) error {
		result, err = i.w.GetHunks(ctx, versionID, partitions...)
		return err
	})
	return
}
func (i *instrumentedStore) PutPrecedence(ctx context.Context, p model.HunkPrecedence) (err error) {
	traced(ctx, i.tr, "put precedence "+p.VersionID+"/"+strconv.FormatUint(p.Partition, 10), func(ctx context.Context) error {
		err = i.w.PutPrecedence(ctx, p)
		return err
	})
	return
}
func (i *instrumentedStore) GetPrecedences(ctx context.Context, versionID string) (result []model.HunkPrecedence, err error) {
	traced(ctx, i.tr, "get precedences "+versionID, func(ctx context.Context) error {
		result, err = i.w.GetPrecedences(ctx, versionID)
		return err
	})
	return
}

func (i *instrumentedStore) CreateBranch(ctx context.Context, b model.Branch) (err error) {
	traced(ctx, i.tr, "create branch "+b.Name, func(ctx context.Context) error {
		err = i.w.CreateBranch(ctx, b)
		return err
	})
	return
}
func (i *instrumentedStore) UpdateBranch(ctx context.Context, b model.Branch) (err error) {
	traced(ctx, i.tr, "update branch "+b.Name, func(ctx context.Context) error {
		err = i.w.UpdateBranch(ctx, b)
		return err
	})
	return
}
func (i *instrumentedStore) GetBranch(ctx context.Context, refArtifactID, name string) (b *model.Branch, err error) {
	traced(ctx, i.tr, "get branch "+name, func(ctx context.Context) error {
		b, err = i.w.GetBranch(ctx, refArtifactID, name)
		return err
	})
	return
}
func (i *instrumentedStore) ListBranches(ctx context.Context, refArtifactID string) (result model.Branches, err error) {
	traced(ctx, i.tr, "list branches "+refArtifactID, func(ctx context.Context) error {
		result, err = i.w.ListBranches(ctx, refArtifactID)
		return err
	})
	return
}

func traced(ctx context.Context, tr opentracing.Tracer, name string, action func(context.Context) error) {
	parent := opentracing.SpanFromContext(ctx)
	var opts []opentracing.StartSpanOption
	if parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := tr.StartSpan(name, opts...)
	defer span.Finish()

	if err := action(opentracing.ContextWithSpan(ctx, span)); err != nil {
		ext.Error.Set(span, true)
		span.LogFields(otlog.Error(err))
	}
}
