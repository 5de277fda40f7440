package sqlite

import (
	"context"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const versionColumns = `id, artifact_id, hash, status, representation, message, created_at, committed_at`

func toNanos(ts time.Time) int64 {
	return ts.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func scanVersion(stmt *sqlite.Stmt) (*model.Version, error) {
	v := &model.Version{
		ID:             stmt.ColumnText(0),
		ArtifactID:     stmt.ColumnText(1),
		Status:         model.VersionStatus(stmt.ColumnText(3)),
		Representation: model.Representation(stmt.ColumnText(4)),
		Message:        stmt.ColumnText(5),
		CreatedAt:      fromNanos(stmt.ColumnInt64(6)),
	}
	if !stmt.ColumnIsNull(2) {
		if err := v.Hash.UnmarshalText([]byte(stmt.ColumnText(2))); err != nil {
			return nil, err
		}
	}
	if !stmt.ColumnIsNull(7) {
		v.CommittedAt = fromNanos(stmt.ColumnInt64(7))
	}
	return v, nil
}

// loadRelations fills in the parents and dependencies of versions
func loadRelations(conn *sqlite.Conn, v *model.Version) error {
	err := sqlitex.Execute(conn, `SELECT parent_id FROM version_parent WHERE child_id = ? ORDER BY position`, &sqlitex.ExecOptions{
		Args: []interface{}{v.ID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			v.Parents = append(v.Parents, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return err
	}
	return sqlitex.Execute(conn, `SELECT dependency_id, artifact_id FROM version_relation WHERE dependent_id = ? ORDER BY artifact_id`, &sqlitex.ExecOptions{
		Args: []interface{}{v.ID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			v.Dependencies = append(v.Dependencies, model.Dependency{
				VersionID:  stmt.ColumnText(0),
				ArtifactID: stmt.ColumnText(1),
			})
			return nil
		},
	})
}

func getVersion(conn *sqlite.Conn, id string) (*model.Version, error) {
	var v *model.Version
	err := sqlitex.Execute(conn, `SELECT `+versionColumns+` FROM version WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []interface{}{id},
		ResultFunc: func(stmt *sqlite.Stmt) (err error) {
			v, err = scanVersion(stmt)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, store.NotFound
	}
	return v, loadRelations(conn, v)
}

// CreateVersion persists a new version with its relations
func (s *Store) CreateVersion(ctx context.Context, v *model.Version) error {
	if v.ID == "" || v.ArtifactID == "" {
		return store.IDIsRequired
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		var hash, committedAt interface{}
		if !v.Hash.IsZero() {
			hash = v.Hash.String()
		}
		if !v.CommittedAt.IsZero() {
			committedAt = toNanos(v.CommittedAt)
		}
		if err := exec(conn,
			`INSERT INTO version(`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.ArtifactID, hash, string(v.Status), string(v.Representation), v.Message, toNanos(v.CreatedAt), committedAt,
		); err != nil {
			return err
		}
		for i, parent := range v.Parents {
			if err := exec(conn,
				`INSERT INTO version_parent(child_id, parent_id, position) VALUES (?, ?, ?)`,
				v.ID, parent, int64(i),
			); err != nil {
				return err
			}
		}
		for _, dep := range v.Dependencies {
			if err := exec(conn,
				`INSERT INTO version_relation(dependent_id, dependency_id, artifact_id) VALUES (?, ?, ?)`,
				v.ID, dep.VersionID, dep.ArtifactID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// CommitVersion marks a staging version committed
func (s *Store) CommitVersion(ctx context.Context, id string, hash model.Hash, committedAt time.Time) error {
	if id == "" {
		return store.IDIsRequired
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn,
			`UPDATE version SET status = ?, hash = ?, committed_at = ? WHERE id = ? AND status = ?`,
			string(model.Committed), hash.String(), toNanos(committedAt), id, string(model.Staging),
		); err != nil {
			return err
		}
		if conn.Changes() > 0 {
			return nil
		}
		if _, err := getVersion(conn, id); err != nil {
			return err
		}
		return store.NotStaging
	})
}

// GetVersion by id
func (s *Store) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	if id == "" {
		return nil, store.IDIsRequired
	}
	var v *model.Version
	err := s.read(ctx, func(conn *sqlite.Conn) (err error) {
		v, err = getVersion(conn, id)
		return err
	})
	return v, err
}

// ListVersions returns all the versions of an artifact, oldest first
func (s *Store) ListVersions(ctx context.Context, artifactID string) (model.Versions, error) {
	var versions model.Versions
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `SELECT `+versionColumns+` FROM version WHERE artifact_id = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{artifactID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				v, err := scanVersion(stmt)
				if err != nil {
					return err
				}
				versions = append(versions, v)
				return nil
			},
		})
		if err != nil {
			return err
		}
		for _, v := range versions {
			if err := loadRelations(conn, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(versions)
	return versions, nil
}

// FindVersions returns the ids of the versions starting with some prefix
func (s *Store) FindVersions(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT id FROM version WHERE substr(id, 1, ?) = ? ORDER BY id`, &sqlitex.ExecOptions{
			Args: []interface{}{int64(len(prefix)), prefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnText(0))
				return nil
			},
		})
	})
	return ids, err
}

// WriteProductionRecord persists the strategy chosen to produce a version
func (s *Store) WriteProductionRecord(ctx context.Context, record model.ProductionRecord) error {
	if record.VersionID == "" {
		return store.IDIsRequired
	}
	data, err := jsoniter.MarshalToString(record.Strategy)
	if err != nil {
		return err
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		return exec(conn,
			`INSERT INTO producer_version(version_id, strategy) VALUES (?, ?) ON CONFLICT(version_id) DO UPDATE SET strategy = excluded.strategy`,
			record.VersionID, data,
		)
	})
}

// GetProductionRecord returns the strategy used to produce a version
func (s *Store) GetProductionRecord(ctx context.Context, versionID string) (*model.ProductionRecord, error) {
	var record *model.ProductionRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT strategy FROM producer_version WHERE version_id = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{versionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = &model.ProductionRecord{VersionID: versionID}
				return jsoniter.UnmarshalFromString(stmt.ColumnText(0), &record.Strategy)
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, store.NotFound
	}
	return record, nil
}
