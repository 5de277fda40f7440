package sqlite

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// CreateGraph persists a graph descriptor
func (s *Store) CreateGraph(ctx context.Context, desc model.ArtifactGraphDescriptor) error {
	if desc.ID == "" {
		return store.IDIsRequired
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `INSERT INTO artifact_graph(id, hash) VALUES (?, ?)`, desc.ID, desc.Hash.String()); err != nil {
			return err
		}
		for i, a := range desc.Artifacts {
			if a.ID == "" {
				return store.IDIsRequired
			}
			var params interface{}
			if len(a.Params) > 0 {
				data, err := jsoniter.MarshalToString(a.Params)
				if err != nil {
					return err
				}
				params = data
			}
			if err := exec(conn,
				`INSERT INTO artifact(id, graph_id, position, hash, kind, name, self_partitioning, params) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, desc.ID, int64(i), a.Hash.String(), string(a.Kind), a.Name, boolToInt(a.SelfPartitioning), params,
			); err != nil {
				return err
			}
			if a.IsProducer() {
				if err := writePolicies(conn, a.ID, a.Policies); err != nil {
					return err
				}
			}
		}
		for i, e := range desc.Edges {
			if err := exec(conn,
				`INSERT INTO artifact_edge(graph_id, position, source_id, dependent_id, kind, name) VALUES (?, ?, ?, ?, ?, ?)`,
				desc.ID, int64(i), e.Source, e.Dependent, string(e.Kind), e.Name,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func writePolicies(conn *sqlite.Conn, artifactID string, policies []model.PolicyKind) error {
	data, err := jsoniter.MarshalToString(policies)
	if err != nil {
		return err
	}
	return exec(conn,
		`INSERT INTO producer_artifact(id, policies) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET policies = excluded.policies`,
		artifactID, data,
	)
}

// GetGraph loads a graph descriptor, with the current production policies of its producers
func (s *Store) GetGraph(ctx context.Context, id string) (*model.ArtifactGraphDescriptor, error) {
	if id == "" {
		return nil, store.IDIsRequired
	}
	var (
		desc  model.ArtifactGraphDescriptor
		found bool
	)
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `SELECT id, hash FROM artifact_graph WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				desc.ID = stmt.ColumnText(0)
				return desc.Hash.UnmarshalText([]byte(stmt.ColumnText(1)))
			},
		})
		if err != nil || !found {
			return err
		}

		err = sqlitex.Execute(conn, `
SELECT a.id, a.hash, a.kind, a.name, a.self_partitioning, a.params, p.policies
FROM artifact a LEFT JOIN producer_artifact p ON p.id = a.id
WHERE a.graph_id = ?
ORDER BY a.position`, &sqlitex.ExecOptions{
			Args: []interface{}{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				a := model.Artifact{
					ID:               stmt.ColumnText(0),
					Kind:             model.Kind(stmt.ColumnText(2)),
					Name:             stmt.ColumnText(3),
					SelfPartitioning: stmt.ColumnInt64(4) != 0,
				}
				if err := a.Hash.UnmarshalText([]byte(stmt.ColumnText(1))); err != nil {
					return err
				}
				if !stmt.ColumnIsNull(5) {
					if err := jsoniter.UnmarshalFromString(stmt.ColumnText(5), &a.Params); err != nil {
						return err
					}
				}
				if !stmt.ColumnIsNull(6) {
					if err := jsoniter.UnmarshalFromString(stmt.ColumnText(6), &a.Policies); err != nil {
						return err
					}
				}
				desc.Artifacts = append(desc.Artifacts, a)
				return nil
			},
		})
		if err != nil {
			return err
		}

		return sqlitex.Execute(conn, `
SELECT source_id, dependent_id, kind, name FROM artifact_edge WHERE graph_id = ? ORDER BY position`, &sqlitex.ExecOptions{
			Args: []interface{}{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				desc.Edges = append(desc.Edges, model.ArtifactEdge{
					Source:    stmt.ColumnText(0),
					Dependent: stmt.ColumnText(1),
					Kind:      model.EdgeKind(stmt.ColumnText(2)),
					Name:      stmt.ColumnText(3),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.NotFound
	}
	return &desc, nil
}

// ListGraphs returns the ids of all persisted graphs
func (s *Store) ListGraphs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT id FROM artifact_graph ORDER BY id`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnText(0))
				return nil
			},
		})
	})
	return ids, err
}

// WriteProductionPolicies replaces the production policies of a producer artifact
func (s *Store) WriteProductionPolicies(ctx context.Context, artifactID string, policies []model.PolicyKind) error {
	if artifactID == "" {
		return store.IDIsRequired
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		return writePolicies(conn, artifactID, policies)
	})
}

// GetProductionPolicies returns the production policies of a producer artifact
func (s *Store) GetProductionPolicies(ctx context.Context, artifactID string) ([]model.PolicyKind, error) {
	var (
		policies []model.PolicyKind
		found    bool
	)
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT policies FROM producer_artifact WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{artifactID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				return jsoniter.UnmarshalFromString(stmt.ColumnText(0), &policies)
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.NotFound
	}
	return policies, nil
}
