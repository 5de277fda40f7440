package sqlite

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func validBranch(b model.Branch) error {
	if b.RefArtifactID == "" || b.Name == "" || b.VersionID == "" {
		return store.IDIsRequired
	}
	return nil
}

// CreateBranch creates a new branch
func (s *Store) CreateBranch(ctx context.Context, b model.Branch) error {
	if err := validBranch(b); err != nil {
		return err
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		return exec(conn,
			`INSERT INTO branch(ref_id, name, version_id, updated_at) VALUES (?, ?, ?, ?)`,
			b.RefArtifactID, b.Name, b.VersionID, toNanos(b.UpdatedAt),
		)
	})
}

// UpdateBranch moves an existing branch
func (s *Store) UpdateBranch(ctx context.Context, b model.Branch) error {
	if err := validBranch(b); err != nil {
		return err
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn,
			`UPDATE branch SET version_id = ?, updated_at = ? WHERE ref_id = ? AND name = ?`,
			b.VersionID, toNanos(b.UpdatedAt), b.RefArtifactID, b.Name,
		); err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return store.NotFound
		}
		return nil
	})
}

func scanBranches(conn *sqlite.Conn, query string, args ...interface{}) (model.Branches, error) {
	var branches model.Branches
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			branches = append(branches, model.Branch{
				RefArtifactID: stmt.ColumnText(0),
				Name:          stmt.ColumnText(1),
				VersionID:     stmt.ColumnText(2),
				UpdatedAt:     fromNanos(stmt.ColumnInt64(3)),
			})
			return nil
		},
	})
	return branches, err
}

// GetBranch of a ref artifact
func (s *Store) GetBranch(ctx context.Context, refArtifactID, name string) (*model.Branch, error) {
	var branches model.Branches
	err := s.read(ctx, func(conn *sqlite.Conn) (err error) {
		branches, err = scanBranches(conn,
			`SELECT ref_id, name, version_id, updated_at FROM branch WHERE ref_id = ? AND name = ?`,
			refArtifactID, name,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return nil, store.NotFound
	}
	return &branches[0], nil
}

// ListBranches of a ref artifact, by name
func (s *Store) ListBranches(ctx context.Context, refArtifactID string) (model.Branches, error) {
	var branches model.Branches
	err := s.read(ctx, func(conn *sqlite.Conn) (err error) {
		branches, err = scanBranches(conn,
			`SELECT ref_id, name, version_id, updated_at FROM branch WHERE ref_id = ? ORDER BY name`,
			refArtifactID,
		)
		return err
	})
	return branches, err
}
