package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func requireStaging(conn *sqlite.Conn, versionID string) error {
	var (
		status string
		found  bool
	)
	err := sqlitex.Execute(conn, `SELECT status FROM version WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []interface{}{versionID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			status = stmt.ColumnText(0)
			return nil
		},
	})
	switch {
	case err != nil:
		return err
	case !found:
		return store.NotFound
	case model.VersionStatus(status) != model.Staging:
		return store.NotStaging
	default:
		return nil
	}
}

// PutHunk writes the hunk of a staging version for some partition, replacing any previous one
func (s *Store) PutHunk(ctx context.Context, h *model.Hunk) error {
	if h.ID == "" || h.VersionID == "" {
		return store.IDIsRequired
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		if err := requireStaging(conn, h.VersionID); err != nil {
			return err
		}
		return exec(conn, `
INSERT OR REPLACE INTO hunk(version_id, partition_index, id, hash, representation, completion, payload, size)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			h.VersionID, int64(h.Partition), h.ID, h.Hash.String(), string(h.Representation), string(h.Completion), h.PayloadKey.String(), h.Size,
		)
	})
}

// GetHunks returns the hunks of a version, ordered by partition
func (s *Store) GetHunks(ctx context.Context, versionID string, partitions ...uint64) (model.Hunks, error) {
	query := `SELECT id, hash, partition_index, representation, completion, payload, size FROM hunk WHERE version_id = ?`
	args := []interface{}{versionID}
	if len(partitions) > 0 {
		placeholders := make([]string, 0, len(partitions))
		for _, p := range partitions {
			placeholders = append(placeholders, "?")
			args = append(args, int64(p))
		}
		query += ` AND partition_index IN (` + strings.Join(placeholders, ", ") + `)`
	}

	var hunks model.Hunks
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				h := model.Hunk{
					ID:             stmt.ColumnText(0),
					VersionID:      versionID,
					Partition:      uint64(stmt.ColumnInt64(2)),
					Representation: model.Representation(stmt.ColumnText(3)),
					Completion:     model.Completion(stmt.ColumnText(4)),
					Size:           stmt.ColumnInt64(6),
				}
				if err := h.Hash.UnmarshalText([]byte(stmt.ColumnText(1))); err != nil {
					return err
				}
				if err := h.PayloadKey.UnmarshalText([]byte(stmt.ColumnText(5))); err != nil {
					return err
				}
				hunks = append(hunks, h)
				return nil
			},
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(hunks)
	return hunks, nil
}

// PutPrecedence records that a partition of a staging version takes precedence from some ancestor
func (s *Store) PutPrecedence(ctx context.Context, p model.HunkPrecedence) error {
	if p.VersionID == "" || p.PrecedentID == "" {
		return store.IDIsRequired
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		if err := requireStaging(conn, p.VersionID); err != nil {
			return err
		}
		return exec(conn,
			`INSERT OR REPLACE INTO hunk_precedence(version_id, partition_index, precedent_id) VALUES (?, ?, ?)`,
			p.VersionID, int64(p.Partition), p.PrecedentID,
		)
	})
}

// GetPrecedences returns the precedences of a version, ordered by partition
func (s *Store) GetPrecedences(ctx context.Context, versionID string) ([]model.HunkPrecedence, error) {
	var precedences []model.HunkPrecedence
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT partition_index, precedent_id FROM hunk_precedence WHERE version_id = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{versionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				precedences = append(precedences, model.HunkPrecedence{
					VersionID:   versionID,
					Partition:   uint64(stmt.ColumnInt64(0)),
					PrecedentID: stmt.ColumnText(1),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(precedences, func(i, j int) bool { return precedences[i].Partition < precedences[j].Partition })
	return precedences, nil
}
