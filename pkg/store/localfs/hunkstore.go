package localfs

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
)

func requireStaging(txn *badger.Txn, versionID string) error {
	var v model.Version
	if err := getValue(txn, versionKey(versionID), &v); err != nil {
		return err
	}
	if v.Status != model.Staging {
		return store.NotStaging
	}
	return nil
}

// PutHunk writes the hunk of a staging version for some partition, replacing any previous one
func (s *Store) PutHunk(_ context.Context, h *model.Hunk) error {
	if h.ID == "" || h.VersionID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, _ *deferred) error {
		if err := requireStaging(txn, h.VersionID); err != nil {
			return err
		}
		return setValue(txn, hunkKey(h.VersionID, h.Partition), h)
	})
}

// GetHunks returns the hunks of a version, ordered by partition
func (s *Store) GetHunks(_ context.Context, versionID string, partitions ...uint64) (model.Hunks, error) {
	var hunks model.Hunks
	err := s.view(func(txn *badger.Txn) error {
		if len(partitions) == 0 {
			return scan(txn, hunksPrefix(versionID), false, func(_, value []byte) error {
				var h model.Hunk
				if err := jsoniter.Unmarshal(value, &h); err != nil {
					return err
				}
				hunks = append(hunks, h)
				return nil
			})
		}

		for _, partition := range model.NewPartitions(partitions...) {
			var h model.Hunk
			err := getValue(txn, hunkKey(versionID, partition), &h)
			if err == store.NotFound {
				continue
			}
			if err != nil {
				return err
			}
			hunks = append(hunks, h)
		}
		return nil
	})
	return hunks, err
}

// PutPrecedence records that a partition of a staging version takes precedence from some ancestor
func (s *Store) PutPrecedence(_ context.Context, p model.HunkPrecedence) error {
	if p.VersionID == "" || p.PrecedentID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, refs *deferred) error {
		if err := requireStaging(txn, p.VersionID); err != nil {
			return err
		}
		refs.require(versionKey(p.PrecedentID))
		return setValue(txn, precedenceKey(p.VersionID, p.Partition), p)
	})
}

// GetPrecedences returns the precedences of a version, ordered by partition
func (s *Store) GetPrecedences(_ context.Context, versionID string) ([]model.HunkPrecedence, error) {
	var precedences []model.HunkPrecedence
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, precedencesPrefix(versionID), false, func(_, value []byte) error {
			var p model.HunkPrecedence
			if err := jsoniter.Unmarshal(value, &p); err != nil {
				return err
			}
			precedences = append(precedences, p)
			return nil
		})
	})
	return precedences, err
}
