package localfs

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
)

// CreateBranch creates a new branch
func (s *Store) CreateBranch(_ context.Context, b model.Branch) error {
	return s.putBranch(b, true)
}

// UpdateBranch moves an existing branch
func (s *Store) UpdateBranch(_ context.Context, b model.Branch) error {
	return s.putBranch(b, false)
}

func (s *Store) putBranch(b model.Branch, create bool) error {
	if b.RefArtifactID == "" || b.Name == "" || b.VersionID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, refs *deferred) error {
		found, err := exists(txn, branchKey(b.RefArtifactID, b.Name))
		if err != nil {
			return err
		}
		if create && found {
			return store.AlreadyExists
		}
		if !create && !found {
			return store.NotFound
		}
		refs.require(artifactKey(b.RefArtifactID))
		refs.require(versionKey(b.VersionID))
		return setValue(txn, branchKey(b.RefArtifactID, b.Name), b)
	})
}

// GetBranch of a ref artifact
func (s *Store) GetBranch(_ context.Context, refArtifactID, name string) (*model.Branch, error) {
	var b model.Branch
	if err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, branchKey(refArtifactID, name), &b)
	}); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBranches of a ref artifact, by name
func (s *Store) ListBranches(_ context.Context, refArtifactID string) (model.Branches, error) {
	var branches model.Branches
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, branchesPrefix(refArtifactID), false, func(_, value []byte) error {
			var b model.Branch
			if err := jsoniter.Unmarshal(value, &b); err != nil {
				return err
			}
			branches = append(branches, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(branches)
	return branches, nil
}
