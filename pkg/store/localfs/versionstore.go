package localfs

import (
	"context"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
)

// CreateVersion persists a new version with its relations
func (s *Store) CreateVersion(_ context.Context, v *model.Version) error {
	if v.ID == "" || v.ArtifactID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, refs *deferred) error {
		found, err := exists(txn, versionKey(v.ID))
		if err != nil {
			return err
		}
		if found {
			return store.AlreadyExists
		}
		refs.require(artifactKey(v.ArtifactID))
		for _, parent := range v.Parents {
			refs.require(versionKey(parent))
		}
		for _, dep := range v.Dependencies {
			refs.require(versionKey(dep.VersionID))
			refs.require(artifactKey(dep.ArtifactID))
		}
		if err := setValue(txn, versionKey(v.ID), v); err != nil {
			return err
		}
		return txn.Set(artifactVersionKey(v.ArtifactID, v.ID), []byte{})
	})
}

// CommitVersion marks a staging version committed
func (s *Store) CommitVersion(_ context.Context, id string, hash model.Hash, committedAt time.Time) error {
	if id == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, _ *deferred) error {
		var v model.Version
		if err := getValue(txn, versionKey(id), &v); err != nil {
			return err
		}
		if v.Status != model.Staging {
			return store.NotStaging
		}
		v.Status = model.Committed
		v.Hash = hash
		v.CommittedAt = committedAt
		return setValue(txn, versionKey(id), &v)
	})
}

// GetVersion by id
func (s *Store) GetVersion(_ context.Context, id string) (*model.Version, error) {
	if id == "" {
		return nil, store.IDIsRequired
	}
	var v model.Version
	if err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, versionKey(id), &v)
	}); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns all the versions of an artifact, oldest first
func (s *Store) ListVersions(_ context.Context, artifactID string) (model.Versions, error) {
	var versions model.Versions
	err := s.view(func(txn *badger.Txn) error {
		pref := artifactVersionsPrefix(artifactID)
		return scan(txn, pref, true, func(key, _ []byte) error {
			var v model.Version
			if err := getValue(txn, versionKey(string(key[len(pref):])), &v); err != nil {
				return err
			}
			versions = append(versions, &v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(versions)
	return versions, nil
}

// FindVersions returns the ids of the versions starting with some prefix
func (s *Store) FindVersions(_ context.Context, prefix string) ([]string, error) {
	var ids []string
	err := s.view(func(txn *badger.Txn) error {
		pref := versionKey(prefix)
		return scan(txn, pref, true, func(key, _ []byte) error {
			ids = append(ids, string(key[len(versionPref):]))
			return nil
		})
	})
	return ids, err
}

// WriteProductionRecord persists the strategy chosen to produce a version
func (s *Store) WriteProductionRecord(_ context.Context, record model.ProductionRecord) error {
	if record.VersionID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, refs *deferred) error {
		refs.require(versionKey(record.VersionID))
		return setValue(txn, productionKey(record.VersionID), record)
	})
}

// GetProductionRecord returns the strategy used to produce a version
func (s *Store) GetProductionRecord(_ context.Context, versionID string) (*model.ProductionRecord, error) {
	var record model.ProductionRecord
	if err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, productionKey(versionID), &record)
	}); err != nil {
		return nil, err
	}
	return &record, nil
}
