package localfs

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/oneconcern/heraclitus/pkg/store"
)

// graphRecord is the persisted header of a graph: artifacts are stored under their own keys
type graphRecord struct {
	ID        string               `json:"id"`
	Hash      model.Hash           `json:"hash"`
	Artifacts []string             `json:"artifacts"`
	Edges     []model.ArtifactEdge `json:"edges"`
}

// CreateGraph persists a graph descriptor
func (s *Store) CreateGraph(_ context.Context, desc model.ArtifactGraphDescriptor) error {
	if desc.ID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, refs *deferred) error {
		found, err := exists(txn, graphKey(desc.ID))
		if err != nil {
			return err
		}
		if found {
			return store.AlreadyExists
		}

		record := graphRecord{
			ID:        desc.ID,
			Hash:      desc.Hash,
			Artifacts: make([]string, 0, len(desc.Artifacts)),
			Edges:     desc.Edges,
		}
		for _, artifact := range desc.Artifacts {
			if artifact.ID == "" {
				return store.IDIsRequired
			}
			found, err := exists(txn, artifactKey(artifact.ID))
			if err != nil {
				return err
			}
			if found {
				return store.AlreadyExists
			}
			policies := artifact.Policies
			artifact.Policies = nil
			if err := setValue(txn, artifactKey(artifact.ID), artifact); err != nil {
				return err
			}
			if artifact.IsProducer() {
				if err := setValue(txn, policyKey(artifact.ID), policies); err != nil {
					return err
				}
			}
			record.Artifacts = append(record.Artifacts, artifact.ID)
		}
		for _, edge := range desc.Edges {
			refs.require(artifactKey(edge.Source))
			refs.require(artifactKey(edge.Dependent))
		}
		return setValue(txn, graphKey(desc.ID), record)
	})
}

// GetGraph loads a graph descriptor, with the current production policies of its producers
func (s *Store) GetGraph(_ context.Context, id string) (*model.ArtifactGraphDescriptor, error) {
	if id == "" {
		return nil, store.IDIsRequired
	}
	var desc model.ArtifactGraphDescriptor
	err := s.view(func(txn *badger.Txn) error {
		var record graphRecord
		if err := getValue(txn, graphKey(id), &record); err != nil {
			return err
		}
		desc.ID = record.ID
		desc.Hash = record.Hash
		desc.Edges = record.Edges
		desc.Artifacts = make([]model.Artifact, 0, len(record.Artifacts))
		for _, artifactID := range record.Artifacts {
			var artifact model.Artifact
			if err := getValue(txn, artifactKey(artifactID), &artifact); err != nil {
				return err
			}
			if artifact.IsProducer() {
				if err := getValue(txn, policyKey(artifactID), &artifact.Policies); err != nil && err != store.NotFound {
					return err
				}
			}
			desc.Artifacts = append(desc.Artifacts, artifact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

// ListGraphs returns the ids of all persisted graphs
func (s *Store) ListGraphs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.view(func(txn *badger.Txn) error {
		pref := graphPref[:]
		return scan(txn, pref, true, func(key, _ []byte) error {
			ids = append(ids, string(key[len(pref):]))
			return nil
		})
	})
	return ids, err
}

// WriteProductionPolicies replaces the production policies of a producer artifact
func (s *Store) WriteProductionPolicies(_ context.Context, artifactID string, policies []model.PolicyKind) error {
	if artifactID == "" {
		return store.IDIsRequired
	}
	return s.update(func(txn *badger.Txn, refs *deferred) error {
		refs.require(artifactKey(artifactID))
		return setValue(txn, policyKey(artifactID), policies)
	})
}

// GetProductionPolicies returns the production policies of a producer artifact
func (s *Store) GetProductionPolicies(_ context.Context, artifactID string) ([]model.PolicyKind, error) {
	var policies []model.PolicyKind
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get(policyKey(artifactID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return jsoniter.Unmarshal(val, &policies)
		})
	})
	return policies, err
}
