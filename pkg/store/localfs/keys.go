package localfs

import (
	"strconv"

	"github.com/oneconcern/heraclitus/pkg/store"
)

var (
	graphPref           = [6]byte{'g', 'r', 'a', 'p', 'h', ':'}
	artifactPref        = [4]byte{'a', 'r', 't', ':'}
	policyPref          = [4]byte{'p', 'o', 'l', ':'}
	versionPref         = [4]byte{'v', 'e', 'r', ':'}
	artifactVersionPref = [6]byte{'v', 'a', 'r', 't', 's', ':'}
	hunkPref            = [5]byte{'h', 'u', 'n', 'k', ':'}
	precedencePref      = [5]byte{'p', 'r', 'e', 'c', ':'}
	productionPref      = [5]byte{'s', 'p', 'e', 'c', ':'}
	branchPref          = [7]byte{'b', 'r', 'a', 'n', 'c', 'h', ':'}
)

const sep = ':'

func prefixed(pref []byte, parts ...string) []byte {
	size := len(pref)
	for _, part := range parts {
		size += len(part) + 1
	}
	key := make([]byte, 0, size)
	key = append(key, pref...)
	for i, part := range parts {
		if i > 0 {
			key = append(key, sep)
		}
		key = append(key, store.UnsafeStringToBytes(part)...)
	}
	return key
}

// partitionSuffix renders a partition index so that lexicographic order matches numeric order
func partitionSuffix(partition uint64) string {
	s := strconv.FormatUint(partition, 10)
	const width = 20
	if len(s) >= width {
		return s
	}
	pad := make([]byte, width-len(s))
	for i := range pad {
		pad[i] = '0'
	}
	return string(pad) + s
}

func graphKey(id string) []byte {
	return prefixed(graphPref[:], id)
}

func artifactKey(id string) []byte {
	return prefixed(artifactPref[:], id)
}

func policyKey(artifactID string) []byte {
	return prefixed(policyPref[:], artifactID)
}

func versionKey(id string) []byte {
	return prefixed(versionPref[:], id)
}

func artifactVersionKey(artifactID, versionID string) []byte {
	return prefixed(artifactVersionPref[:], artifactID, versionID)
}

func artifactVersionsPrefix(artifactID string) []byte {
	return prefixed(artifactVersionPref[:], artifactID, "")
}

func hunkKey(versionID string, partition uint64) []byte {
	return prefixed(hunkPref[:], versionID, partitionSuffix(partition))
}

func hunksPrefix(versionID string) []byte {
	return prefixed(hunkPref[:], versionID, "")
}

func precedenceKey(versionID string, partition uint64) []byte {
	return prefixed(precedencePref[:], versionID, partitionSuffix(partition))
}

func precedencesPrefix(versionID string) []byte {
	return prefixed(precedencePref[:], versionID, "")
}

func productionKey(versionID string) []byte {
	return prefixed(productionPref[:], versionID)
}

func branchKey(refArtifactID, name string) []byte {
	return prefixed(branchPref[:], refArtifactID, name)
}

func branchesPrefix(refArtifactID string) []byte {
	return prefixed(branchPref[:], refArtifactID, "")
}
