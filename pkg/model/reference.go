package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oneconcern/heraclitus/pkg/core/status"
)

const (
	// HeadRevision is the name of the revision path designating the default branch of a ref
	HeadRevision = "HEAD"

	// DefaultBranch is the branch designated by HEAD unless a ref says otherwise
	DefaultBranch = "master"
)

// Branch is a mutable pointer from a name to a version of a ref artifact
type Branch struct {
	RefArtifactID string    `json:"ref" yaml:"ref"`
	Name          string    `json:"name" yaml:"name"`
	VersionID     string    `json:"version" yaml:"version"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"updatedAt"`
	_             struct{}
}

// Branches is a slice of branches sortable by name
type Branches []Branch

func (b Branches) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
}
func (b Branches) Len() int {
	return len(b)
}
func (b Branches) Less(i, j int) bool {
	return b[i].Name < b[j].Name
}

var branchNameRex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// IsValidBranchName checks a branch name: HEAD is reserved, separators are not allowed
func IsValidBranchName(name string) bool {
	return name != HeadRevision && branchNameRex.MatchString(name)
}

// RevisionPath designates either the head of a ref or a named branch
type RevisionPath struct {
	Head bool
	Name string
}

// ParseRevisionPath parses a revision path. An empty path or HEAD designates the head.
func ParseRevisionPath(s string) (RevisionPath, error) {
	if s == "" || s == HeadRevision {
		return RevisionPath{Head: true}, nil
	}
	if !IsValidBranchName(s) {
		return RevisionPath{}, status.ErrInvalidSpecifier.WrapMessage("invalid branch name %q", s)
	}
	return RevisionPath{Name: s}, nil
}

func (p RevisionPath) String() string {
	if p.Head {
		return HeadRevision
	}
	return p.Name
}

// BranchName resolves the branch designated by this path, given the head branch of a ref
func (p RevisionPath) BranchName(head string) string {
	if p.Head {
		return head
	}
	return p.Name
}

// RevisionSpecifier designates a version relative to a revision path: path~N is the Nth first-parent ancestor
type RevisionSpecifier struct {
	Path     RevisionPath
	Ancestor int
}

// ParseRevisionSpecifier parses a revision specifier such as "master~2"
func ParseRevisionSpecifier(s string) (RevisionSpecifier, error) {
	var spec RevisionSpecifier
	path := s
	if i := strings.IndexByte(s, '~'); i >= 0 {
		path = s[:i]
		n := 1
		if offset := s[i+1:]; offset != "" {
			var err error
			n, err = strconv.Atoi(offset)
			if err != nil || n < 0 {
				return spec, status.ErrInvalidSpecifier.WrapMessage("invalid ancestor offset in %q", s)
			}
		}
		spec.Ancestor = n
	}
	p, err := ParseRevisionPath(path)
	if err != nil {
		return spec, err
	}
	spec.Path = p
	return spec, nil
}

func (r RevisionSpecifier) String() string {
	if r.Ancestor == 0 {
		return r.Path.String()
	}
	return r.Path.String() + "~" + strconv.Itoa(r.Ancestor)
}

// VersionSpecifier designates a version, either by id or through the branches of a ref.
//
// Accepted forms:
//
//	#<id or unambiguous id prefix>
//	<ref>/<revision>              the ref version itself
//	<ref>/<revision>/<artifact>   the version of an artifact pinned by the ref version
type VersionSpecifier struct {
	ID       string
	Partial  bool
	Ref      string
	Revision RevisionSpecifier
	Artifact string
}

// ParseVersionSpecifier parses a version specifier
func ParseVersionSpecifier(s string) (VersionSpecifier, error) {
	var spec VersionSpecifier
	if strings.HasPrefix(s, "#") {
		id := s[1:]
		if id == "" {
			return spec, status.ErrInvalidSpecifier.WrapMessage("empty id in %q", s)
		}
		spec.ID = id
		spec.Partial = !IsValidID(id)
		return spec, nil
	}

	parts := strings.SplitN(s, "/", 3)
	if len(parts) < 2 || parts[0] == "" {
		return spec, status.ErrInvalidSpecifier.WrapMessage("expected #id or ref/revision[/artifact], got %q", s)
	}
	rev, err := ParseRevisionSpecifier(parts[1])
	if err != nil {
		return spec, err
	}
	spec.Ref = parts[0]
	spec.Revision = rev
	if len(parts) == 3 {
		if parts[2] == "" {
			return spec, status.ErrInvalidSpecifier.WrapMessage("empty artifact name in %q", s)
		}
		spec.Artifact = parts[2]
	}
	return spec, nil
}

func (v VersionSpecifier) String() string {
	if v.ID != "" {
		return "#" + v.ID
	}
	s := v.Ref + "/" + v.Revision.String()
	if v.Artifact != "" {
		s += "/" + v.Artifact
	}
	return s
}
