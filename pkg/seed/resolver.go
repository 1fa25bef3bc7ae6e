package seed

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
)

// Project is the parsed seeds collection of a project document.
type Project struct {
	// Projects are the entries directly under the seeds key, in document order
	Projects []Child
}

// Unresolved describes a hook leaf that did not yield a descriptor.
type Unresolved struct {
	Lineage []string
	Reason  string
}

// String returns the dotted lineage of the leaf.
func (u Unresolved) String() string {
	return strings.Join(u.Lineage, ".")
}

// Resolution is the outcome of resolving a project.
type Resolution struct {
	Descriptors []Descriptor
	Unresolved  []Unresolved
}

// ParseProject decodes a dbt project document. A document that is not a
// mapping or has no seeds mapping is a fatal configuration error.
func ParseProject(data []byte) (*Project, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "project document is not valid YAML")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "project document is empty")
	}
	root := deref(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrorTypeConfig, "project document is not a mapping")
	}
	seeds, ok := lookup(root, SeedsKey)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "project document has no %q collection", SeedsKey)
	}
	seeds = deref(seeds)
	if seeds.Kind != yaml.MappingNode {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%q is not a mapping", SeedsKey)
	}

	p := &Project{}
	for i := 0; i+1 < len(seeds.Content); i += 2 {
		key, val := seeds.Content[i].Value, deref(seeds.Content[i+1])
		if strings.HasPrefix(key, "+") || val.Kind != yaml.MappingNode {
			continue
		}
		p.Projects = append(p.Projects, Child{Key: key, Node: convert(val)})
	}
	return p, nil
}

// Resolve walks every project's schemas depth-first and returns one
// descriptor per leaf whose hook yields a load_seed call, in document order.
// Leaves that do not resolve are reported and skipped; their siblings are
// still resolved.
func Resolve(ctx context.Context, p *Project) Resolution {
	r := &resolver{log: logger.WithContext(ctx).With(zap.String("component", "resolver"))}
	for _, proj := range p.Projects {
		in, ok := proj.Node.(*Interior)
		if !ok {
			r.skip([]string{proj.Key}, "hook declared at project level")
			continue
		}
		for _, schema := range in.Children {
			r.walk([]string{schema.Key}, schema.Node)
		}
	}
	return r.res
}

// ResolveDocument parses data and resolves it.
func ResolveDocument(ctx context.Context, data []byte) (Resolution, error) {
	p, err := ParseProject(data)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(ctx, p), nil
}

type resolver struct {
	log *zap.Logger
	res Resolution
}

func (r *resolver) walk(lineage []string, n Node) {
	switch n := n.(type) {
	case Leaf:
		r.leaf(lineage, n)
	case *Interior:
		for _, c := range n.Children {
			next := make([]string, len(lineage), len(lineage)+1)
			copy(next, lineage)
			r.walk(append(next, c.Key), c.Node)
		}
	}
}

func (r *resolver) leaf(lineage []string, n Leaf) {
	if len(lineage) < 2 {
		r.skip(lineage, "hook declared at schema level")
		return
	}
	if n.Invalid != "" {
		r.skip(lineage, n.Invalid)
		return
	}
	path, pattern, err := ExtractLoadSeed(n.Hook)
	if err != nil {
		r.skip(lineage, err.Error())
		return
	}
	d, err := NewDescriptor(lineage[0], lineage[len(lineage)-1], path, pattern, lineage)
	if err != nil {
		r.skip(lineage, err.Error())
		return
	}
	r.log.Debug("resolved seed",
		zap.String("lineage", d.String()),
		zap.String("bucket", d.Bucket),
		zap.String("key_prefix", d.KeyPrefix))
	r.res.Descriptors = append(r.res.Descriptors, d)
}

func (r *resolver) skip(lineage []string, reason string) {
	u := Unresolved{Lineage: lineage, Reason: reason}
	r.log.Warn("seed did not match load_seed expectations, skipping",
		zap.String("lineage", u.String()),
		zap.String("reason", reason))
	r.res.Unresolved = append(r.res.Unresolved, u)
}
