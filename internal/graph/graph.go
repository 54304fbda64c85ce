// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph maintains the directed, typed relation graph over the
// entities of an audit session and runs the structural detectors over it:
// schools of thought, citation islands, search priorities, fracture lines
// and influence chains.
//
// A Graph is mutated by a single owner. Once mutation stops for a cycle it
// may be read from several goroutines.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

const (
	defaultMinCitations = 2
	authorityCites      = 3
	maxUnmapped         = 10
)

type node struct {
	name         string
	searched     int
	investigated bool
	languages    map[string]bool
}

type edgeKey struct {
	from, to string
	rel      types.RelationType
}

// Graph is a directed multigraph keyed by canonical entity name.
type Graph struct {
	prof         *profile.Profile
	minCitations int
	logger       *zap.Logger

	nodes map[string]*node
	out   map[string]map[string][]types.RelationType
	in    map[string]map[string][]types.RelationType
	edges map[edgeKey]types.SemanticRelation
	order []edgeKey
}

// Option configures a Graph.
type Option func(*Graph)

// WithMinCitations sets the in-degree at which an uninvestigated entity
// becomes a citation island.
func WithMinCitations(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.minCitations = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New returns an empty graph. A nil profile uses profile.Default.
func New(p *profile.Profile, opts ...Option) *Graph {
	if p == nil {
		p = profile.Default()
	}
	g := &Graph{
		prof:         p,
		minCitations: defaultMinCitations,
		logger:       zap.NewNop(),
		nodes:        make(map[string]*node),
		out:          make(map[string]map[string][]types.RelationType),
		in:           make(map[string]map[string][]types.RelationType),
		edges:        make(map[edgeKey]types.SemanticRelation),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// ensure returns the node for name, creating an empty one if needed.
func (g *Graph) ensure(name string) string {
	k := g.prof.CanonicalKey(name)
	if _, ok := g.nodes[k]; !ok {
		g.nodes[k] = &node{name: g.prof.Canonical(name), languages: make(map[string]bool)}
	}
	return k
}

// AddRelation folds one typed edge into the graph. Unseen endpoints are
// created. A repeated (source, target, relation) triple is ignored.
// It reports whether the edge was new.
func (g *Graph) AddRelation(r types.SemanticRelation) bool {
	if strings.TrimSpace(r.Source) == "" || strings.TrimSpace(r.Target) == "" {
		return false
	}
	from, to := g.ensure(r.Source), g.ensure(r.Target)
	if from == to {
		return false
	}
	if r.Language != "" {
		g.nodes[from].languages[r.Language] = true
		g.nodes[to].languages[r.Language] = true
	}
	k := edgeKey{from, to, r.Relation}
	if _, ok := g.edges[k]; ok {
		return false
	}
	g.edges[k] = r
	g.order = append(g.order, k)
	link(g.out, from, to, r.Relation)
	link(g.in, to, from, r.Relation)
	return true
}

func link(adj map[string]map[string][]types.RelationType, a, b string, rel types.RelationType) {
	m, ok := adj[a]
	if !ok {
		m = make(map[string][]types.RelationType)
		adj[a] = m
	}
	m[b] = append(m[b], rel)
}

// AddCitation records that author mentioned target as a CITES edge.
func (g *Graph) AddCitation(author, target string, cycle int) bool {
	return g.AddRelation(types.SemanticRelation{
		Source:     author,
		Target:     target,
		Relation:   types.RelCites,
		Confidence: 1,
		Evidence:   "mentioned by author",
		Cycle:      cycle,
	})
}

// AddFinding folds a finding in citation mode: its author is marked
// investigated and cites every entity the finding mentions.
func (g *Graph) AddFinding(f types.Finding) {
	if strings.TrimSpace(f.Author) == "" {
		return
	}
	a := g.ensure(f.Author)
	g.nodes[a].investigated = true
	for _, m := range f.Entities {
		if g.prof.Classify(m) != types.KindScholar {
			continue
		}
		g.AddRelation(types.SemanticRelation{
			Source:     f.Author,
			Target:     m,
			Relation:   types.RelCites,
			Confidence: 1,
			Evidence:   f.Source,
			Language:   f.Language,
			Cycle:      f.Cycle,
		})
	}
}

// MarkSearched records a direct search query for name.
func (g *Graph) MarkSearched(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	g.nodes[g.ensure(name)].searched++
}

// MarkInvestigated records that name has been read directly.
func (g *Graph) MarkInvestigated(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	g.nodes[g.ensure(name)].investigated = true
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Relations returns every edge in insertion order.
func (g *Graph) Relations() []types.SemanticRelation {
	out := make([]types.SemanticRelation, len(g.order))
	for i, k := range g.order {
		out[i] = g.edges[k]
	}
	return out
}

// InDegree is the number of distinct predecessors of name.
func (g *Graph) InDegree(name string) int {
	return len(g.in[g.prof.CanonicalKey(name)])
}

// OutDegree is the number of distinct successors of name.
func (g *Graph) OutDegree(name string) int {
	return len(g.out[g.prof.CanonicalKey(name)])
}

func (g *Graph) has(from, to string, rel types.RelationType) bool {
	_, ok := g.edges[edgeKey{from, to, rel}]
	return ok
}

// linked reports whether a and b are joined in the school projection:
// SUPPORTS and COAUTHORS join directly, CITES only when reciprocal.
func (g *Graph) linked(a, b string) bool {
	for _, rel := range []types.RelationType{types.RelSupports, types.RelCoauthors} {
		if g.has(a, b, rel) || g.has(b, a, rel) {
			return true
		}
	}
	return g.has(a, b, types.RelCites) && g.has(b, a, types.RelCites)
}

// Schools returns the connected components of size two or more in the
// undirected school projection, largest first. Members are sorted.
func (g *Graph) Schools() [][]string {
	adj := make(map[string][]string)
	for k := range g.edges {
		if g.linked(k.from, k.to) {
			adj[k.from] = append(adj[k.from], k.to)
			adj[k.to] = append(adj[k.to], k.from)
		}
	}

	keys := make([]string, 0, len(adj))
	for k := range adj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool)
	var schools [][]string
	for _, start := range keys {
		if seen[start] {
			continue
		}
		seen[start] = true
		queue := []string{start}
		var members []string
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, g.nodes[cur].name)
			for _, nb := range adj[cur] {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		if len(members) >= 2 {
			sort.Strings(members)
			schools = append(schools, members)
		}
	}
	sort.SliceStable(schools, func(i, j int) bool { return len(schools[i]) > len(schools[j]) })
	return schools
}

// schoolOf maps node keys to the index of their school.
func (g *Graph) schoolOf(schools [][]string) map[string]int {
	m := make(map[string]int)
	for i, s := range schools {
		for _, name := range s {
			m[g.prof.CanonicalKey(name)] = i
		}
	}
	return m
}

// Island is an entity cited often but never searched for or read directly.
type Island struct {
	Name     string `json:"name" yaml:"name"`
	InDegree int    `json:"in_degree" yaml:"in_degree"`
}

// Islands returns the citation islands, highest in-degree first.
func (g *Graph) Islands() []Island {
	var out []Island
	for k, n := range g.nodes {
		deg := len(g.in[k])
		if deg >= g.minCitations && n.searched == 0 && !n.investigated {
			out = append(out, Island{Name: n.name, InDegree: deg})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InDegree != out[j].InDegree {
			return out[i].InDegree > out[j].InDegree
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Priority ranks an entity as a search target.
type Priority struct {
	Name     string  `json:"name" yaml:"name"`
	InDegree int     `json:"in_degree" yaml:"in_degree"`
	Searched int     `json:"searched" yaml:"searched"`
	Score    float64 `json:"score" yaml:"score"`
}

// Priorities ranks every cited entity by in_degree / (searched + 1),
// breaking ties by 2×in + 0.5×out and then by name.
func (g *Graph) Priorities() []Priority {
	type ranked struct {
		Priority
		tie float64
	}
	var rs []ranked
	for k, n := range g.nodes {
		in := len(g.in[k])
		if in == 0 {
			continue
		}
		rs = append(rs, ranked{
			Priority: Priority{
				Name:     n.name,
				InDegree: in,
				Searched: n.searched,
				Score:    float64(in) / float64(n.searched+1),
			},
			tie: float64(in)*2 + float64(len(g.out[k]))*0.5,
		})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		if rs[i].tie != rs[j].tie {
			return rs[i].tie > rs[j].tie
		}
		return rs[i].Name < rs[j].Name
	})
	out := make([]Priority, len(rs))
	for i, r := range rs {
		out[i] = r.Priority
	}
	return out
}

// Fracture is a contest or contradiction between two members of the same
// school.
type Fracture struct {
	A        string             `json:"a" yaml:"a"`
	B        string             `json:"b" yaml:"b"`
	Relation types.RelationType `json:"relation" yaml:"relation"`
	School   int                `json:"school" yaml:"school"`
}

// Fractures returns the CONTESTS and CONTRADICTS edges inside a school,
// one per unordered pair.
func (g *Graph) Fractures() []Fracture {
	schools := g.Schools()
	member := g.schoolOf(schools)
	seen := make(map[[2]string]bool)
	var out []Fracture
	for _, k := range g.order {
		if k.rel != types.RelContests && k.rel != types.RelContradicts {
			continue
		}
		sa, okA := member[k.from]
		sb, okB := member[k.to]
		if !okA || !okB || sa != sb {
			continue
		}
		pair := [2]string{k.from, k.to}
		if pair[0] > pair[1] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		out = append(out, Fracture{A: g.nodes[k.from].name, B: g.nodes[k.to].name, Relation: k.rel, School: sa})
	}
	return out
}

// InfluenceChains returns the maximal SUPERVISES/EXTENDS paths with at
// least two edges. Chains that are contained in a longer chain are dropped.
func (g *Graph) InfluenceChains() [][]string {
	adj := make(map[string][]string)
	incoming := make(map[string]bool)
	for _, k := range g.order {
		if k.rel == types.RelSupervises || k.rel == types.RelExtends {
			adj[k.from] = append(adj[k.from], k.to)
			incoming[k.to] = true
		}
	}
	if len(adj) == 0 {
		return nil
	}

	var starts []string
	for k := range adj {
		if !incoming[k] {
			starts = append(starts, k)
		}
	}
	if len(starts) == 0 {
		for k := range adj {
			starts = append(starts, k)
		}
	}
	sort.Strings(starts)

	var paths [][]string
	var walk func(path []string, onPath map[string]bool)
	walk = func(path []string, onPath map[string]bool) {
		cur := path[len(path)-1]
		extended := false
		for _, nb := range adj[cur] {
			if onPath[nb] {
				continue
			}
			extended = true
			onPath[nb] = true
			walk(append(path, nb), onPath)
			delete(onPath, nb)
		}
		if !extended && len(path) >= 3 {
			paths = append(paths, append([]string(nil), path...))
		}
	}
	for _, s := range starts {
		walk([]string{s}, map[string]bool{s: true})
	}

	sort.SliceStable(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })
	var maximal [][]string
	for _, p := range paths {
		if containedIn(p, maximal) {
			continue
		}
		maximal = append(maximal, p)
	}
	for _, p := range maximal {
		for i, k := range p {
			p[i] = g.nodes[k].name
		}
	}
	return maximal
}

func containedIn(p []string, longer [][]string) bool {
	needle := "\x00" + strings.Join(p, "\x00") + "\x00"
	for _, l := range longer {
		if strings.Contains("\x00"+strings.Join(l, "\x00")+"\x00", needle) {
			return true
		}
	}
	return false
}

// Authority is an entity with a high CITES in-degree.
type Authority struct {
	Name         string `json:"name" yaml:"name"`
	Citations    int    `json:"citations" yaml:"citations"`
	Investigated bool   `json:"investigated" yaml:"investigated"`
}

// Authorities lists entities cited by at least three others, most cited first.
func (g *Graph) Authorities() []Authority {
	var out []Authority
	for k, n := range g.nodes {
		c := 0
		for _, rels := range g.in[k] {
			for _, r := range rels {
				if r == types.RelCites {
					c++
				}
			}
		}
		if c >= authorityCites {
			out = append(out, Authority{Name: n.name, Citations: c, Investigated: n.investigated})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Citations != out[j].Citations {
			return out[i].Citations > out[j].Citations
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// UnmappedPairs lists pairs of well-connected entities (total degree of at
// least two) with no edge between them, capped at ten pairs.
func (g *Graph) UnmappedPairs() [][2]string {
	var keys []string
	for k := range g.nodes {
		if len(g.in[k])+len(g.out[k]) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out [][2]string
	for i, a := range keys {
		for _, b := range keys[i+1:] {
			if len(g.out[a][b]) > 0 || len(g.out[b][a]) > 0 {
				continue
			}
			out = append(out, [2]string{g.nodes[a].name, g.nodes[b].name})
			if len(out) == maxUnmapped {
				return out
			}
		}
	}
	return out
}

// Anomalies returns the structural anomalies of the current graph: a
// CRITICAL school gap when exactly one school exists, a HIGH citation
// island per island, and a MEDIUM fracture line per fracture.
func (g *Graph) Anomalies(cycle int) []types.Anomaly {
	var out []types.Anomaly

	schools := g.Schools()
	if len(schools) == 1 {
		out = append(out, types.Anomaly{
			Description: fmt.Sprintf("Only one school of thought detected (%d members: %s). Possible echo chamber",
				len(schools[0]), strings.Join(schools[0], ", ")),
			Gap:            types.GapSchool,
			Severity:       types.SeverityCritical,
			Recommendation: "Search for alternative research groups",
			Cycle:          cycle,
		})
	}

	for _, is := range g.Islands() {
		out = append(out, types.Anomaly{
			Description:    fmt.Sprintf("'%s' cited %dx but never searched directly", is.Name, is.InDegree),
			Gap:            types.GapCitationIsland,
			Severity:       types.SeverityHigh,
			Recommendation: "Search for publications by " + is.Name,
			SuggestedQueries: []string{
				is.Name + " publications research",
				is.Name + " academic paper",
			},
			Subject: is.Name,
			Cycle:   cycle,
		})
	}

	for _, f := range g.Fractures() {
		out = append(out, types.Anomaly{
			Description:    fmt.Sprintf("Fracture between '%s' and '%s' inside one school: %s with no reconciling source", f.A, f.B, f.Relation),
			Gap:            types.GapFracture,
			Severity:       types.SeverityMedium,
			Recommendation: fmt.Sprintf("Look for a synthesis of the disagreement between %s and %s", f.A, f.B),
			SuggestedQueries: []string{
				fmt.Sprintf("%s %s debate", f.A, f.B),
				fmt.Sprintf("%s %s synthesis", f.A, f.B),
			},
			Subject: f.A,
			Cycle:   cycle,
		})
	}

	g.logger.Debug("graph anomalies",
		zap.Int("cycle", cycle),
		zap.Int("schools", len(schools)),
		zap.Int("anomalies", len(out)),
	)
	return out
}

// Summary is the reporting view of the graph.
type Summary struct {
	Nodes       int                        `json:"nodes" yaml:"nodes"`
	Edges       int                        `json:"edges" yaml:"edges"`
	ByRelation  map[types.RelationType]int `json:"by_relation" yaml:"by_relation"`
	Schools     [][]string                 `json:"schools" yaml:"schools"`
	Fractures   []Fracture                 `json:"fractures" yaml:"fractures"`
	Islands     []Island                   `json:"islands" yaml:"islands"`
	Authorities []Authority                `json:"authorities" yaml:"authorities"`
	Chains      [][]string                 `json:"influence_chains" yaml:"influence_chains"`
	Unmapped    [][2]string                `json:"unmapped_pairs" yaml:"unmapped_pairs"`
	Priorities  []Priority                 `json:"priorities" yaml:"priorities"`
}

// Summarize runs every detector once.
func (g *Graph) Summarize() Summary {
	by := make(map[types.RelationType]int)
	for k := range g.edges {
		by[k.rel]++
	}
	return Summary{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		ByRelation:  by,
		Schools:     g.Schools(),
		Fractures:   g.Fractures(),
		Islands:     g.Islands(),
		Authorities: g.Authorities(),
		Chains:      g.InfluenceChains(),
		Unmapped:    g.UnmappedPairs(),
		Priorities:  g.Priorities(),
	}
}
