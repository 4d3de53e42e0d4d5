package overpass

import (
	"context"

	"github.com/go-kit/log/level"

	"github.com/powerosm/powerosm/pkg/osm"
)

// resolveDependencies walks elements for referenced node/way ids not already
// cached and fetches them, iterating up to the configured recursion cap: a
// fixed depth cap, not recursive descent. Relation members that are
// themselves relations are never followed (one-level rule).
func (c *Client) resolveDependencies(ctx context.Context, elements []*osm.Element, country string) {
	frontier := elements

	for depth := 0; depth < defaultRecursionCap; depth++ {
		neededNodes, neededWays := missingRefs(c.cache, frontier)
		if len(neededNodes) == 0 && len(neededWays) == 0 {
			return
		}

		var fetched []*osm.Element

		if len(neededNodes) > 0 {
			nodes, err := c.fetchByIDs(ctx, "node", neededNodes)
			if err != nil {
				level.Warn(c.log).Log("msg", "failed to resolve referenced nodes", "country", country, "depth", depth, "err", err)
			} else {
				for _, n := range nodes {
					n.Country = country
					c.cache.Store(n)
				}

				fetched = append(fetched, nodes...)
			}
		}

		if len(neededWays) > 0 {
			ways, err := c.fetchByIDs(ctx, "way", neededWays)
			if err != nil {
				level.Warn(c.log).Log("msg", "failed to resolve referenced ways", "country", country, "depth", depth, "err", err)
			} else {
				for _, w := range ways {
					w.Country = country
					c.cache.Store(w)
				}

				fetched = append(fetched, ways...)
			}
		}

		if len(fetched) == 0 {
			return
		}

		frontier = fetched
	}

	level.Warn(c.log).Log("msg", "dependency resolution reached recursion cap, further resolution skipped", "country", country, "cap", defaultRecursionCap)
}

// missingRefs collects node/way ids referenced by elements (way.Nodes,
// relation node/way members — nested relation members are never followed)
// that are not already present in cache.
func missingRefs(cache *osm.ElementCache, elements []*osm.Element) (nodes, ways []int64) {
	seenNode := map[int64]bool{}
	seenWay := map[int64]bool{}

	for _, e := range elements {
		switch e.Type {
		case osm.TypeWay:
			for _, id := range e.Nodes {
				if !seenNode[id] {
					if _, ok := cache.Get(osm.TypeNode, id); !ok {
						seenNode[id] = true
						nodes = append(nodes, id)
					}
				}
			}
		case osm.TypeRelation:
			for _, m := range e.Members {
				switch m.Type {
				case osm.TypeNode:
					if !seenNode[m.Ref] {
						if _, ok := cache.Get(osm.TypeNode, m.Ref); !ok {
							seenNode[m.Ref] = true
							nodes = append(nodes, m.Ref)
						}
					}
				case osm.TypeWay:
					if !seenWay[m.Ref] {
						if _, ok := cache.Get(osm.TypeWay, m.Ref); !ok {
							seenWay[m.Ref] = true
							ways = append(ways, m.Ref)
						}
					}
				default:
					// relation members are not recursively resolved.
				}
			}
		}
	}

	return nodes, ways
}
