package kb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ppiankov/chronicle/internal/model"
)

const (
	deleteEdgesQuery = `MATCH ()-[r:RELATES {artifact: $artifact}]->() DELETE r`
	createEdgesQuery = `UNWIND $edges AS e
MERGE (s:Term {text: e.source})
MERGE (t:Term {text: e.target})
CREATE (s)-[:RELATES {relation: e.relation, context: e.context, artifact: $artifact}]->(t)`
)

// GraphSink loads relationship edges into Neo4j. Edges of the previous run of the same
// artifact are removed before the new ones are created; duplicates are kept. Other
// categories are ignored.
type GraphSink struct {
	driver neo4j.DriverWithContext
}

// NewGraphSink connects and verifies connectivity
func NewGraphSink(ctx context.Context, uri, user, password string) (*GraphSink, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("create graph driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to graph: %w", err)
	}
	return &GraphSink{driver: driver}, nil
}

// EdgeParams converts edges into Cypher parameters
func EdgeParams(edges []model.RelationshipEdge) []map[string]any {
	out := make([]map[string]any, len(edges))
	for i, e := range edges {
		out[i] = map[string]any{
			"source":   e.Source,
			"target":   e.Target,
			"relation": e.Relation,
			"context":  e.Context,
		}
	}
	return out
}

// Put replaces the graph edges of a relationships artifact
func (s *GraphSink) Put(ctx context.Context, a Artifact) error {
	if a.Category != CategoryRelationships {
		return nil
	}
	edges, ok := a.Payload.([]model.RelationshipEdge)
	if !ok {
		return fmt.Errorf("graph sink: unexpected payload %T for %s", a.Payload, a.Key())
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, deleteEdgesQuery, map[string]any{"artifact": a.Key()}); err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			return nil, nil
		}
		_, err := tx.Run(ctx, createEdgesQuery, map[string]any{
			"artifact": a.Key(),
			"edges":    EdgeParams(edges),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("store %s in graph: %w", a.Key(), err)
	}
	return nil
}

// Close closes the driver
func (s *GraphSink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
