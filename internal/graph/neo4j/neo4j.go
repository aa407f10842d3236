// Package neo4j implements graph.Repository on Neo4j.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/hybridrag/internal/graph"
)

const (
	constraintDocumentID = "CREATE CONSTRAINT document_id IF NOT EXISTS " +
		"FOR (d:Document) REQUIRE d.id IS UNIQUE"
	constraintSectionName = "CREATE CONSTRAINT section_name IF NOT EXISTS " +
		"FOR (s:Section) REQUIRE s.name IS UNIQUE"

	upsertDocument = "MERGE (d:Document {id: $id}) " +
		"SET d.file_name = $id " +
		"MERGE (s:Section {name: $section}) " +
		"SET s.text = $text " +
		"MERGE (d)-[:HAS_SECTION]->(s)"

	searchSections = "MATCH (d:Document)-[:HAS_SECTION]->(s:Section) " +
		"WHERE toLower(s.text) CONTAINS toLower($query) " +
		"RETURN d.id AS doc_id, s.name AS name, s.text AS text " +
		"ORDER BY s.name " +
		"LIMIT $limit"
)

// Config holds connection parameters.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Repository implements graph.Repository using Neo4j.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
}

// New creates a Neo4j-backed repository. The driver connects lazily;
// Ping verifies connectivity.
func New(cfg Config) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return &Repository{driver: driver, database: cfg.Database}, nil
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Schema changes cannot share a transaction with each other.
	for _, stmt := range []string{constraintDocumentID, constraintSectionName} {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		if err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	return nil
}

func (r *Repository) UpsertDocument(ctx context.Context, docID, sectionName, text string) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, upsertDocument, map[string]any{
			"id":      docID,
			"section": sectionName,
			"text":    text,
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", docID, err)
	}
	return nil
}

func (r *Repository) SearchSections(ctx context.Context, query string, limit int) ([]graph.Section, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, searchSections, map[string]any{
			"query": query,
			"limit": int64(limit),
		})
		if err != nil {
			return nil, err
		}

		var sections []graph.Section
		for records.Next(ctx) {
			rec := records.Record()
			docID, _, err := neo4j.GetRecordValue[string](rec, "doc_id")
			if err != nil {
				return nil, err
			}
			name, _, err := neo4j.GetRecordValue[string](rec, "name")
			if err != nil {
				return nil, err
			}
			text, _, err := neo4j.GetRecordValue[string](rec, "text")
			if err != nil {
				return nil, err
			}
			sections = append(sections, graph.Section{DocID: docID, Name: name, Text: text})
		}
		return sections, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("search sections: %w", err)
	}
	sections, _ := result.([]graph.Section)
	return sections, nil
}

// Ping verifies the driver can reach the server.
func (r *Repository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Repository)(nil)
