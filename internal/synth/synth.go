// Package synth is the simulated generation backend: a pure, deterministic
// mapping from (task, prompt, database type) to a block of design text.
// It stands in for a real model call, so the streaming engine can be
// exercised without network access, and the same inputs always produce the
// same output.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/title"
)

// defaultEntities seed the schema when the prompt matches no known domain
// and yields no usable nouns of its own.
var defaultEntities = []string{"users", "records", "tags", "record_tags"}

// Synthesizer produces content for every defined task id. The zero value
// is ready to use.
type Synthesizer struct{}

func New() *Synthesizer { return &Synthesizer{} }

// ContentFor returns the full text for one task. It never returns an
// empty string for a known task id; unknown ids are an error so a
// misconfigured task graph fails loudly instead of streaming nothing.
func (s *Synthesizer) ContentFor(_ context.Context, taskID model.TaskID, prompt, databaseType string) (string, error) {
	entities := entitiesFor(prompt)
	switch taskID {
	case model.TaskRequirements:
		return requirementsText(prompt, databaseType, entities), nil
	case model.TaskSchema:
		return schemaText(databaseType, entities), nil
	case model.TaskImplementation:
		return implementationText(databaseType, entities), nil
	case model.TaskValidation:
		return validationText(databaseType, entities), nil
	case model.TaskVisualization:
		return visualizationText(entities), nil
	}
	return "", fmt.Errorf("synth: no template for task %q", taskID)
}

// entitiesFor picks the schema's table names: the matched domain's
// entities, or a generic fallback.
func entitiesFor(prompt string) []string {
	if d, ok := title.Classify(prompt); ok {
		return d.Entities
	}
	return defaultEntities
}

func requirementsText(prompt, databaseType string, entities []string) string {
	var b strings.Builder
	b.WriteString("## Requirements Analysis\n\n")
	fmt.Fprintf(&b, "Request: %s\n\n", strings.TrimSpace(prompt))
	fmt.Fprintf(&b, "Target database: %s.\n\n", databaseType)
	b.WriteString("### Core entities\n\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- **%s**: first-class records with their own lifecycle and timestamps.\n", e)
	}
	b.WriteString("\n### Functional requirements\n\n")
	fmt.Fprintf(&b, "1. Create, read, update, and delete records in each of the %d core entities.\n", len(entities))
	b.WriteString("2. Preserve referential integrity between related entities.\n")
	b.WriteString("3. Support listing with stable ordering and pagination.\n")
	b.WriteString("4. Record creation and modification times on every row.\n\n")
	b.WriteString("### Non-functional requirements\n\n")
	b.WriteString("- Reads dominate writes; index for the common list and lookup paths.\n")
	b.WriteString("- Soft growth expected; no sharding needed at this stage.\n")
	return b.String()
}

func schemaText(databaseType string, entities []string) string {
	if databaseType == "MongoDB" {
		return mongoSchemaText(entities)
	}
	var b strings.Builder
	b.WriteString("## Schema Design\n\n")
	fmt.Fprintf(&b, "```sql\n")
	for i, e := range entities {
		fmt.Fprintf(&b, "CREATE TABLE %s (\n", e)
		fmt.Fprintf(&b, "    id %s,\n", idColumn(databaseType))
		if i > 0 {
			// Every non-root table references the first entity to keep
			// the example graph connected.
			fmt.Fprintf(&b, "    %s_id BIGINT NOT NULL REFERENCES %s(id),\n", singularName(entities[0]), entities[0])
		}
		fmt.Fprintf(&b, "    name %s NOT NULL,\n", textColumn(databaseType))
		fmt.Fprintf(&b, "    created_at %s NOT NULL DEFAULT %s,\n", timestampColumn(databaseType), nowExpr(databaseType))
		fmt.Fprintf(&b, "    updated_at %s NOT NULL DEFAULT %s\n", timestampColumn(databaseType), nowExpr(databaseType))
		b.WriteString(");\n\n")
	}
	for _, e := range entities[1:] {
		fmt.Fprintf(&b, "CREATE INDEX idx_%s_%s_id ON %s (%s_id);\n", e, singularName(entities[0]), e, singularName(entities[0]))
	}
	b.WriteString("```\n")
	return b.String()
}

func mongoSchemaText(entities []string) string {
	var b strings.Builder
	b.WriteString("## Schema Design\n\n")
	b.WriteString("Document collections with JSON Schema validators:\n\n```javascript\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "db.createCollection(%q, {\n", e)
		b.WriteString("  validator: { $jsonSchema: {\n")
		b.WriteString("    bsonType: \"object\",\n")
		b.WriteString("    required: [\"name\", \"createdAt\"],\n")
		b.WriteString("    properties: {\n")
		b.WriteString("      name: { bsonType: \"string\" },\n")
		b.WriteString("      createdAt: { bsonType: \"date\" },\n")
		b.WriteString("      updatedAt: { bsonType: \"date\" }\n")
		b.WriteString("    }\n")
		b.WriteString("  }}\n")
		b.WriteString("});\n\n")
	}
	b.WriteString("```\n")
	return b.String()
}

func implementationText(databaseType string, entities []string) string {
	var b strings.Builder
	b.WriteString("## Implementation Guide\n\n")
	b.WriteString("### Migrations\n\n")
	b.WriteString("Apply the schema as a single forward migration; each later change gets its own numbered migration file.\n\n")
	b.WriteString("### Access patterns\n\n")
	root := entities[0]
	fmt.Fprintf(&b, "- Look up a %s by id for the detail view.\n", singularName(root))
	fmt.Fprintf(&b, "- List %s newest-first with limit/offset pagination.\n", root)
	if len(entities) > 1 {
		fmt.Fprintf(&b, "- Fetch all %s belonging to one %s via the foreign-key index.\n", entities[1], singularName(root))
	}
	b.WriteString("\n### Example queries\n\n```sql\n")
	fmt.Fprintf(&b, "SELECT * FROM %s ORDER BY created_at DESC LIMIT 20;\n", root)
	if len(entities) > 1 {
		fmt.Fprintf(&b, "SELECT c.* FROM %s c JOIN %s p ON c.%s_id = p.id WHERE p.id = $1;\n", entities[1], root, singularName(root))
	}
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "Connection handling: use a pooled driver appropriate for %s and keep transactions short.\n", databaseType)
	return b.String()
}

func validationText(databaseType string, entities []string) string {
	var b strings.Builder
	b.WriteString("## Validation Report\n\n")
	b.WriteString("### Integrity checks\n\n")
	fmt.Fprintf(&b, "- All %d tables carry primary keys and timestamps.\n", len(entities))
	b.WriteString("- Foreign keys are indexed on the referencing side.\n")
	b.WriteString("- No nullable columns participate in uniqueness constraints.\n\n")
	b.WriteString("### Normalization\n\n")
	b.WriteString("The design is in third normal form: no repeating groups, no partial-key dependencies, no transitive dependencies.\n\n")
	b.WriteString("### Recommendations\n\n")
	fmt.Fprintf(&b, "1. Add a covering index if the %s list view grows a filter.\n", entities[0])
	fmt.Fprintf(&b, "2. Schedule routine maintenance appropriate for %s (statistics refresh, vacuum or optimize).\n", databaseType)
	b.WriteString("3. Back up before every migration.\n")
	return b.String()
}

func visualizationText(entities []string) string {
	var b strings.Builder
	b.WriteString("## Entity Relationship Diagram\n\n```mermaid\nerDiagram\n")
	root := entities[0]
	for _, e := range entities[1:] {
		fmt.Fprintf(&b, "    %s ||--o{ %s : has\n", strings.ToUpper(singularName(root)), strings.ToUpper(singularName(e)))
	}
	for _, e := range entities {
		fmt.Fprintf(&b, "    %s {\n", strings.ToUpper(singularName(e)))
		b.WriteString("        bigint id PK\n")
		b.WriteString("        string name\n")
		b.WriteString("        datetime created_at\n")
		b.WriteString("    }\n")
	}
	b.WriteString("```\n")
	return b.String()
}

func idColumn(databaseType string) string {
	switch databaseType {
	case "MySQL":
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case "SQLite":
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return "BIGSERIAL PRIMARY KEY"
	}
}

func textColumn(databaseType string) string {
	switch databaseType {
	case "MySQL":
		return "VARCHAR(255)"
	default:
		return "TEXT"
	}
}

func timestampColumn(databaseType string) string {
	switch databaseType {
	case "PostgreSQL":
		return "TIMESTAMPTZ"
	case "MySQL":
		return "DATETIME"
	default:
		return "TIMESTAMP"
	}
}

func nowExpr(databaseType string) string {
	switch databaseType {
	case "PostgreSQL":
		return "now()"
	default:
		return "CURRENT_TIMESTAMP"
	}
}

// singularName trims a plural table name for use in column prefixes and
// diagram labels.
func singularName(table string) string {
	switch {
	case strings.HasSuffix(table, "ies"):
		return strings.TrimSuffix(table, "ies") + "y"
	case strings.HasSuffix(table, "ses"):
		return strings.TrimSuffix(table, "es")
	case strings.HasSuffix(table, "s"):
		return strings.TrimSuffix(table, "s")
	}
	return table
}
