package workflow

// definitionSchema is the JSON shape accepted by the codec. Node configs are
// checked later by Validate; editor-only properties are allowed and dropped.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "nodes"],
  "properties": {
    "id": {"type": "string"},
    "community_id": {"type": "string"},
    "name": {"type": "string"},
    "status": {"type": "string", "enum": ["draft", "published", ""]},
    "version": {"type": "integer", "minimum": 0},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": ["trigger", "condition", "action", "data", "loop", "flow"]},
          "label": {"type": "string"},
          "config": {"type": ["object", "null"]}
        }
      }
    },
    "edges": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": {"type": "string", "minLength": 1},
          "source_port": {"type": "string"},
          "target": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`
