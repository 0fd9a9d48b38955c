package protocol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBase = "https://replayline.ai/schemas/"

var recordSchemas = map[string]string{
	RecHeader: `{
	  "type": "object",
	  "required": ["type", "version", "duration", "players"],
	  "properties": {
	    "type": {"const": "HEADER"},
	    "version": {"type": "integer", "minimum": 1},
	    "duration": {"type": "number", "maximum": 1000000},
	    "map_name": {"type": "string"},
	    "game_version": {"type": "string"},
	    "played_at": {"type": "integer"},
	    "players": {
	      "type": "array",
	      "items": {
	        "type": "object",
	        "required": ["pid", "name"],
	        "properties": {
	          "pid": {"type": "integer"},
	          "name": {"type": "string"},
	          "race": {"type": "string"},
	          "team": {"type": "integer"},
	          "result": {"type": "string"}
	        }
	      }
	    }
	  }
	}`,
	RecUnitBorn: `{
	  "type": "object",
	  "required": ["type", "t", "unit_id", "unit_type", "pid", "x", "y"],
	  "properties": {
	    "t": {"type": "number"},
	    "unit_id": {"type": "integer", "minimum": 1},
	    "unit_type": {"type": "string", "minLength": 1},
	    "pid": {"type": "integer"},
	    "x": {"type": "number"},
	    "y": {"type": "number"}
	  }
	}`,
	RecUnitDied: `{
	  "type": "object",
	  "required": ["type", "t", "unit_id"],
	  "properties": {
	    "t": {"type": "number"},
	    "unit_id": {"type": "integer", "minimum": 1}
	  }
	}`,
	RecUnitPositions: `{
	  "type": "object",
	  "required": ["type", "t", "units"],
	  "properties": {
	    "t": {"type": "number"},
	    "units": {
	      "type": "array",
	      "minItems": 1,
	      "items": {
	        "type": "object",
	        "required": ["unit_id", "x", "y"],
	        "properties": {
	          "unit_id": {"type": "integer", "minimum": 1},
	          "x": {"type": "number"},
	          "y": {"type": "number"}
	        }
	      }
	    }
	  }
	}`,
	RecPlayerStats: `{
	  "type": "object",
	  "required": ["type", "t", "pid"],
	  "properties": {
	    "t": {"type": "number"},
	    "pid": {"type": "integer"},
	    "minerals_collection_rate": {"type": "number"},
	    "vespene_collection_rate": {"type": "number"},
	    "minerals_killed": {"type": "number"},
	    "vespene_killed": {"type": "number"},
	    "minerals_used_current_army": {"type": "number"},
	    "vespene_used_current_army": {"type": "number"}
	  }
	}`,
	RecCommand: `{
	  "type": "object",
	  "required": ["type", "t", "pid"],
	  "properties": {
	    "t": {"type": "number"},
	    "pid": {"type": "integer"}
	  }
	}`,
	RecUpgrade: `{
	  "type": "object",
	  "required": ["type", "t", "pid", "name"],
	  "properties": {
	    "t": {"type": "number"},
	    "pid": {"type": "integer"},
	    "name": {"type": "string", "minLength": 1}
	  }
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(recordSchemas))
	for typ, src := range recordSchemas {
		url := schemaBase + strings.ToLower(typ) + ".schema.json"
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			compileErr = fmt.Errorf("schema %s: %w", typ, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("schema %s: %w", typ, err)
			return
		}
		out[typ] = s
	}
	compiled = out
}

// ValidateRecord checks a decoded JSON value (from json.Unmarshal into any)
// against the schema for its record type.
func ValidateRecord(typ string, v any) error {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return compileErr
	}
	s, ok := compiled[typ]
	if !ok {
		return fmt.Errorf("unknown record type %q", typ)
	}
	return s.Validate(v)
}
