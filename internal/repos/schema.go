package repos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload 表示仓库接口返回的数据不符合预期结构。
var ErrInvalidPayload = errors.New("invalid repository payload")

// repositorySchema 描述 GET /repos/{owner}/{repo} 中用到的字段；
// description/language 允许为 null，parent 仅 fork 仓库存在。
const repositorySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "owner": {
      "type": "object",
      "required": ["login", "avatar_url"],
      "properties": {
        "login": {"type": "string"},
        "avatar_url": {"type": "string"}
      }
    },
    "nullableString": {"type": ["string", "null"]}
  },
  "type": "object",
  "required": ["name", "owner", "html_url", "fork", "updated_at", "stargazers_count", "forks_count"],
  "properties": {
    "name": {"type": "string"},
    "owner": {"$ref": "#/$defs/owner"},
    "html_url": {"type": "string"},
    "description": {"$ref": "#/$defs/nullableString"},
    "fork": {"type": "boolean"},
    "updated_at": {"type": "string"},
    "stargazers_count": {"type": "number"},
    "language": {"$ref": "#/$defs/nullableString"},
    "forks_count": {"type": "number"},
    "parent": {
      "type": "object",
      "required": ["owner", "html_url", "updated_at", "stargazers_count", "forks_count"],
      "properties": {
        "owner": {"$ref": "#/$defs/owner"},
        "html_url": {"type": "string"},
        "updated_at": {"type": "string"},
        "stargazers_count": {"type": "number"},
        "language": {"$ref": "#/$defs/nullableString"},
        "forks_count": {"type": "number"}
      }
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("repository.json", strings.NewReader(repositorySchema)); err != nil {
		return nil, fmt.Errorf("add repository schema: %w", err)
	}
	s, err := compiler.Compile("repository.json")
	if err != nil {
		return nil, fmt.Errorf("compile repository schema: %w", err)
	}
	return s, nil
}

// validatePayload 校验原始 JSON，失败时返回包装了 ErrInvalidPayload 的错误（含出错位置）。
func validatePayload(schema *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(issues(ve), "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// issues 展开嵌套的校验错误，只保留叶子节点。
func issues(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(n *jsonschema.ValidationError) {
		if len(n.Causes) == 0 {
			loc := n.InstanceLocation
			if loc == "" {
				loc = "#"
			}
			out = append(out, loc+": "+n.Message)
			return
		}
		for _, c := range n.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
