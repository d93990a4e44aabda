package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

var ErrMissingArgument = errors.New("missing required argument")

// reflectParameters builds the JSON schema object for an argument struct.
// Field tags drive it: `json` for names, `jsonschema` for required/enum,
// `jsonschema_description` for free-text descriptions.
func reflectParameters[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	s := reflector.Reflect(v)

	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("tools: unmarshal schema: %v", err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// checkRequired verifies that every top-level field listed under "required"
// in params is present and non-null in args. Types are trusted.
func checkRequired(params map[string]any, args map[string]any) error {
	var missing []string
	for _, name := range requiredFields(params) {
		if v, ok := args[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(missing, ", "))
	}
	return nil
}

func requiredFields(params map[string]any) []string {
	switch req := params["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// decodeArgs validates required fields and decodes a loosely typed argument
// record (JSON numbers arrive as float64) into out.
func decodeArgs(params map[string]any, args map[string]any, out any) error {
	if err := checkRequired(params, args); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}
