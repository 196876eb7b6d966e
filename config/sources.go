package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string { return fmt.Sprintf("JsonFile(%s)", s.Path) }

func (s *JsonFileSource) Load() (map[string]any, error) {
	data, err := readOptional(s.Path, s.Optional)
	if data == nil || err != nil {
		return map[string]any{}, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse JSON %s: %w", s.Path, err)
	}
	return out, nil
}

type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string { return fmt.Sprintf("YamlFile(%s)", s.Path) }

func (s *YamlFileSource) Load() (map[string]any, error) {
	data, err := readOptional(s.Path, s.Optional)
	if data == nil || err != nil {
		return map[string]any{}, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", s.Path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// readOptional returns nil data without error when an optional file is
// missing.
func readOptional(path string, optional bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// EnvironmentVariableSource reads PREFIX_A_B=v as a:b = v.
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	pairs := make(map[string]string)
	for _, env := range os.Environ() {
		k, v, ok := strings.Cut(env, "=")
		if ok {
			pairs[k] = v
		}
	}
	return nestPairs(s.Prefix, pairs), nil
}

// DotenvSource reads a .env file with the same key rules as
// EnvironmentVariableSource.
type DotenvSource struct {
	Path     string
	Prefix   string
	Optional bool
}

func (s *DotenvSource) Name() string { return fmt.Sprintf("Dotenv(%s)", s.Path) }

func (s *DotenvSource) Load() (map[string]any, error) {
	pairs, err := godotenv.Read(s.Path)
	if err != nil {
		if s.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("parse dotenv %s: %w", s.Path, err)
	}
	return nestPairs(s.Prefix, pairs), nil
}

func nestPairs(prefix string, pairs map[string]string) map[string]any {
	out := make(map[string]any)
	for k, v := range pairs {
		if prefix != "" {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			k = strings.TrimPrefix(k, prefix)
		}
		if k == "" {
			continue
		}
		setNestedValue(out, strings.ReplaceAll(strings.ToLower(k), "_", ":"), v)
	}
	return out
}

type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string { return "InMemory" }

func (s *InMemorySource) Load() (map[string]any, error) {
	out := make(map[string]any)
	mergeMaps(out, s.Data)
	return out, nil
}

// setNestedValue stores value at a ":" separated path. String values that
// parse as integers, floats or booleans are converted.
func setNestedValue(data map[string]any, path string, value any) {
	parts := strings.Split(path, ":")
	cur := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			if _, exists := cur[part]; exists {
				return
			}
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}

	if s, ok := value.(string); ok {
		if i, err := strconv.Atoi(s); err == nil {
			value = i
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			value = f
		} else if b, err := strconv.ParseBool(s); err == nil {
			value = b
		}
	}
	cur[parts[len(parts)-1]] = value
}
