package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

type EtcdOptions struct {
	Endpoints   []string      `json:"endpoints"`
	Username    string        `json:"username"`
	Password    string        `json:"password"`
	Prefix      string        `json:"prefix"`
	Timeout     time.Duration `json:"-"`
	DialTimeout time.Duration `json:"-"`
}

// EtcdSource reads every key under Prefix. "/a/b" becomes a:b, and values
// holding JSON or YAML documents are expanded.
type EtcdSource struct {
	Options EtcdOptions
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("read etcd prefix %s: %w", prefix, err)
	}

	out := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := strings.TrimPrefix(strings.TrimPrefix(string(kv.Key), s.Options.Prefix), "/")
		if key == "" {
			continue
		}
		setNestedValue(out, strings.ReplaceAll(key, "/", ":"), decodeEtcdValue(kv.Value))
	}
	return out, nil
}

func decodeEtcdValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	if err := yaml.Unmarshal(raw, &v); err == nil {
		if _, scalar := v.(string); !scalar && v != nil {
			return v
		}
	}
	return string(raw)
}
