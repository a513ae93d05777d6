package config

import (
	"fmt"
	"os"
	"path/filepath"

	ierrors "github.com/jrsteele09/go-sso-connect/internal/errors"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// File is the optional on-disk configuration.
//
//	region: eu-west-1
//	scopes: [sso:account:access, codewhisperer:completions]
//	client_name: my-tool
//	refresh_lead: 10m
//	features:
//	  codewhisperer: sso;us-east-1;https://example.awsapps.com/start
type File struct {
	Region      string            `yaml:"region,omitempty"`
	Scopes      []string          `yaml:"scopes,omitempty"`
	ClientName  string            `yaml:"client_name,omitempty"`
	RefreshLead string            `yaml:"refresh_lead,omitempty"`
	Features    map[string]string `yaml:"features,omitempty"`
}

func ConfigFilePath(dir string) string {
	return filepath.Join(dir, configFileName)
}

// ReadFile parses the config file at path. A missing file yields an empty config.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config.ReadFile: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config.ReadFile %s: %w: %w", path, ierrors.ErrInvalidConfig, err)
	}
	return &f, nil
}
