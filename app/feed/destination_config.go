package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type typeDefaults struct {
	maxLength  int
	skipMarker string
}

var destinationDefaults = map[string]typeDefaults{
	DestinationTypeThreads: {maxLength: 400, skipMarker: "#nothreads"},
	DestinationTypeTwitter: {maxLength: 280, skipMarker: "#notwitter"},
	DestinationTypeBluesky: {maxLength: 200, skipMarker: "#nobluesky"},
	DestinationTypePlurk:   {maxLength: 360, skipMarker: "#noplurk"},
}

var requiredCredentials = map[string][]string{
	DestinationTypeThreads: {"user_id", "access_token"},
	DestinationTypeTwitter: {"consumer_key", "consumer_secret", "access_token", "access_token_secret"},
	DestinationTypeBluesky: {"handle", "app_password"},
	DestinationTypePlurk:   {"app_key", "app_secret", "access_token", "access_token_secret"},
}

// RequiredCredentials lists the credential keys a destination type cannot post without.
func RequiredCredentials(destinationType string) ([]string, bool) {
	keys, ok := requiredCredentials[destinationType]
	return keys, ok
}

type DestinationConfigCache struct {
	destinationsDir string
	cache           map[string]*DestinationConfig
	mu              sync.RWMutex
}

func NewDestinationConfigCache(destinationsDir string) *DestinationConfigCache {
	return &DestinationConfigCache{
		destinationsDir: destinationsDir,
		cache:           make(map[string]*DestinationConfig),
	}
}

func (dc *DestinationConfigCache) Run() error {
	if _, err := os.Stat(dc.destinationsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(dc.destinationsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := dc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Destination configuration loaded", "destination", name, "type", config.Type, "enabled", config.Enabled)
	}

	return nil
}

func (dc *DestinationConfigCache) LoadConfig(name string) (*DestinationConfig, error) {
	configFile := dc.getConfigFilePath(name)
	config, err := dc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := dc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.cache[config.Name] = config

	return config, nil
}

func (dc *DestinationConfigCache) GetConfig(name string) (*DestinationConfig, error) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	config, ok := dc.cache[name]
	if !ok {
		return nil, fmt.Errorf("destination config with name '%s' not found", name)
	}
	return config, nil
}

func (dc *DestinationConfigCache) GetConfigs() map[string]*DestinationConfig {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	configsCopy := make(map[string]*DestinationConfig, len(dc.cache))
	for k, v := range dc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

// GetEnabledConfigs returns enabled destinations sorted by name, so runs visit them in a stable order.
func (dc *DestinationConfigCache) GetEnabledConfigs() []*DestinationConfig {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	var enabled []*DestinationConfig
	for _, v := range dc.cache {
		if v.Enabled {
			enabled = append(enabled, v)
		}
	}
	slices.SortFunc(enabled, func(a, b *DestinationConfig) int {
		return strings.Compare(a.Name, b.Name)
	})
	return enabled
}

func (dc *DestinationConfigCache) GetConfigCount() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.cache)
}

// UpdateCredential rewrites one credential in the destination file, keeping the rest of the document intact.
func (dc *DestinationConfigCache) UpdateCredential(name, key, value string) error {
	configFile := dc.getConfigFilePath(name)

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("unexpected document structure in %s", configFile)
	}

	credentials := mappingValue(doc.Content[0], "credentials")
	if credentials == nil {
		credentials = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		doc.Content[0].Content = append(doc.Content[0].Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "credentials"},
			credentials)
	}

	if node := mappingValue(credentials, key); node != nil {
		node.Kind = yaml.ScalarNode
		node.Tag = "!!str"
		node.Value = value
	} else {
		credentials.Content = append(credentials.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	if err := os.WriteFile(configFile, out, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()
	if config, ok := dc.cache[name]; ok {
		if config.Credentials == nil {
			config.Credentials = make(map[string]string)
		}
		config.Credentials[key] = value
	}

	return nil
}

func (dc *DestinationConfigCache) parseConfig(configFile string) (*DestinationConfig, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config DestinationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Type = strings.ToLower(strings.TrimSpace(config.Type))

	if defaults, ok := destinationDefaults[config.Type]; ok {
		if config.Sanitize.MaxLength == 0 {
			config.Sanitize.MaxLength = defaults.maxLength
		}
		if config.Sanitize.SkipMarker == "" {
			config.Sanitize.SkipMarker = defaults.skipMarker
		}
	}
	if config.Poll.Interval == 0 {
		config.Poll.Interval = 3
	}
	if config.Poll.MaxAttempts == 0 {
		config.Poll.MaxAttempts = 10
	}
	if config.Timeout == 0 {
		config.Timeout = 30
	}
	if config.Reply.Prefix == "" {
		config.Reply.Prefix = "Sync from: "
	}

	for key, value := range config.Credentials {
		config.Credentials[key] = os.ExpandEnv(value)
	}

	return &config, nil
}

func (dc *DestinationConfigCache) validateConfig(config *DestinationConfig) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	required, ok := RequiredCredentials(config.Type)
	if !ok {
		return fmt.Errorf("unknown destination type '%s'", config.Type)
	}

	nonNegativeFields := map[string]int{
		"max length":           config.Sanitize.MaxLength,
		"poll interval":        config.Poll.Interval,
		"poll max attempts":    config.Poll.MaxAttempts,
		"timeout":              config.Timeout,
		"pacing after media":   config.Pacing.AfterMedia,
		"pacing before reply":  config.Pacing.BeforeReply,
		"pacing between items": config.Pacing.BetweenItems,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if !config.Enabled {
		return nil
	}

	for _, key := range required {
		if config.Credential(key) == "" {
			return fmt.Errorf("credential '%s' is required for %s destinations", key, config.Type)
		}
	}

	return nil
}

func (dc *DestinationConfigCache) getConfigFilePath(name string) string {
	return filepath.Join(dc.destinationsDir, name+".yml")
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
