package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Seed struct {
	FeeTiers        []SeedFeeTier       `yaml:"feeTiers"`
	ReleasePolicies []SeedReleasePolicy `yaml:"releasePolicies"`
}

type SeedFeeTier struct {
	ID            string `yaml:"id"`
	Provider      string `yaml:"provider"`
	Currency      string `yaml:"currency"`
	MinimumAmount int64  `yaml:"minimumAmount"`
	MaximumAmount *int64 `yaml:"maximumAmount"`
	PercentFee    string `yaml:"percentFee"`
	FlatFee       int64  `yaml:"flatFee"`
	Status        string `yaml:"status"`
}

type SeedReleasePolicy struct {
	ID                     string `yaml:"id"`
	PolicyType             string `yaml:"policyType"`
	Provider               string `yaml:"provider"`
	Currency               string `yaml:"currency"`
	ThresholdAmount        *int64 `yaml:"thresholdAmount"`
	ThresholdHours         *int64 `yaml:"thresholdHours"`
	RequiresComplianceHold bool   `yaml:"requiresComplianceHold"`
	RequiresManualApproval bool   `yaml:"requiresManualApproval"`
	OrderIndex             int    `yaml:"orderIndex"`
	Status                 string `yaml:"status"`
}

func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file %q: %w", path, err)
	}

	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}
