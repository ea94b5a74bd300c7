package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pulsewatch/airouter/pkg/config"
)

// runConfig prints the effective configuration after defaults, file and
// environment merging, for debugging deployments.
func runConfig(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
