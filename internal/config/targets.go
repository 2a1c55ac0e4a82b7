package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/forager-sh/forager/internal/types"
)

// LoadTargets reads target definitions from a YAML file. The file holds a
// top-level "targets" list; definitions are data, not code.
func LoadTargets(path string) ([]*types.Target, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read targets file %s: %w", path, err)
	}

	var wrapper struct {
		Targets []*types.Target `mapstructure:"targets"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal targets file %s: %w", path, err)
	}
	if len(wrapper.Targets) == 0 {
		return nil, fmt.Errorf("targets file %s defines no targets", path)
	}

	seen := make(map[string]bool, len(wrapper.Targets))
	for _, t := range wrapper.Targets {
		if err := ValidateTarget(t); err != nil {
			return nil, err
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate target id %q", t.ID)
		}
		seen[t.ID] = true
	}

	return wrapper.Targets, nil
}

// FilterTargets keeps only targets whose id appears in the comma-separated
// selection. An empty selection keeps everything.
func FilterTargets(targets []*types.Target, selection string) ([]*types.Target, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return targets, nil
	}

	wanted := make(map[string]bool)
	for _, id := range strings.Split(selection, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}

	kept := make([]*types.Target, 0, len(wanted))
	for _, t := range targets {
		if wanted[t.ID] {
			kept = append(kept, t)
			delete(wanted, t.ID)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		return nil, fmt.Errorf("unknown target ids: %s", strings.Join(missing, ", "))
	}
	return kept, nil
}
