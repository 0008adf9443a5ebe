package features

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix     = "COMMROUTER_FEATURE_"
	envDisableAll = "COMMROUTER_FEATURES_DISABLE_ALL"
)

// LoadFromConfig applies the "features" section of the configuration file.
// Unknown names are rejected so a typo does not silently keep the default.
func (fm *FlagManager) LoadFromConfig(flags map[string]bool) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var unknown []string
	now := time.Now()
	for name, enabled := range flags {
		flag, exists := fm.flags[name]
		if !exists {
			unknown = append(unknown, name)
			continue
		}
		flag.Enabled = enabled
		flag.UpdatedAt = now
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown feature flags: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// LoadFromEnvironment applies COMMROUTER_FEATURE_<FLAG_NAME>=true/false
// overrides. COMMROUTER_FEATURES_DISABLE_ALL=true turns every flag off.
func (fm *FlagManager) LoadFromEnvironment() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	now := time.Now()
	if disableAll, _ := strconv.ParseBool(os.Getenv(envDisableAll)); disableAll {
		for _, flag := range fm.flags {
			flag.Enabled = false
			flag.UpdatedAt = now
		}
		return
	}

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			continue
		}
		if flag, exists := fm.flags[strings.ToLower(strings.TrimPrefix(key, envPrefix))]; exists {
			flag.Enabled = enabled
			flag.UpdatedAt = now
		}
	}
}

// ToConfig exports the current flag state in the configuration file shape
func (fm *FlagManager) ToConfig() map[string]bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	out := make(map[string]bool, len(fm.flags))
	for name, flag := range fm.flags {
		out[name] = flag.Enabled
	}
	return out
}
