package features

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Flag represents a feature flag with metadata
type Flag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
	Tags        []string  `json:"tags,omitempty"`
}

// FlagManager manages feature flags with thread-safe operations
type FlagManager struct {
	flags map[string]*Flag
	mu    sync.RWMutex
}

// NewFlagManager creates an empty flag manager
func NewFlagManager() *FlagManager {
	return &FlagManager{
		flags: make(map[string]*Flag),
	}
}

// NewDefaultFlagManager creates a flag manager holding DefaultFlags
func NewDefaultFlagManager() *FlagManager {
	fm := NewFlagManager()
	fm.InitializeDefaults()
	return fm
}

const (
	// HTTP surface
	FlagRateLimiting  = "rate_limiting"
	FlagAPIVersioning = "api_versioning"
	FlagFlagsEndpoint = "flags_endpoint"

	// Routing pipeline
	FlagEventPublishing = "event_publishing"
	FlagClaimPurge      = "claim_purge"
)

// FlagDefinition contains metadata about a flag
type FlagDefinition struct {
	Name         string
	Description  string
	DefaultValue bool
	Tags         []string
}

// DefaultFlags defines all available feature flags with their defaults
var DefaultFlags = []FlagDefinition{
	{FlagRateLimiting, "Limit webhook requests per client address", true, []string{"api", "security"}},
	{FlagAPIVersioning, "Negotiate the API version from request headers", true, []string{"api"}},
	{FlagFlagsEndpoint, "Expose the current feature flags over HTTP", false, []string{"api", "observability"}},
	{FlagEventPublishing, "Publish routing events to the event bus", true, []string{"routing", "events"}},
	{FlagClaimPurge, "Periodically purge expired message claims", true, []string{"routing", "storage"}},
}

// InitializeDefaults adds every default flag that is not set yet
func (fm *FlagManager) InitializeDefaults() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	now := time.Now()
	for _, def := range DefaultFlags {
		if _, exists := fm.flags[def.Name]; !exists {
			fm.flags[def.Name] = &Flag{
				Name:        def.Name,
				Enabled:     def.DefaultValue,
				Description: def.Description,
				UpdatedAt:   now,
				Tags:        def.Tags,
			}
		}
	}
}

// IsEnabled reports whether the flag exists and is enabled. A nil manager
// reports every flag at its default.
func (fm *FlagManager) IsEnabled(flagName string) bool {
	if fm == nil {
		for _, def := range DefaultFlags {
			if def.Name == flagName {
				return def.DefaultValue
			}
		}
		return false
	}

	fm.mu.RLock()
	defer fm.mu.RUnlock()

	flag, exists := fm.flags[flagName]
	return exists && flag.Enabled
}

// Enable enables a feature flag
func (fm *FlagManager) Enable(flagName string) error {
	return fm.set(flagName, true)
}

// Disable disables a feature flag
func (fm *FlagManager) Disable(flagName string) error {
	return fm.set(flagName, false)
}

func (fm *FlagManager) set(flagName string, enabled bool) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	flag, exists := fm.flags[flagName]
	if !exists {
		return ErrFlagNotFound{Name: flagName}
	}
	flag.Enabled = enabled
	flag.UpdatedAt = time.Now()
	return nil
}

// GetFlag returns a copy of the flag information
func (fm *FlagManager) GetFlag(flagName string) (*Flag, error) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	flag, exists := fm.flags[flagName]
	if !exists {
		return nil, ErrFlagNotFound{Name: flagName}
	}
	return copyFlag(flag), nil
}

// ListFlags returns copies of all flags sorted by name, optionally filtered by tag
func (fm *FlagManager) ListFlags(filterTags ...string) []*Flag {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	result := make([]*Flag, 0, len(fm.flags))
	for _, flag := range fm.flags {
		if len(filterTags) == 0 || hasAnyTag(flag.Tags, filterTags) {
			result = append(result, copyFlag(flag))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if t == w {
				return true
			}
		}
	}
	return false
}

func copyFlag(flag *Flag) *Flag {
	flagCopy := *flag
	if flag.Tags != nil {
		flagCopy.Tags = make([]string, len(flag.Tags))
		copy(flagCopy.Tags, flag.Tags)
	}
	return &flagCopy
}

type ErrFlagNotFound struct {
	Name string
}

func (e ErrFlagNotFound) Error() string {
	return fmt.Sprintf("feature flag not found: %s", e.Name)
}
