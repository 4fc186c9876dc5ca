// Package packaging turns a finished run into per-platform file maps, a
// staging tree and a zip archive.
package packaging

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/validation"
)

// Supported platforms.
const (
	PlatformWeb     = "web"
	PlatformMobile  = "mobile"
	PlatformDesktop = "desktop"
)

// Config is the packaging input.
type Config struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	Platforms    []string `json:"platforms" validate:"required,min=1,dive,oneof=web mobile desktop"`
	Architecture string   `json:"architecture"`
}

// Validate rejects a config before any file is written.
func (c Config) Validate() error {
	return validation.Struct(c)
}

// Slug is the lowercased name with spaces replaced by underscores, used for
// the manifest name, the staging directory and the archive file.
func (c Config) Slug() string {
	s := strings.ToLower(strings.TrimSpace(c.Name))
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "my_app"
	}
	return s
}

// Tree is a declared directory skeleton: folders map to nested Trees and
// files map to "".
type Tree map[string]any

// Files maps a relative path to its content. A nil content is an empty file.
type Files map[string]*string

// Generator produces one platform's skeleton and files.
type Generator interface {
	Platform() string
	Structure() Tree
	Files() Files
}

// NewGenerator returns the generator for platform.
func NewGenerator(platform string, cfg Config) (Generator, error) {
	switch platform {
	case PlatformWeb:
		return webGenerator{cfg}, nil
	case PlatformMobile:
		return mobileGenerator{cfg}, nil
	case PlatformDesktop:
		return desktopGenerator{cfg}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
}

// PlatformOutput is what one generator produced.
type PlatformOutput struct {
	Structure Tree  `json:"structure"`
	Files     Files `json:"files"`
}

// Statistics summarizes a bundle.
type Statistics struct {
	TotalFiles         int `json:"total_files"`
	TotalStages        int `json:"total_stages"`
	PlatformsGenerated int `json:"platforms_generated"`
}

// Bundle is the packaging artifact of a successful run.
type Bundle struct {
	ProjectName  string                            `json:"project_name"`
	Platforms    map[string]PlatformOutput         `json:"platforms"`
	PackagePath  string                            `json:"package_path"`
	ArchiveBytes int64                             `json:"archive_bytes"`
	Statistics   Statistics                        `json:"statistics"`
	Stages       map[string]specialist.StageResult `json:"stages,omitempty"`
}
