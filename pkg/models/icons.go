package models

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed icons.yaml
var iconCatalogYAML []byte

// Icon is one entry of the built-in icon catalog.
type Icon struct {
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category" json:"category"`
}

type iconCatalog struct {
	Icons []Icon `yaml:"icons"`
}

var knownIcons = loadIconCatalog()

func loadIconCatalog() map[string]Icon {
	var catalog iconCatalog
	if err := yaml.Unmarshal(iconCatalogYAML, &catalog); err != nil {
		panic(fmt.Sprintf("invalid embedded icon catalog: %v", err))
	}
	icons := make(map[string]Icon, len(catalog.Icons))
	for _, ic := range catalog.Icons {
		icons[ic.Name] = ic
	}
	return icons
}

// IsKnownIcon reports whether name appears in the built-in icon catalog.
func IsKnownIcon(name string) bool {
	_, ok := knownIcons[name]
	return ok
}

// IconCatalog returns all built-in icons, sorted by name.
func IconCatalog() []Icon {
	icons := make([]Icon, 0, len(knownIcons))
	for _, ic := range knownIcons {
		icons = append(icons, ic)
	}
	sort.Slice(icons, func(i, j int) bool { return icons[i].Name < icons[j].Name })
	return icons
}
