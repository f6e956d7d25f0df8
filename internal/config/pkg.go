package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// PackageInfo is the subset of package.json remixure reads.
type PackageInfo struct {
	DefaultApp      string            `json:"default_app"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// ReadPackage reads package.json from the base folder. A missing or invalid
// file yields an empty PackageInfo.
func ReadPackage(bc BuildContext) PackageInfo {
	var info PackageInfo
	data, err := os.ReadFile(bc.Path("package.json"))
	if err != nil {
		return info
	}
	_ = json.Unmarshal(data, &info)
	return info
}

// HasDependency reports whether name is declared in package.json or
// installed under node_modules.
func HasDependency(bc BuildContext, name string) bool {
	info := ReadPackage(bc)
	if _, ok := info.Dependencies[name]; ok {
		return true
	}
	if _, ok := info.DevDependencies[name]; ok {
		return true
	}
	fi, err := os.Stat(filepath.Join(bc.BaseFolder, "node_modules", name))
	return err == nil && fi.IsDir()
}
