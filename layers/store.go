// Package layers is a read-only view over a directory of prompt layers.
//
// Layout:
//
//	<root>/
//	  active_stack.txt            comma-separated stack selection
//	  <layer>/
//	    variables.yaml            optional layer-scoped variables
//	    shared/                   include-only fragments, never a bundle
//	    <bundle>/
//	      system.prepend.j2
//	      system.j2
//	      system.append.j2
//	      user.j2
//	      ...
package layers

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/strata/errors"
)

// SharedDir holds fragments that templates include but that are not a bundle
const SharedDir = "shared"

// TemplateExt is the extension of every fragment file
const TemplateExt = ".j2"

// Role selects which side of a conversation a fragment is written for
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Roles in the order they are resolved during validation
var Roles = []Role{RoleSystem, RoleUser}

// ParseRole accepts "system" or "user"
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser:
		return Role(s), nil
	}
	return "", errors.NewPromptError("role must be system or user, got %q", s)
}

// FragmentKind distinguishes the three fragment files of a role
type FragmentKind int

const (
	FragmentPrepend FragmentKind = iota
	FragmentBody
	FragmentAppend
)

// FragmentName returns the file name for a role fragment, e.g. "user.prepend.j2"
func FragmentName(role Role, kind FragmentKind) string {
	switch kind {
	case FragmentPrepend:
		return string(role) + ".prepend" + TemplateExt
	case FragmentAppend:
		return string(role) + ".append" + TemplateExt
	default:
		return string(role) + TemplateExt
	}
}

// ParseBundleRole splits "bundle/role"
func ParseBundleRole(value string) (string, Role, error) {
	bundle, roleName, ok := strings.Cut(value, "/")
	if !ok || bundle == "" || roleName == "" || strings.Contains(roleName, "/") {
		return "", "", errors.NewPromptError("expected bundle/role, got %q", value)
	}
	if err := ValidateName(bundle); err != nil {
		return "", "", errors.NewPromptError("invalid bundle name %q", bundle)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return "", "", err
	}
	return bundle, role, nil
}

// ValidateName checks a layer or bundle name
func ValidateName(name string) error {
	if name == "" {
		return errors.NewConfigError("layer name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return errors.NewConfigError("layer name cannot contain whitespace: %q", name)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.NewConfigError("layer name cannot be a path: %q", name)
	}
	return nil
}

// Store reads layers under a root directory. Nothing is cached; every call
// sees the current contents of disk.
type Store struct {
	root string
}

// NewStore returns a store rooted at root
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the layer root directory
func (s *Store) Root() string {
	return s.root
}

// ListLayers returns layer names in alphabetical order. A missing root has no layers.
func (s *Store) ListLayers() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read prompt root %s", s.root)
	}

	layers := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		layers = append(layers, entry.Name())
	}
	sort.Strings(layers)
	return layers, nil
}

// HasLayer reports whether a layer directory exists
func (s *Store) HasLayer(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, name))
	return err == nil && info.IsDir()
}

// LayerRoot returns the directory of a layer, failing if it does not exist
func (s *Store) LayerRoot(name string) (string, error) {
	if !s.HasLayer(name) {
		return "", errors.NewConfigError("prompt layer not found: %s", name)
	}
	return filepath.Join(s.root, name), nil
}

// CheckLayers fails with every unknown name in stack
func (s *Store) CheckLayers(stack []string) error {
	var missing []string
	for _, name := range stack {
		if !s.HasLayer(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.WithHintf(
			errors.NewConfigError("prompt layers not found: %s", strings.Join(missing, ", ")),
			"layers live under %s", s.root)
	}
	return nil
}

// ListBundles returns the sorted union of bundle names over the given layers
func (s *Store) ListBundles(stack []string) ([]string, error) {
	set := map[string]struct{}{}
	for _, layer := range stack {
		layerRoot, err := s.LayerRoot(layer)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(layerRoot)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read layer %s", layer)
		}
		for _, entry := range entries {
			if entry.IsDir() && entry.Name() != SharedDir && !strings.HasPrefix(entry.Name(), ".") {
				set[entry.Name()] = struct{}{}
			}
		}
	}

	bundles := make([]string, 0, len(set))
	for name := range set {
		bundles = append(bundles, name)
	}
	sort.Strings(bundles)
	return bundles, nil
}

// Fragment returns the path of a fragment in one layer and whether it exists
func (s *Store) Fragment(layer, bundle string, role Role, kind FragmentKind) (string, bool, error) {
	if err := ValidateName(bundle); err != nil {
		return "", false, errors.NewPromptError("invalid bundle name %q", bundle)
	}
	layerRoot, err := s.LayerRoot(layer)
	if err != nil {
		return "", false, err
	}
	path := filepath.Join(layerRoot, bundle, FragmentName(role, kind))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return path, false, nil
	}
	return path, true, nil
}

// TemplateFiles returns every fragment file in a layer as slash-separated
// paths relative to the layer root, sorted
func (s *Store) TemplateFiles(layer string) ([]string, error) {
	layerRoot, err := s.LayerRoot(layer)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(layerRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != TemplateExt {
			return nil
		}
		rel, err := filepath.Rel(layerRoot, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk layer %s", layer)
	}
	sort.Strings(files)
	return files, nil
}
