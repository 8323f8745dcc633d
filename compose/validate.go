package compose

import (
	"os"
	"path/filepath"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/layers"
	"github.com/teranos/strata/logger"
)

// ValidateStack checks that every bundle in stack resolves for both roles,
// that the variables load, and that every template file parses. It stops
// at the first problem.
func (c *Composer) ValidateStack(stack []string) error {
	if len(stack) == 0 {
		return errors.NewConfigError("prompt stack must include at least one layer")
	}
	if err := c.store.CheckLayers(stack); err != nil {
		return err
	}

	bundles, err := c.store.ListBundles(stack)
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		return errors.NewPromptError("no prompt bundles found in stack %v", stack)
	}

	for _, bundle := range bundles {
		for _, role := range layers.Roles {
			if _, err := c.ResolveSources(stack, bundle, role); err != nil {
				return err
			}
		}
	}

	if _, err := c.LoadVariables(stack); err != nil {
		return err
	}

	funcs := baseFuncs()
	for _, layer := range stack {
		files, err := c.store.TemplateFiles(layer)
		if err != nil {
			return err
		}
		layerRoot, err := c.store.LayerRoot(layer)
		if err != nil {
			return err
		}
		for _, rel := range files {
			p := filepath.Join(layerRoot, filepath.FromSlash(rel))
			data, err := os.ReadFile(p)
			if err != nil {
				return errors.WrapPrompt(err, "failed to read template %s", p)
			}
			if _, err := parseTemplate(layer+"/"+rel, string(data), funcs); err != nil {
				return err
			}
		}
	}

	c.logger.Infow("Prompt stack validated",
		logger.FieldStack, stack,
		logger.FieldCount, len(bundles))
	return nil
}
