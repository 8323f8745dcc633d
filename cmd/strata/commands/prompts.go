package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/compose"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/layers"
	"github.com/teranos/strata/logger"
)

// PromptsCmd lists, selects, inspects and validates prompt layers
var PromptsCmd = &cobra.Command{
	Use:   "prompts [STACK]",
	Short: "List or configure prompt layers",
	Long: `Without arguments, list the available layers, the active stack and the
bundles the layers define. With a comma-separated STACK, make it the active
stack (base first, overrides later).

Examples:
  strata prompts
  strata prompts default,team
  strata prompts --show-resolved explain_cpp/system
  strata prompts --render chat/system
  strata prompts --render explain_cpp/user --var files_block='int x;'
  strata prompts --validate --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrompts,
}

func init() {
	f := PromptsCmd.Flags()
	f.Bool("json", false, "Output the listing as JSON")
	f.String("show-resolved", "", "Show the fragments and composed template for BUNDLE/ROLE")
	f.String("render", "", "Render BUNDLE/ROLE with the stack variables")
	f.StringToString("var", nil, "Extra template variable for --render (key=value, repeatable)")
	f.Bool("validate", false, "Check that every bundle of the active stack resolves and parses")
	f.Bool("watch", false, "With --validate, validate again whenever a layer file changes")
}

type promptListing struct {
	Layers     []string `json:"layers"`
	Stack      []string `json:"stack"`
	StackLabel string   `json:"stack_label"`
	Bundles    []string `json:"bundles"`
}

func runPrompts(cmd *cobra.Command, args []string) error {
	showResolved, _ := cmd.Flags().GetString("show-resolved")
	render, _ := cmd.Flags().GetString("render")
	validate, _ := cmd.Flags().GetBool("validate")
	watch, _ := cmd.Flags().GetBool("watch")

	if len(args) == 1 && (showResolved != "" || render != "" || validate) {
		return errors.NewInvalidRequestError("Cannot combine stack updates with --show-resolved, --render, or --validate.")
	}
	if watch && !validate {
		return errors.NewInvalidRequestError("--watch requires --validate")
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	composer := newComposer(cfg)
	store := composer.Store()
	out := cmd.OutOrStdout()

	switch {
	case len(args) == 1:
		stack, err := layers.ParseStackArg(args[0])
		if err != nil {
			return err
		}
		if err := store.WriteActiveStack(stack); err != nil {
			return err
		}
		fmt.Fprintf(out, "Active prompt stack set to: %s\n", strings.Join(stack, ","))
		return nil

	case validate && watch:
		return watchValidate(cmd.Context(), composer, out)

	case validate:
		if err := validateActive(composer); err != nil {
			return err
		}
		fmt.Fprintln(out, "Prompt stack validation passed.")
		return nil

	case showResolved != "":
		return showResolvedSources(composer, showResolved, out)

	case render != "":
		bundle, role, err := layers.ParseBundleRole(render)
		if err != nil {
			return err
		}
		stack, _, err := store.ActiveStack()
		if err != nil {
			return err
		}
		vars, _ := cmd.Flags().GetStringToString("var")
		extra := make(map[string]any, len(vars))
		for k, v := range vars {
			extra[k] = v
		}
		text, err := composer.Render(stack, bundle, role, extra)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	return listPrompts(cmd, store, out)
}

func validateActive(composer *compose.Composer) error {
	stack, _, err := composer.Store().ActiveStack()
	if err != nil {
		return err
	}
	return composer.ValidateStack(stack)
}

func showResolvedSources(composer *compose.Composer, value string, out io.Writer) error {
	bundle, role, err := layers.ParseBundleRole(value)
	if err != nil {
		return err
	}
	stack, _, err := composer.Store().ActiveStack()
	if err != nil {
		return err
	}
	text, sources, err := composer.ComposeText(stack, bundle, role, "")
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Resolved prompt stack:")
	fmt.Fprintf(out, "  Stack: %s\n", strings.Join(sources.Stack, ", "))
	fmt.Fprintf(out, "  Body: %s\n", sources.BodyPath)
	if len(sources.PrependPaths) > 0 {
		fmt.Fprintln(out, "  Prepends:")
		for _, p := range sources.PrependPaths {
			fmt.Fprintf(out, "    - %s\n", p)
		}
	}
	if len(sources.AppendPaths) > 0 {
		fmt.Fprintln(out, "  Appends:")
		for _, p := range sources.AppendPaths {
			fmt.Fprintf(out, "    - %s\n", p)
		}
	}
	fmt.Fprint(out, "\nComposed template:\n\n")
	fmt.Fprintln(out, text)
	return nil
}

func listPrompts(cmd *cobra.Command, store *layers.Store, out io.Writer) error {
	names, err := store.ListLayers()
	if err != nil {
		return err
	}
	stack, source, err := store.ActiveStack()
	if err != nil {
		return err
	}
	label := "Active stack"
	if source == layers.StackFromDefault {
		label = "Recommended stack"
	}
	bundles, err := store.ListBundles(names)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, promptListing{Layers: names, Stack: stack, StackLabel: label, Bundles: bundles})
	}

	fmt.Fprintln(out, "Available prompt layers:")
	if len(names) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, name := range names {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	fmt.Fprintf(out, "%s: %s\n", label, strings.Join(stack, ", "))
	if len(bundles) == 0 {
		fmt.Fprintln(out, "No prompt bundles found.")
		return nil
	}
	fmt.Fprintln(out, "Discovered prompt bundles:")
	for _, b := range bundles {
		fmt.Fprintf(out, "  - %s\n", b)
	}
	return nil
}

// watchValidate validates once, then again after every change, until interrupted
func watchValidate(ctx context.Context, composer *compose.Composer, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Logger.Named("prompts.watch")
	check := func() {
		if err := validateActive(composer); err != nil {
			display.ErrorPanel(out, err)
			return
		}
		fmt.Fprintln(out, "Prompt stack validation passed.")
	}

	watcher, err := layers.NewWatcher(composer.Store(), 200*time.Millisecond)
	if err != nil {
		return err
	}
	watcher.OnChange(func(changed []string) {
		log.Infow("Layer files changed", logger.FieldCount, len(changed))
		check()
	})

	check()
	watcher.Start()
	fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", composer.Store().Root())
	<-ctx.Done()
	return watcher.Stop()
}
