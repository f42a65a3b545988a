package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vilterp/nltemplate/pkg/gnn"
	"github.com/vilterp/nltemplate/pkg/lang"
	"github.com/vilterp/nltemplate/pkg/template"
)

var (
	gnnOut        int
	gnnEdgeAttrs  bool
	gnnActivation string
	gnnSave       bool
)

// parseLayer reads kind:in_channels[:name].
func parseLayer(arg string, base gnn.Base) (*gnn.Module, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, errors.Errorf("layer %q: expected kind:in_channels[:name]", arg)
	}
	in, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.Errorf("layer %q: in_channels is not a number", arg)
	}
	base.InChannels = in
	if len(parts) == 3 {
		base.Name = parts[2]
	}
	spec, err := gnn.NewSpec(parts[0], base)
	if err != nil {
		return nil, err
	}
	module, err := gnn.NewModule(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "layer %q", arg)
	}
	return module, nil
}

func buildStack(args []string, out int, base gnn.Base) (*template.Template, error) {
	modules := make([]*gnn.Module, len(args))
	for idx, arg := range args {
		module, err := parseLayer(arg, base)
		if err != nil {
			return nil, err
		}
		modules[idx] = module
	}
	tmpl := template.New(template.WithFactory(newFactory()))
	if _, err := gnn.Stack(tmpl, out, modules...); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func runGNN(cmd *cobra.Command, args []string) error {
	base := gnn.Base{HasEdgeAttrs: gnnEdgeAttrs}
	if gnnActivation != "" {
		act, err := lang.ParseActivation(gnnActivation)
		if err != nil {
			return err
		}
		base.Activation = act
	}
	tmpl, err := buildStack(args, gnnOut, base)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tmpl.String())

	if gnnSave {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Put(tmpl); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "saved", tmpl.ID())
	}
	return nil
}
