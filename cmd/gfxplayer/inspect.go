package main

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/document"
	"github.com/spf13/cobra"
)

func runInspect(cmd *cobra.Command, args []string) error {
	doc, err := document.Load(args[0])
	if err != nil {
		return err
	}
	data, err := document.MarshalYAML(doc)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}

	if convertTo != "" {
		if err := document.Save(convertTo, doc); err != nil {
			return err
		}
		common.Logger().Info("document saved", "path", convertTo)
	}
	return nil
}
