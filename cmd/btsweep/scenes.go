package main

import (
	"fmt"

	"github.com/newthinker/btsweep/internal/sweep"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "Print the scenes the configured sweep expands to",
	RunE:  runScenes,
}

func init() {
	rootCmd.AddCommand(scenesCmd)
}

func runScenes(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	defer log.Sync()
	if err != nil {
		return err
	}

	runner := sweep.New(sweep.NewSet(cfg.Sweep), sweep.OptionsFrom(cfg), log)
	scenes, err := runner.Scenes()
	if err != nil {
		return err
	}

	// a sequence of mappings keeps each scene's keys in parameter order
	docs := &yaml.Node{Kind: yaml.SequenceNode}
	for _, sc := range scenes {
		doc := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range sc.Keys() {
			v, _ := sc.Get(k)
			var val yaml.Node
			if err := val.Encode(v); err != nil {
				return fmt.Errorf("encoding %s: %w", k, err)
			}
			doc.Content = append(doc.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: k}, &val)
		}
		docs.Content = append(docs.Content, doc)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encoding scenes: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d scenes\n", len(scenes))
	return nil
}
