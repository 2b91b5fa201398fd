package main

import (
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"uon-marshaller/node"
	"uon-marshaller/options"
	"uon-marshaller/uon"
)

var (
	optionsFile string
	expand      bool
	sortKeys    bool
	debug       bool
)

func main() {
	root := &cobra.Command{
		Use:          "uon-marshaller",
		Short:        "Convert between YAML/JSON documents and UON form encoding",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&optionsFile, "options", "", "YAML file with marshalling options")
	root.PersistentFlags().BoolVar(&expand, "expand", false, "render sequences as repeated query pairs")
	root.PersistentFlags().BoolVar(&sortKeys, "sort", false, "sort map keys and record properties")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "dump the intermediate value to stderr")

	root.AddCommand(encodeCommand(), decodeCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func encodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode a YAML or JSON document as UON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args)
			if err != nil {
				return err
			}

			// YAML is a superset of JSON, one decoder covers both inputs.
			var v any
			if err := yaml.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("decoding input: %w", err)
			}

			if debug {
				spew.Fdump(cmd.ErrOrStderr(), v)
			}

			opts, err := loadOptions()
			if err != nil {
				return err
			}

			ser := &uon.Serializer{Options: opts}

			diags, err := ser.Write(cmd.OutOrStdout(), v)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout())

			for _, w := range diags.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			return nil
		},
	}
}

func decodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a UON document into YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args)
			if err != nil {
				return err
			}

			opts, err := loadOptions()
			if err != nil {
				return err
			}

			parser := &uon.Parser{Options: opts}

			v, err := parser.Unmarshal(trimNewline(data))
			if err != nil {
				return err
			}

			if debug {
				spew.Fdump(cmd.ErrOrStderr(), v)
			}

			out, err := yaml.Marshal(plain(v))
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}
}

// plain rewrites parser output into plain maps and slices for the YAML
// encoder. Entry order is not preserved, yaml renders map keys sorted.
func plain(v any) any {
	switch t := v.(type) {
	case node.OrderedMap:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}

		return m

	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}

		return out
	}

	return v
}

func loadOptions() (*options.Options, error) {
	opts := options.Default()

	if optionsFile != "" {
		loaded, err := options.Load(optionsFile)
		if err != nil {
			return nil, err
		}

		opts = loaded
	}

	if expand {
		opts.ExpandedParams = true
	}

	if sortKeys {
		opts.SortMaps = true
		opts.SortProperties = true
	}

	return opts, nil
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return os.ReadFile(args[0])
	}

	return io.ReadAll(os.Stdin)
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}

	return data
}
