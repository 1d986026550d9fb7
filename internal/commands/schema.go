package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dotcommander/errfix/internal/output"
)

// mutating lists command paths that write files or persisted state.
var mutating = map[string]bool{
	"errfix apply":       true,
	"errfix cache clear": true,
	"errfix config set":  true,
	"errfix analyze":     true,
}

type commandSchema struct {
	Command     string       `json:"command"`
	Description string       `json:"description"`
	Mutates     bool         `json:"mutates"`
	Flags       []flagSchema `json:"flags"`
}

type flagSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// newSchemaCmd prints the flags of every runnable command so scripts can
// drive errfix without scraping --help.
func newSchemaCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show command flag schemas for scripting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []commandSchema
			collectSchemas(root, &out)
			type resp struct {
				Commands []commandSchema `json:"commands"`
			}
			return output.PrintSuccess(resp{Commands: out})
		},
	}
}

func collectSchemas(cmd *cobra.Command, out *[]commandSchema) {
	if cmd.Runnable() && cmd.HasParent() && cmd.Name() != "schema" && !cmd.Hidden {
		*out = append(*out, buildSchema(cmd))
	}
	for _, child := range cmd.Commands() {
		collectSchemas(child, out)
	}
}

func buildSchema(cmd *cobra.Command) commandSchema {
	s := commandSchema{
		Command:     cmd.CommandPath(),
		Description: cmd.Short,
		Mutates:     mutating[cmd.CommandPath()],
		Flags:       []flagSchema{},
	}
	seen := map[string]bool{}
	add := func(f *pflag.Flag) {
		if f.Hidden || seen[f.Name] || f.Name == "help" {
			return
		}
		seen[f.Name] = true
		fs := flagSchema{
			Name:        f.Name,
			Type:        jsonType(f.Value.Type()),
			Description: f.Usage,
			Required:    strings.Contains(strings.ToLower(f.Usage), "(required)"),
		}
		if f.DefValue != "" {
			fs.Default = typedDefault(f.Value.Type(), f.DefValue)
		}
		s.Flags = append(s.Flags, fs)
	}
	cmd.NonInheritedFlags().VisitAll(add)
	cmd.InheritedFlags().VisitAll(add)
	return s
}

func jsonType(flagType string) string {
	switch flagType {
	case "int", "int64", "int32", "uint", "uint64", "uint32":
		return "integer"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

func typedDefault(flagType, raw string) any {
	switch jsonType(flagType) {
	case "boolean":
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	case "integer":
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return raw
}
