package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/flatjson/pkg/schema"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Describe the tables, structs and enums of the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := appFrom(cmd).loadSchema()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range s.Enums {
				fmt.Fprintf(out, "enum %s : %s\n", e.Name, e.Underlying)
				for _, v := range e.Values {
					fmt.Fprintf(out, "  %s = %d\n", v.Name, v.Value)
				}
			}
			for _, o := range s.Objects {
				kind := "table"
				if o.IsStruct {
					kind = "struct"
				}
				suffix := ""
				if o == s.Root {
					suffix = " (root)"
				}
				fmt.Fprintf(out, "%s %s%s\n", kind, o.Name, suffix)
				for _, f := range o.Fields {
					fmt.Fprintf(out, "  %s: %s\n", f.Name, typeString(f.Type))
				}
			}
			return nil
		},
	}
}

func typeString(t schema.Type) string {
	switch {
	case t.BaseType == schema.Vector:
		return "[" + typeString(schema.Type{BaseType: t.Element, Object: t.Object, Enum: t.Enum}) + "]"
	case t.Enum != nil:
		return t.Enum.Name
	case t.BaseType == schema.Obj:
		return t.Object.Name
	default:
		return t.BaseType.String()
	}
}
