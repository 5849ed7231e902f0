package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/abivars"
)

// NewDocCmd creates the doc command.
func NewDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc [NAME]",
		Short: "Show documentation for an engine input variable",
		Long: `Doc looks up an engine input variable in the built-in registry: its
meaning, type, dimensions, default and related variables.

Examples:
  # Full documentation for one variable
  abiconv doc ecut

  # Find variables by substring of their name or mnemonics
  abiconv doc --find cutoff

  # List every documented variable
  abiconv doc --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDocCmd,
	}

	cmd.Flags().StringP("find", "f", "",
		"Search variables by substring of name or mnemonics")
	cmd.Flags().BoolP("list", "l", false,
		"List all documented variables")

	return cmd
}

// runDocCmd executes the doc command.
func runDocCmd(cmd *cobra.Command, args []string) error {
	find, err := cmd.Flags().GetString("find")
	if err != nil {
		return err
	}
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}

	if list {
		return listVariables()
	}
	if find != "" {
		return findVariables(find)
	}

	if len(args) == 0 {
		return errors.New("variable name required (or use --find / --list)")
	}
	return printVariable(args[0])
}

// printVariable prints the full documentation of one variable.
func printVariable(name string) error {
	v, ok := abivars.Lookup(name)
	if !ok {
		matches := abivars.Search(name)
		if len(matches) == 0 {
			return fmt.Errorf("unknown variable %q (use --list to see all)", name)
		}
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return fmt.Errorf("unknown variable %q, did you mean: %s", name, strings.Join(names, ", "))
	}

	fmt.Printf("%s (%s)\n", v.Name, v.Section)
	fmt.Printf("  %s\n\n", v.Mnemonics)
	fmt.Printf("  type:     %s, %s\n", v.VarType, v.Dimensions)
	fmt.Printf("  default:  %s\n", v.Default)
	if v.Requires != "" {
		fmt.Printf("  requires: %s\n", v.Requires)
	}

	fmt.Println()
	for _, line := range wrapText(v.Text, 76) {
		fmt.Printf("  %s\n", line)
	}

	if len(v.SeeAlso) > 0 {
		fmt.Printf("\n  See also: %s\n", strings.Join(v.SeeAlso, ", "))
	}
	return nil
}

// findVariables prints the variables matching the substring.
func findVariables(substr string) error {
	matches := abivars.Search(substr)
	if len(matches) == 0 {
		fmt.Printf("No variables matching %q\n", substr)
		return nil
	}

	fmt.Printf("Variables matching %q (%d):\n\n", substr, len(matches))
	for _, v := range matches {
		fmt.Printf("  %-14s %s\n", v.Name, v.Mnemonics)
	}
	return nil
}

// listVariables prints every documented variable.
func listVariables() error {
	names := abivars.Names()
	fmt.Printf("Documented variables (%d):\n\n", len(names))
	for _, name := range names {
		v, _ := abivars.Lookup(name)
		fmt.Printf("  %-14s %s\n", v.Name, v.Mnemonics)
	}
	fmt.Println("\nUse 'abiconv doc <name>' for the full documentation.")
	return nil
}

// wrapText breaks text into lines of at most width runes, on spaces.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
