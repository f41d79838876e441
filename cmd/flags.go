package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// OutputFlags selects how a command prints its result.
type OutputFlags struct {
	Format string
}

// AddOutputFlags adds a validated --format flag accepting formats.
func AddOutputFlags(cmd *cobra.Command, formats ...string) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", formats[0],
		fmt.Sprintf("Output format (%s)", strings.Join(formats, "|")))
	AddFlagValidation(cmd, "format", func(value string) error {
		return ValidateFormatWithSuggestion(value, formats)
	})
	return flags
}

// ValidateFormatWithSuggestion accepts one of formats, case-insensitively,
// and suggests the closest match otherwise.
func ValidateFormatWithSuggestion(format string, formats []string) error {
	lower := strings.ToLower(format)
	for _, f := range formats {
		if lower == f {
			return nil
		}
	}
	for _, f := range formats {
		if lower != "" && (strings.HasPrefix(f, lower) || strings.HasPrefix(lower, f)) {
			return fmt.Errorf("invalid format %q, did you mean %q? (supported: %s)", format, f, strings.Join(formats, ", "))
		}
	}
	return fmt.Errorf("invalid format %q (supported: %s)", format, strings.Join(formats, ", "))
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(strings.ToLower(val))
}
