// Package validation checks user-supplied output and sweep options.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/price-allocation/pkg/constants"
)

// OutputFormats lists the formats output.Format can render.
var OutputFormats = []string{constants.OutputFormatPretty, constants.OutputFormatCSV}

// ValidateOutputFormat rejects formats that output.Format cannot render.
// Matching is exact.
func ValidateOutputFormat(format string) error {
	for _, f := range OutputFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format %q, expected one of: %s", format, strings.Join(OutputFormats, ", "))
}
