// Package schema extracts queryable variable names from ERDDAP .dds
// documents. The declaration grammar is a closed set of DAP primitive types,
// so a single expression over the raw text is enough.
package schema

import "regexp"

var declPattern = regexp.MustCompile(`\b(?:Byte|Int16|UInt16|Int32|UInt32|Float32|Float64|String)\s+(\w+);`)

// ExtractVariables returns every declared variable name in document order.
// The order feeds the download query string verbatim, so it must be stable.
// A document with no declarations yields an empty slice, never an error.
func ExtractVariables(document string) []string {
	matches := declPattern.FindAllStringSubmatch(document, -1)
	variables := make([]string, 0, len(matches))
	for _, m := range matches {
		variables = append(variables, m[1])
	}
	return variables
}
