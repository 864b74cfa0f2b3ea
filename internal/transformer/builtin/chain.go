package builtin

import (
	"transportetl/internal/table"
	"transportetl/internal/transformer"
)

// Column names of the transport dataset.
const (
	ColYear            = "ANIO"
	ColMonth           = "ID_MES"
	ColValue           = "VALOR"
	ColValueNormalized = "VALOR_NORMALIZED"
)

// TransportChain returns the cleaning rules of the transport dataset, in
// order: drop duplicates, drop rows with missing values, coerce the numeric
// columns, then add the chunk-normalized value.
func TransportChain() transformer.Chain {
	return transformer.Chain{
		DeDup{Numeric: []string{ColYear, ColMonth, ColValue}},
		Require{},
		Coerce{Targets: []Target{
			{Column: ColYear, Kind: table.Int64},
			{Column: ColMonth, Kind: table.Int64},
			{Column: ColValue, Kind: table.Float64},
		}},
		Normalize{Source: ColValue, Target: ColValueNormalized},
	}
}
