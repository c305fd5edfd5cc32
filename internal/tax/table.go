// Package tax resolves ICMS/PIS/COFINS rates and computes the tax of sale
// lines. Everything here is pure: rate tables are built once and never
// mutated.
package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TableConfig is the raw input of a RateTable, usually read from the
// environment at start-up.
type TableConfig struct {
	HomeState          string
	InStateICMS        decimal.Decimal
	InterstateICMS     map[string]decimal.Decimal // by destination UF
	InterstateFallback decimal.Decimal
	ReducedNCM         map[string]decimal.Decimal
	PIS                decimal.Decimal
	COFINS             decimal.Decimal
	ExemptCST          []string
	PFUsesInternalRate bool // Interstate sales to individuals use the in-state rate
}

func DefaultTableConfig() TableConfig {
	twelve := decimal.NewFromInt(12)
	return TableConfig{
		HomeState:   "SP",
		InStateICMS: decimal.NewFromInt(18),
		InterstateICMS: map[string]decimal.Decimal{
			"RJ": twelve,
			"MG": twelve,
			"RS": twelve,
			"PR": twelve,
			"SC": twelve,
		},
		InterstateFallback: decimal.NewFromInt(7),
		ReducedNCM: map[string]decimal.Decimal{
			"84152010": twelve,
			"85287290": twelve,
		},
		PIS:       decimal.RequireFromString("1.65"),
		COFINS:    decimal.RequireFromString("7.60"),
		ExemptCST: []string{"06", "07", "08", "09"},
	}
}

// RateTable is an immutable snapshot of the rate configuration.
type RateTable struct {
	homeState          string
	inStateICMS        decimal.Decimal
	interstateICMS     map[string]decimal.Decimal
	interstateFallback decimal.Decimal
	reducedNCM         map[string]decimal.Decimal
	pis                decimal.Decimal
	cofins             decimal.Decimal
	exemptCST          map[string]struct{}
	pfUsesInternalRate bool
}

func NewRateTable(cfg TableConfig) *RateTable {
	t := &RateTable{
		homeState:          normalizeUF(cfg.HomeState),
		inStateICMS:        cfg.InStateICMS,
		interstateICMS:     make(map[string]decimal.Decimal, len(cfg.InterstateICMS)),
		interstateFallback: cfg.InterstateFallback,
		reducedNCM:         make(map[string]decimal.Decimal, len(cfg.ReducedNCM)),
		pis:                cfg.PIS,
		cofins:             cfg.COFINS,
		exemptCST:          make(map[string]struct{}, len(cfg.ExemptCST)),
		pfUsesInternalRate: cfg.PFUsesInternalRate,
	}
	for uf, rate := range cfg.InterstateICMS {
		t.interstateICMS[normalizeUF(uf)] = rate
	}
	for ncm, rate := range cfg.ReducedNCM {
		t.reducedNCM[strings.TrimSpace(ncm)] = rate
	}
	for _, cst := range cfg.ExemptCST {
		t.exemptCST[strings.TrimSpace(cst)] = struct{}{}
	}
	return t
}

func (t *RateTable) HomeState() string {
	return t.homeState
}

func normalizeUF(uf string) string {
	return strings.ToUpper(strings.TrimSpace(uf))
}
