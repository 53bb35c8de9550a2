package flags

import (
	"flag"
	"fmt"
	"math/big"
	"strings"

	"github.com/ecotrack/eco-go/pkg/encoding/fixedn"
	"github.com/urfave/cli"
)

// maxDecimals is the largest number of fractional digits a token can have.
const maxDecimals = 77

// Amount is a decimal token amount with flag.Value methods. Token decimals
// are usually known only after the configuration is loaded, so the value is
// kept as a string and converted with Int.
type Amount struct {
	IsSet bool
	Value string
}

// AmountFlag is a flag with type Amount.
type AmountFlag struct {
	Name  string
	Usage string
	Value Amount
}

var (
	_ flag.Value = (*Amount)(nil)
	_ cli.Flag   = AmountFlag{}
)

// String implements the fmt.Stringer interface.
func (a Amount) String() string {
	return a.Value
}

// Set implements the flag.Value interface.
func (a *Amount) Set(s string) error {
	v, err := fixedn.FromString(s, maxDecimals)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid amount %q: %w", s, err), 1)
	}
	if v.Sign() < 0 {
		return cli.NewExitError(fmt.Errorf("invalid amount %q: negative", s), 1)
	}
	a.IsSet = true
	a.Value = strings.TrimSpace(s)
	return nil
}

// Int converts the amount to an integer with the given number of decimals.
func (a *Amount) Int(decimals int) (*big.Int, error) {
	return fixedn.FromString(a.Value, decimals)
}

// String returns a readable representation of this value
// (for usage defaults).
func (f AmountFlag) String() string {
	var names []string
	eachName(f.Name, func(name string) {
		names = append(names, getNameHelp(name))
	})

	return strings.Join(names, ", ") + "\t" + f.Usage
}

// GetName returns the name of the flag.
func (f AmountFlag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f AmountFlag) Apply(set *flag.FlagSet) {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
}

// AmountFromContext returns the amount of the flag with the given name
// converted to an integer with the given number of decimals.
func AmountFromContext(ctx *cli.Context, name string, decimals int) (*big.Int, error) {
	a, ok := ctx.Generic(name).(*Amount)
	if !ok || !a.IsSet {
		return nil, fmt.Errorf("missing --%s", strings.Split(name, ",")[0])
	}
	return a.Int(decimals)
}
