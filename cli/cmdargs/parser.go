/*
Package cmdargs contains helpers for positional command arguments.
*/
package cmdargs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ecotrack/eco-go/pkg/core/roles"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
)

// EnsureNone returns an error if there are any positional arguments present.
// It can be used to check for them in commands that don't accept arguments.
func EnsureNone(ctx *cli.Context) *cli.ExitError {
	if ctx.Args().Present() {
		return cli.NewExitError("additional arguments given while this command expects none", 1)
	}
	return nil
}

// EnsureCount returns an error if the number of positional arguments is not
// the expected one.
func EnsureCount(ctx *cli.Context, n int, usage string) *cli.ExitError {
	if len(ctx.Args()) != n {
		return cli.NewExitError(fmt.Sprintf("expected %d argument(s): %s", n, usage), 1)
	}
	return nil
}

// ParseAddress parses the i-th positional argument as an account address.
func ParseAddress(ctx *cli.Context, i int) (common.Address, *cli.ExitError) {
	s := ctx.Args().Get(i)
	addr, err := address.StringToAddress(s)
	if err != nil {
		return common.Address{}, cli.NewExitError(fmt.Errorf("invalid address %q: %w", s, err), 1)
	}
	return addr, nil
}

// ParseRole parses the i-th positional argument as a role name, the case is
// ignored.
func ParseRole(ctx *cli.Context, i int) (roles.Role, *cli.ExitError) {
	s := ctx.Args().Get(i)
	for _, r := range roles.All {
		if strings.EqualFold(r.String(), s) {
			return r, nil
		}
	}
	return roles.Unknown, cli.NewExitError(fmt.Sprintf("unknown role %q, expected one of %s", s, roleNames()), 1)
}

func roleNames() string {
	names := make([]string, 0, len(roles.All))
	for _, r := range roles.All {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}

// ParseUint parses the i-th positional argument as an unsigned integer.
func ParseUint(ctx *cli.Context, i int, what string) (uint64, *cli.ExitError) {
	s := ctx.Args().Get(i)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, cli.NewExitError(fmt.Errorf("invalid %s %q", what, s), 1)
	}
	return v, nil
}
