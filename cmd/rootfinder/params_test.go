package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/rootfinder/pkg/schema"
)

func parsedParams(t *testing.T, args ...string) (*cobra.Command, *paramFlags) {
	t.Helper()
	var p paramFlags
	cmd := &cobra.Command{Use: "test"}
	p.register(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, &p
}

func TestParamFlags(t *testing.T) {
	cmd, p := parsedParams(t, "--bracket", "0,1", "--x0", "0.5", "--secant", "-1,2.5")
	params, err := p.build(cmd.Flags().Changed)
	require.NoError(t, err)

	assert.Equal(t, &schema.BisectionParams{A: 0, B: 1}, params.Bisection)
	assert.Equal(t, &schema.NewtonParams{X0: 0.5}, params.Newton)
	assert.Equal(t, &schema.SecantParams{X0: -1, X1: 2.5}, params.Secant)
	assert.Equal(t, []schema.Method{schema.MethodBisection, schema.MethodNewton, schema.MethodSecant}, params.Selected())
}

func TestParamFlags_OnlySetFlags(t *testing.T) {
	cmd, p := parsedParams(t, "--x0", "0")
	params, err := p.build(cmd.Flags().Changed)
	require.NoError(t, err)

	require.NotNil(t, params.Newton, "an explicit zero guess still selects newton")
	assert.Nil(t, params.Bisection)
	assert.Nil(t, params.Secant)
}

func TestParamFlags_Arity(t *testing.T) {
	cmd, p := parsedParams(t, "--bracket", "1")
	_, err := p.build(cmd.Flags().Changed)
	assert.ErrorContains(t, err, "--bracket takes two values")

	cmd, p = parsedParams(t, "--secant", "1,2,3")
	_, err = p.build(cmd.Flags().Changed)
	assert.ErrorContains(t, err, "--secant takes two values")
}
