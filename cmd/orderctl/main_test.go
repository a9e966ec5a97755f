package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = "../../internal/catalog/testdata/catalog.cue"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuote_Table(t *testing.T) {
	out, err := execute(t, "quote", "--catalog", seed, "testdata/order.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ITEM")
	assert.Contains(t, out, "FRITZ!Box 5590 Fiber")
	assert.Contains(t, out, "Total")
	assert.Regexp(t, `Order number: FO-\d{8}-[0-9A-F]{8}`, out)
}

func TestQuote_JSON(t *testing.T) {
	out, err := execute(t, "quote", "-c", seed, "--json", "testdata/order.yaml")
	require.NoError(t, err)

	var sum struct {
		Confirmed bool `json:"confirmed"`
		Lines     []struct {
			Kind string `json:"kind"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.True(t, sum.Confirmed)
	require.NotEmpty(t, sum.Lines)
	assert.Equal(t, "tariff", sum.Lines[0].Kind)
}

func TestQuote_Errors(t *testing.T) {
	_, err := execute(t, "quote", "testdata/order.yaml")
	assert.ErrorContains(t, err, "catalog")

	_, err = execute(t, "quote", "-c", seed, "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestVet(t *testing.T) {
	out, err := execute(t, "vet", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "tariffs     3")

	_, err = execute(t, "vet", "testdata/order.yaml")
	assert.Error(t, err)
}
