package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faqforge/internal/pipeline"
)

func TestFilterCategories(t *testing.T) {
	configured := []pipeline.Category{
		{Name: "Accounts", Count: 30},
		{Name: "Cards", Count: 25},
		{Name: "Loans", Count: 25},
	}

	t.Run("no filter keeps all", func(t *testing.T) {
		out, err := filterCategories(configured, nil)
		require.NoError(t, err)
		assert.Equal(t, configured, out)
	})

	t.Run("filter selects in filter order", func(t *testing.T) {
		out, err := filterCategories(configured, []string{"Loans", "Accounts"})
		require.NoError(t, err)
		assert.Equal(t, []pipeline.Category{
			{Name: "Loans", Count: 25},
			{Name: "Accounts", Count: 30},
		}, out)
	})

	t.Run("unknown name fails", func(t *testing.T) {
		_, err := filterCategories(configured, []string{"Mortgages"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Mortgages")
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "1234567890...", truncate("1234567890abc", 10))
}
