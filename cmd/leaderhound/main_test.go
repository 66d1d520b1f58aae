package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/config"
)

func TestExactArgsUsageError(t *testing.T) {
	check := exactArgs(1)

	err := check(singleCmd, []string{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUsage))

	err = check(singleCmd, []string{"https://example.com", "extra"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUsage))

	assert.NoError(t, check(singleCmd, []string{"https://example.com"}))
}

func TestSingleRejectsNonHTTPURL(t *testing.T) {
	err := runSingle(singleCmd, []string{"ftp://example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUsage))
}

func TestBuildLoggerFallsBackOnBadLevel(t *testing.T) {
	logger, err := buildLogger(config.LoggingConfig{Level: "bogus", Format: "text"})
	require.NoError(t, err)
	logger.Info("ok")
	_ = logger.Sync()
}
