// Package testutil provides fluent builders for test fixtures (sessions,
// patterns) used across package tests.
package testutil
