// Package testsupport holds helpers shared by package tests: a temp-directory
// backed config, PATH stubs for the external tools, and file fixtures.
package testsupport
