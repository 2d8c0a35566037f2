// Package model defines the transient result types shared by the page
// clients and the renderers.
//
// A Result is built for every action, filled in by the page-specific
// command and rendered once by a report.Writer. Nothing in this package
// is persisted.
package model
