// Package application provides application initialization and dependency wiring.
// It builds the preparation planner, the page and API handlers, the offline asset
// cache with its refresh scheduler, and the HTTP server, keeping the main package
// focused on CLI parsing and orchestration.
package application
