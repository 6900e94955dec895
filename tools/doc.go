// Package tools contains the built-in exam analysis capabilities exposed to
// agents via tool adapters: document reading, question statistics, trend
// chart rendering and multi-document comparison.
//
// Each capability ships as a plain function plus a ready-made *tool.Adapter
// constructor so it can be registered on any agent node.
package tools
